package onecloud

import (
	"context"
	"encoding/json"
)

// CreateImageRequest is the body of an image (template) creation call.
type CreateImageRequest struct {
	Name     string `json:"Name"`
	TechName string `json:"TechName"`
	ServerID int    `json:"ServerID"`
}

func (c *Client) ListImages(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/image")
}

// CreateImage snapshots a running server into a reusable template.
func (c *Client) CreateImage(ctx context.Context, name, techName string, serverID int) (json.RawMessage, error) {
	return c.post(ctx, "/image", CreateImageRequest{Name: name, TechName: techName, ServerID: serverID})
}

func (c *Client) DeleteImage(ctx context.Context, id int) (json.RawMessage, error) {
	return c.delete(ctx, idPath("/image", id))
}
