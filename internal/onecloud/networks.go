package onecloud

import (
	"context"
	"encoding/json"
)

// CreateNetworkRequest is the body of a private network creation call.
type CreateNetworkRequest struct {
	Name string `json:"Name"`
}

func (c *Client) ListNetworks(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/network")
}

func (c *Client) GetNetwork(ctx context.Context, id int) (json.RawMessage, error) {
	return c.get(ctx, idPath("/network", id))
}

// CreateNetwork creates a private network. The API expects the trailing slash.
func (c *Client) CreateNetwork(ctx context.Context, name string) (json.RawMessage, error) {
	return c.post(ctx, "/network/", CreateNetworkRequest{Name: name})
}

func (c *Client) DeleteNetwork(ctx context.Context, id int) (json.RawMessage, error) {
	return c.delete(ctx, idPath("/network", id))
}
