package onecloud

import (
	"context"
	"encoding/json"
)

// Disk types accepted by the API.
const (
	HDDTypeSAS = "SAS"
	HDDTypeSSD = "SSD"
)

// CreateServerRequest is the body of a server creation call. Every key is
// always sent.
type CreateServerRequest struct {
	Name              string `json:"Name" validate:"required"`
	CPU               int    `json:"CPU" validate:"min=1,max=8"`
	RAM               int    `json:"RAM" validate:"ramstep"`
	HDD               int    `json:"HDD" validate:"hddstep"`
	ImageID           int    `json:"ImageID"`
	HDDType           string `json:"HDDType" validate:"oneof=SAS SSD"`
	IsHighPerformance bool   `json:"isHighPerformance"`
	DCLocation        string `json:"DCLocation"`
}

// UpdateServerRequest is the body of a server reconfiguration call.
type UpdateServerRequest struct {
	CPU               int    `json:"CPU" validate:"min=1,max=8"`
	RAM               int    `json:"RAM" validate:"ramstep"`
	HDD               int    `json:"HDD" validate:"hddstep"`
	HDDType           string `json:"HDDType" validate:"oneof=SAS SSD"`
	IsHighPerformance bool   `json:"isHighPerformance"`
}

func (c *Client) ListServers(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/server")
}

func (c *Client) GetServer(ctx context.Context, id int) (json.RawMessage, error) {
	return c.get(ctx, idPath("/server", id))
}

// CreateServer orders a new server. An empty HDDType defaults to SAS.
func (c *Client) CreateServer(ctx context.Context, req CreateServerRequest) (json.RawMessage, error) {
	if req.HDDType == "" {
		req.HDDType = HDDTypeSAS
	}
	if c.Validate {
		if err := ValidateRequest(req); err != nil {
			return nil, err
		}
	}
	return c.post(ctx, "/server", req)
}

// UpdateServer changes the sizing of an existing server.
func (c *Client) UpdateServer(ctx context.Context, id int, req UpdateServerRequest) (json.RawMessage, error) {
	if req.HDDType == "" {
		req.HDDType = HDDTypeSAS
	}
	if c.Validate {
		if err := ValidateRequest(req); err != nil {
			return nil, err
		}
	}
	return c.put(ctx, idPath("/server", id), req)
}

func (c *Client) DeleteServer(ctx context.Context, id int) (json.RawMessage, error) {
	return c.delete(ctx, idPath("/server", id))
}
