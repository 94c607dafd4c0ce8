package onecloud

import (
	"context"
	"encoding/json"
)

// GetBalance returns the account balance.
func (c *Client) GetBalance(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/customer/balance")
}

// ListDCLocations returns the datacenters servers can be created in.
func (c *Client) ListDCLocations(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/dcLocation")
}
