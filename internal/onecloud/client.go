package onecloud

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
)

// Dispatcher sends a single API call. *Gate is the production implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, verb, path string, body any) (json.RawMessage, error)
}

// Client exposes the provider's resources as typed methods.
type Client struct {
	dispatcher Dispatcher
	// Validate enables client-side checks of server sizing before dispatch.
	Validate bool
}

// New builds a gate for token and wraps it in a client.
func New(token string, opts ...Option) (*Client, error) {
	gate, err := NewGate(token, opts...)
	if err != nil {
		return nil, err
	}
	return NewClient(gate), nil
}

// NewClient wraps d. Validation follows the gate setting when d is a *Gate.
func NewClient(d Dispatcher) *Client {
	c := &Client{dispatcher: d}
	if gate, ok := d.(*Gate); ok {
		c.Validate = gate.Validating()
	}
	return c
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.dispatcher.Dispatch(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.dispatcher.Dispatch(ctx, http.MethodPost, path, body)
}

func (c *Client) put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.dispatcher.Dispatch(ctx, http.MethodPut, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.dispatcher.Dispatch(ctx, http.MethodDelete, path, nil)
}

func idPath(prefix string, id int) string {
	return prefix + "/" + strconv.Itoa(id)
}
