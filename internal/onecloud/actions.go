package onecloud

import (
	"context"
	"encoding/json"
)

// ActionType selects a server lifecycle operation.
type ActionType string

const (
	ActionPowerOn         ActionType = "PowerOn"
	ActionPowerOff        ActionType = "PowerOff"
	ActionShutDownGuestOS ActionType = "ShutDownGuestOS"
	ActionPowerReboot     ActionType = "PowerReboot"
	ActionAddNetwork      ActionType = "AddNetwork"
	ActionRemoveNetwork   ActionType = "RemoveNetwork"
)

// ActionRequest is posted to /server/{id}/action.
type ActionRequest struct {
	Type ActionType `json:"Type"`
}

// NetworkActionRequest attaches or detaches a private network.
type NetworkActionRequest struct {
	Type      ActionType `json:"Type"`
	NetworkID int        `json:"NetworkID"`
}

func (c *Client) PowerOn(ctx context.Context, serverID int) (json.RawMessage, error) {
	return c.action(ctx, serverID, ActionRequest{Type: ActionPowerOn})
}

func (c *Client) PowerOff(ctx context.Context, serverID int) (json.RawMessage, error) {
	return c.action(ctx, serverID, ActionRequest{Type: ActionPowerOff})
}

// ShutdownGuestOS asks the guest to shut down. Needs VMware tools in the guest.
func (c *Client) ShutdownGuestOS(ctx context.Context, serverID int) (json.RawMessage, error) {
	return c.action(ctx, serverID, ActionRequest{Type: ActionShutDownGuestOS})
}

func (c *Client) Reboot(ctx context.Context, serverID int) (json.RawMessage, error) {
	return c.action(ctx, serverID, ActionRequest{Type: ActionPowerReboot})
}

func (c *Client) AttachNetwork(ctx context.Context, serverID, networkID int) (json.RawMessage, error) {
	return c.action(ctx, serverID, NetworkActionRequest{Type: ActionAddNetwork, NetworkID: networkID})
}

func (c *Client) DetachNetwork(ctx context.Context, serverID, networkID int) (json.RawMessage, error) {
	return c.action(ctx, serverID, NetworkActionRequest{Type: ActionRemoveNetwork, NetworkID: networkID})
}

func (c *Client) action(ctx context.Context, serverID int, body any) (json.RawMessage, error) {
	return c.post(ctx, idPath("/server", serverID)+"/action", body)
}
