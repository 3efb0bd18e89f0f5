package smc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/smcgo/smc/shared/api"
)

// Node is a single appliance of an engine.
type Node struct {
	*SubElement
}

// NodeID returns the position of the node in its engine.
func (n *Node) NodeID(ctx context.Context) (int, error) {
	value, err := n.Attribute(ctx, "nodeid")
	if err != nil {
		return 0, err
	}

	return intValue("nodeid", value)
}

// command sends a request to a relation of the node.
func (n *Node) command(ctx context.Context, method string, rel string, params url.Values, body any) (*Result, error) {
	href, err := n.feature(ctx, rel)
	if err != nil {
		return nil, err
	}

	resp, err := n.conn.Fetch(ctx, &Request{Method: method, Href: href, Params: params, Body: body})
	if err != nil {
		return nil, fmt.Errorf("Node command %q failed: %w", rel, err)
	}

	return resp, nil
}

// commentParams returns the audit comment parameters.
func commentParams(comment string) url.Values {
	params := url.Values{}
	if comment != "" {
		params.Set("comment", comment)
	}

	return params
}

// GoOnline brings the node back online.
func (n *Node) GoOnline(ctx context.Context, comment string) error {
	_, err := n.command(ctx, http.MethodPut, "go_online", commentParams(comment), nil)
	return err
}

// GoOffline takes the node offline.
func (n *Node) GoOffline(ctx context.Context, comment string) error {
	_, err := n.command(ctx, http.MethodPut, "go_offline", commentParams(comment), nil)
	return err
}

// GoStandby puts the node in standby.
func (n *Node) GoStandby(ctx context.Context, comment string) error {
	_, err := n.command(ctx, http.MethodPut, "go_standby", commentParams(comment), nil)
	return err
}

// LockOnline keeps the node online regardless of cluster decisions.
func (n *Node) LockOnline(ctx context.Context, comment string) error {
	_, err := n.command(ctx, http.MethodPut, "lock_online", commentParams(comment), nil)
	return err
}

// LockOffline keeps the node offline regardless of cluster decisions.
func (n *Node) LockOffline(ctx context.Context, comment string) error {
	_, err := n.command(ctx, http.MethodPut, "lock_offline", commentParams(comment), nil)
	return err
}

// Reboot restarts the node.
func (n *Node) Reboot(ctx context.Context, comment string) error {
	_, err := n.command(ctx, http.MethodPut, "reboot", commentParams(comment), nil)
	return err
}

// ResetUserDB resets the local user database of the node.
func (n *Node) ResetUserDB(ctx context.Context, comment string) error {
	_, err := n.command(ctx, http.MethodPut, "reset_user_db", commentParams(comment), nil)
	return err
}

// SSH enables or disables the SSH daemon of the node.
func (n *Node) SSH(ctx context.Context, enable bool, comment string) error {
	params := commentParams(comment)
	params.Set("enable", strconv.FormatBool(enable))

	_, err := n.command(ctx, http.MethodPut, "ssh", params, nil)
	return err
}

// ChangeSSHPassword changes the root password used over SSH.
func (n *Node) ChangeSSHPassword(ctx context.Context, password string, comment string) error {
	if password == "" {
		return &api.ValidationError{Field: "password", Value: ""}
	}

	_, err := n.command(ctx, http.MethodPut, "change_ssh_pwd", commentParams(comment), api.ValueEntry{Value: password})
	return err
}

// TimeSync synchronizes the node clock with the management server.
func (n *Node) TimeSync(ctx context.Context) error {
	_, err := n.command(ctx, http.MethodPut, "time_sync", nil, nil)
	return err
}

// FetchLicense fetches the node license from the license server.
func (n *Node) FetchLicense(ctx context.Context) error {
	_, err := n.command(ctx, http.MethodPost, "fetch", nil, nil)
	return err
}

// BindLicense binds a license to the node. An empty id binds automatically.
func (n *Node) BindLicense(ctx context.Context, licenseItemID string) error {
	params := url.Values{}
	if licenseItemID != "" {
		params.Set("license_item_id", licenseItemID)
	}

	_, err := n.command(ctx, http.MethodPost, "bind", params, nil)
	return err
}

// UnbindLicense releases the license bound to the node.
func (n *Node) UnbindLicense(ctx context.Context) error {
	_, err := n.command(ctx, http.MethodPost, "unbind", nil, nil)
	return err
}

// CancelUnbindLicense cancels a pending license unbind.
func (n *Node) CancelUnbindLicense(ctx context.Context) error {
	_, err := n.command(ctx, http.MethodPost, "cancel_unbind", nil, nil)
	return err
}

// Status returns the basic status of the node.
func (n *Node) Status(ctx context.Context) (*api.NodeStatus, error) {
	resp, err := n.command(ctx, http.MethodGet, "status", nil, nil)
	if err != nil {
		return nil, err
	}

	status := api.NodeStatus{}
	err = resp.Decode(&status)
	if err != nil {
		return nil, err
	}

	return &status, nil
}

// InitialContact returns the initial configuration of the node, used to
// bootstrap the appliance.
func (n *Node) InitialContact(ctx context.Context, enableSSH bool) (string, error) {
	params := url.Values{}
	params.Set("enable_ssh", strconv.FormatBool(enableSSH))

	resp, err := n.command(ctx, http.MethodPost, "initial_contact", params, nil)
	if err != nil {
		return "", err
	}

	if resp.Content != nil {
		return string(resp.Content), nil
	}

	return string(resp.JSON), nil
}
