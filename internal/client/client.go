// Package client implements the TCP client of spec §4.10: connect, send
// exactly one request, read exactly one response, matching the server's
// one-exchange-per-connection contract.
//
// Grounded on the original project's src/client.rs KvsClient: a thin
// wrapper opening a fresh connection per call rather than holding a
// long-lived session.
package client

import (
	"net"
	"time"

	"github.com/nilotpal-labs/emberkv/internal/protocol"
	"github.com/nilotpal-labs/emberkv/pkg/kverrors"
)

// Client issues Get/Set/Remove calls against a single server address,
// opening a new connection for each.
type Client struct {
	addr    string
	dialer  net.Dialer
	timeout time.Duration
}

// New returns a Client targeting addr. timeout bounds each dial and
// round trip; zero means no timeout.
func New(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, dialer: net.Dialer{Timeout: timeout}, timeout: timeout}
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	conn, err := c.dialer.Dial("tcp", c.addr)
	if err != nil {
		return protocol.Response{}, kverrors.NewIOError(err, "dial server").WithPath(c.addr)
	}
	defer conn.Close()

	if c.timeout > 0 {
		conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if err := protocol.WriteRequest(conn, req); err != nil {
		return protocol.Response{}, err
	}

	return protocol.ReadResponse(conn)
}

// Get fetches key's value. ok is false if the server reports no live
// value for key.
func (c *Client) Get(key string) (value string, ok bool, err error) {
	resp, err := c.roundTrip(protocol.Request{Op: protocol.OpGet, Key: key})
	if err != nil {
		return "", false, err
	}
	if resp.Status == protocol.StatusError {
		return "", false, kverrors.NewStringError(resp.Error)
	}
	return resp.Value, resp.Found, nil
}

// Set stores value under key.
func (c *Client) Set(key, value string) error {
	resp, err := c.roundTrip(protocol.Request{Op: protocol.OpSet, Key: key, Value: value})
	if err != nil {
		return err
	}
	if resp.Status == protocol.StatusError {
		return kverrors.NewStringError(resp.Error)
	}
	return nil
}

// Remove deletes key.
func (c *Client) Remove(key string) error {
	resp, err := c.roundTrip(protocol.Request{Op: protocol.OpRemove, Key: key})
	if err != nil {
		return err
	}
	if resp.Status == protocol.StatusError {
		return kverrors.NewStringError(resp.Error)
	}
	return nil
}
