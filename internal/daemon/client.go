package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// DefaultClientTimeout bounds one control round trip.
const DefaultClientTimeout = 5 * time.Second

// ErrNotRunning means nothing is serving the control socket.
var ErrNotRunning = errors.New("no workflow running")

// Client talks to a headless workflow over its control socket.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient creates a client for the socket at sockPath.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath, timeout: DefaultClientTimeout}
}

// SetTimeout changes the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

func (c *Client) call(method string, params any) (*Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.callContext(ctx, method, params)
}

// callContext performs one request/response exchange; the connection
// deadline follows ctx.
func (c *Client) callContext(ctx context.Context, method string, params any) (*Response, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.sockPath)
	if err != nil {
		return nil, dialError(err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}

	if err := json.NewEncoder(conn).Encode(Request{Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, fmt.Errorf("%s: request timed out", method)
		}
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

// dialError turns dial failures into ErrNotRunning where that is what they
// mean.
func dialError(err error) error {
	switch {
	case errors.Is(err, syscall.ENOENT), os.IsNotExist(err):
		return fmt.Errorf("%w (socket not found)", ErrNotRunning)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w (connection refused)", ErrNotRunning)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return errors.New("connect to daemon: timed out")
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

// decodeResult re-marshals a generic JSON result into out.
func decodeResult(resp *Response, out any) error {
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

// Status returns the hosted workflow's status.
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.call(MethodStatus, nil)
	if err != nil {
		return nil, err
	}

	var status StatusResponse
	if err := decodeResult(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Signal returns the current UI snapshot.
func (c *Client) Signal() (*SignalResponse, error) {
	resp, err := c.call(MethodSignal, nil)
	if err != nil {
		return nil, err
	}

	var sig SignalResponse
	if err := decodeResult(resp, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

// Focus reports that the external UI gained focus.
func (c *Client) Focus() error {
	_, err := c.call(MethodFocus, nil)
	return err
}

// Blur reports that the external UI lost focus.
func (c *Client) Blur() error {
	_, err := c.call(MethodBlur, nil)
	return err
}

// Dismiss reports that the external UI was dismissed.
func (c *Client) Dismiss() error {
	_, err := c.call(MethodDismiss, nil)
	return err
}

// IsRunning reports whether something accepts connections on the socket.
func (c *Client) IsRunning() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
