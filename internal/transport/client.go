package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"hubd/internal/proto"
)

// Client issues request/reply calls to a Server. The underlying connection
// is established lazily, cached across calls, and re-dialed after any I/O
// failure. Safe for concurrent use; calls serialize on the connection.
type Client struct {
	address string
	timeout time.Duration
	token   string

	mu   sync.Mutex
	conn net.Conn
}

// NewClient prepares a client for the given address. timeout bounds every
// individual call, dialing included; zero means a 15s default.
func NewClient(address string, timeout time.Duration, token string) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{address: address, timeout: timeout, token: token}
}

// Address returns the peer address this client dials.
func (c *Client) Address() string { return c.address }

// Call invokes endpoint with in as the request payload and decodes the reply
// payload into out. Pass nil for either to skip. The call is bounded by the
// client timeout and by ctx, whichever ends first.
func (c *Client) Call(ctx context.Context, endpoint string, in, out any) error {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var data proto.RawMessage
	if in != nil {
		payload, err := proto.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		data = payload
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connLocked(deadline)
	if err != nil {
		return err
	}
	if err := conn.SetDeadline(deadline); err != nil {
		c.dropLocked()
		return err
	}
	req := request{Endpoint: endpoint, Data: data, Token: c.token}
	if err := writeFrame(conn, req); err != nil {
		c.dropLocked()
		if IsTimeout(err) {
			return ErrTimeout(endpoint)
		}
		return fmt.Errorf("send %s: %w", endpoint, err)
	}
	var rep reply
	if err := readFrame(conn, &rep); err != nil {
		// The reply for this exchange is lost; drop the connection so the
		// next call starts a fresh one instead of reading a stale frame.
		c.dropLocked()
		if IsTimeout(err) {
			return ErrTimeout(endpoint)
		}
		return fmt.Errorf("recv %s: %w", endpoint, err)
	}
	if rep.Error != "" {
		return remoteError{msg: rep.Error}
	}
	if out != nil && len(rep.Data) > 0 {
		if err := proto.Unmarshal(rep.Data, out); err != nil {
			return fmt.Errorf("decode %s reply: %w", endpoint, err)
		}
	}
	return nil
}

// Ping performs the lightweight liveness exchange every server supports.
func (c *Client) Ping(ctx context.Context) error {
	return c.Call(ctx, "ping", nil, nil)
}

// Close tears down the cached connection. The client may be reused; the next
// call re-dials.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) connLocked(deadline time.Time) (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	d := net.Dialer{Deadline: deadline}
	conn, err := d.Dial("tcp", c.address)
	if err != nil {
		if IsTimeout(err) {
			return nil, ErrTimeout("dial " + c.address)
		}
		return nil, fmt.Errorf("dial %s: %w", c.address, err)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
