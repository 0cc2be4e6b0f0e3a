// Package relay mirrors command writes straight to the robot over a websocket,
// bypassing the real-time database round trip.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
)

const handshakeTimeout = 5 * time.Second

var ErrClosed = errors.New("relay: client closed")

// Frame is the text frame sent for every write.
type Frame struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Client keeps one websocket to the robot and redials lazily after a drop.
type Client struct {
	url string
	log zerolog.Logger

	mu     sync.Mutex
	conn   *gws.Conn
	closed bool
}

func New(url string, log zerolog.Logger) *Client {
	return &Client{
		url: url,
		log: log.With().Str("component", "relay").Logger(),
	}
}

// Set sends value under key. It satisfies command.Writer.
func (c *Client) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(Frame{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("relay: marshal %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := c.connection()
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(gws.OpcodeText, data); err != nil {
		c.drop(conn)
		return fmt.Errorf("relay: write %s: %w", key, err)
	}
	return nil
}

// Close shuts the connection; further writes fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		_ = c.conn.WriteClose(1000, nil)
		c.conn = nil
	}
	return nil
}

func (c *Client) connection() (*gws.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}

	conn, _, err := gws.NewClient(&handler{c: c}, &gws.ClientOption{
		Addr:             c.url,
		HandshakeTimeout: handshakeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", c.url, err)
	}
	go conn.ReadLoop()

	c.conn = conn
	c.log.Info().Str("url", c.url).Msg("Relay connected")
	return conn, nil
}

func (c *Client) drop(conn *gws.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
}

type handler struct {
	gws.BuiltinEventHandler
	c *Client
}

func (h *handler) OnClose(socket *gws.Conn, err error) {
	h.c.drop(socket)
	h.c.log.Debug().Err(err).Msg("Relay disconnected")
}

func (h *handler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.WritePong(payload)
}

func (h *handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	h.c.log.Trace().Bytes("message", message.Bytes()).Msg("Relay message ignored")
}
