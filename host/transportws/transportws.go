// Package transportws is the host-side WebSocket transport: it dials
// a controller's /ws endpoint and exposes the line-oriented
// streamer.Conn interface over text frames.
package transportws

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a dialed WebSocket connection to a controller, satisfying
// streamer.Conn.
type Conn struct {
	conn *websocket.Conn
}

// Dial opens a WebSocket connection to wsURL (ws:// or wss://).
func Dial(wsURL string) (*Conn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("transportws: invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("transportws: unsupported scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transportws: dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("transportws: dial failed: %w", err)
	}

	return &Conn{conn: conn}, nil
}

// ReadLine blocks for the next text message.
func (c *Conn) ReadLine() (string, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteLine sends line as one text frame.
func (c *Conn) WriteLine(line string) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("transportws: write: %w", err)
	}
	return nil
}

// Close closes the underlying WebSocket connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
