package server

import (
	"fmt"

	"github.com/gorilla/websocket"
)

// wsConn adapts a *websocket.Conn to line-oriented text I/O: each
// WriteLine sends one text frame, each ReadLine blocks for the next
// one. SSG is line-delimited by the spec, but over a WebSocket the
// natural framing unit is the message, so there is no need for a
// byte-stream scanner on this transport.
type wsConn struct {
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (w *wsConn) ReadLine() (string, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *wsConn) WriteLine(line string) error {
	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("server: write line: %w", err)
	}
	return nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
