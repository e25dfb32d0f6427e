package delivery

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/net/websocket"
)

const (
	// DefaultOrigin is sent when dialing; the relay does not check it.
	DefaultOrigin = "http://localhost/"

	writeTimeout = 10 * time.Second
)

// WebSocketTransport dials a relay over WebSocket.
type WebSocketTransport struct {
	URL    string
	Origin string
}

// NewWebSocketTransport returns a transport for a ws:// or wss:// URL.
func NewWebSocketTransport(url string) *WebSocketTransport {
	return &WebSocketTransport{URL: url, Origin: DefaultOrigin}
}

// Dial opens a WebSocket connection.
func (t *WebSocketTransport) Dial(ctx context.Context) (Conn, error) {
	origin := t.Origin
	if origin == "" {
		origin = DefaultOrigin
	}
	cfg, err := websocket.NewConfig(t.URL, origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	return WrapWebSocket(ws), nil
}

type wsConn struct {
	ws *websocket.Conn
}

// WrapWebSocket adapts an established WebSocket connection to Conn. Messages
// are sent as binary frames.
func WrapWebSocket(ws *websocket.Conn) Conn {
	ws.PayloadType = websocket.BinaryFrame
	ws.MaxPayloadBytes = MaxFrameSize
	return &wsConn{ws: ws}
}

func (c *wsConn) Send(data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return websocket.Message.Send(c.ws, data)
}

func (c *wsConn) Receive() ([]byte, error) {
	var data []byte
	if err := websocket.Message.Receive(c.ws, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
