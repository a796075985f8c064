package conn

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is an open transport delivering whole messages.
type Conn interface {
	// ReadMessage blocks until the next message. Any error ends the
	// connection.
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

// Dialer opens connections to the snapshot endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with github.com/gorilla/websocket.
type WebsocketDialer struct {
	// HandshakeTimeout bounds the opening handshake. Zero means no limit
	// beyond ctx.
	HandshakeTimeout time.Duration
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	c, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadMessage() (int, []byte, error) {
	return w.c.ReadMessage()
}

// Close sends a normal closure before dropping the socket.
func (w *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.c.Close()
}
