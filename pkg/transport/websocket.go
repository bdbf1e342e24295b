package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsLogPrefix = "transport:websocket"

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 1 << 20
)

// Upgrader accepts WebSocket connections from localhost origins or same-origin requests.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "https://localhost", "https://127.0.0.1"} {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		}
		slog.Warn(fmt.Sprintf("%s - rejected WebSocket from origin %s", wsLogPrefix, origin))
		return false
	},
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WebSocket is a client transport over one WebSocket connection. Each text frame carries one
// envelope.
type WebSocket struct {
	ws *wsConn

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// DialWebSocket connects to a host WebSocket endpoint.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("%s - dial %s: %w", wsLogPrefix, url, err)
	}
	conn.SetReadLimit(wsReadLimit)
	slog.Debug(fmt.Sprintf("%s - connected to %s", wsLogPrefix, url))
	return &WebSocket{ws: &wsConn{conn: conn}, done: make(chan struct{})}, nil
}

// Listen starts the read loop. handler is called from that single goroutine.
func (w *WebSocket) Listen(handler Handler) {
	go func() {
		defer close(w.done)
		for {
			mt, data, err := w.ws.conn.ReadMessage()
			if err != nil {
				if !w.isClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Warn(fmt.Sprintf("%s - read: %v", wsLogPrefix, err))
				}
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			handler(data)
		}
	}()
}

func (w *WebSocket) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// PostMessage writes data as one text frame.
func (w *WebSocket) PostMessage(data []byte) error {
	if w.isClosed() {
		return fmt.Errorf("%s - post: %w", wsLogPrefix, ErrTransportClosed)
	}
	if err := w.ws.write(data); err != nil {
		return fmt.Errorf("%s - write: %w", wsLogPrefix, err)
	}
	return nil
}

// Done is closed when the read loop exits.
func (w *WebSocket) Done() <-chan struct{} { return w.done }

// Close sends a close frame and closes the connection.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.ws.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
	return w.ws.conn.Close()
}

// ServeWebSocket runs host against an accepted connection until the peer goes away or ctx is
// done. Frames are handled in arrival order on the calling goroutine.
func ServeWebSocket(ctx context.Context, conn *websocket.Conn, host HostFunc) error {
	ws := &wsConn{conn: conn}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case <-ctx.Done():
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
				_ = conn.Close()
				return
			case <-stop:
				return
			}
		}
	}()

	reply := func(data []byte) error {
		if err := ws.write(data); err != nil {
			return fmt.Errorf("%s - reply: %w", wsLogPrefix, err)
		}
		return nil
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s - read: %w", wsLogPrefix, err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		host(data, reply)
	}
}
