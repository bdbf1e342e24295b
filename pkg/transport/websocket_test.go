package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func startWebSocketHost(t *testing.T, host HostFunc) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = ServeWebSocket(ctx, conn, host)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_RequestReplyAndPush(t *testing.T) {
	host := &echoHost{replies: make(chan ReplyFunc, 1)}
	url := startWebSocketHost(t, host.handle)

	ws, err := DialWebSocket(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("transport:websocket_test - DialWebSocket: %v", err)
	}
	defer ws.Close()

	received := make(chan []byte, 16)
	ws.Listen(func(data []byte) { received <- data })

	for _, m := range []string{"one", "two"} {
		if err := ws.PostMessage([]byte(m)); err != nil {
			t.Fatalf("transport:websocket_test - PostMessage: %v", err)
		}
	}
	got := collect(received, 2, t)
	if got[0] != "one" || got[1] != "two" {
		t.Errorf("transport:websocket_test - got %v", got)
	}

	reply := <-host.replies
	if err := reply([]byte("pushed")); err != nil {
		t.Fatalf("transport:websocket_test - push: %v", err)
	}
	if got := collect(received, 1, t); got[0] != "pushed" {
		t.Errorf("transport:websocket_test - got %q, want pushed", got[0])
	}
}

func TestWebSocket_Close(t *testing.T) {
	url := startWebSocketHost(t, func([]byte, ReplyFunc) {})

	ws, err := DialWebSocket(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("transport:websocket_test - DialWebSocket: %v", err)
	}
	ws.Listen(func([]byte) {})

	if err := ws.Close(); err != nil {
		t.Fatalf("transport:websocket_test - Close: %v", err)
	}
	<-ws.Done()
	if err := ws.PostMessage([]byte("x")); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("transport:websocket_test - PostMessage after Close = %v", err)
	}
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://127.0.0.1:8443", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := Upgrader.CheckOrigin(r); got != tt.want {
				t.Errorf("transport:websocket_test - CheckOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
