// Package messenger correlates requests posted to the host with the responses it sends back,
// and routes host-pushed notifications to subscription handlers.
package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const logPrefix = "messenger:messenger"

// Transport posts an encoded envelope to the host. Inbound envelopes are delivered by the
// transport calling Messenger.HandleMessage, one at a time.
type Transport interface {
	PostMessage(data []byte) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(data []byte) error

// PostMessage calls f.
func (f TransportFunc) PostMessage(data []byte) error { return f(data) }

// OutboundMessage is a request envelope before a request id is attached.
type OutboundMessage struct {
	Type    string
	Version string
	Payload json.RawMessage
}

// NotificationHandler receives the full notification envelope for a subscription.
type NotificationHandler func(notification json.RawMessage)

// Messenger owns the pending-request table and the subscription table.
type Messenger struct {
	transport Transport
	newID     func() string

	mu       sync.Mutex
	pending  map[string]chan json.RawMessage
	handlers map[string]NotificationHandler
}

// Option configures a Messenger.
type Option func(*Messenger)

// WithIDGenerator replaces the request id generator. The generator must never repeat an id.
func WithIDGenerator(fn func() string) Option {
	return func(m *Messenger) { m.newID = fn }
}

// New creates a Messenger posting through transport.
func New(transport Transport, opts ...Option) *Messenger {
	m := &Messenger{
		transport: transport,
		newID:     func() string { return uuid.NewString() },
		pending:   make(map[string]chan json.RawMessage),
		handlers:  make(map[string]NotificationHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// wireRequest is the envelope as posted.
type wireRequest struct {
	Type      string          `json:"type"`
	Version   string          `json:"version"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

// Send attaches a fresh request id to msg, posts it and waits for the response carrying that
// id. The raw response is returned unclassified. There is no timeout: ctx only bounds how long
// the caller waits, and the pending entry stays registered until a response arrives.
func (m *Messenger) Send(ctx context.Context, msg OutboundMessage) (json.RawMessage, error) {
	requestID := m.newID()
	payload := msg.Payload
	if payload == nil {
		payload = json.RawMessage("null")
	}
	data, err := json.Marshal(wireRequest{
		Type:      msg.Type,
		Version:   msg.Version,
		RequestID: requestID,
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - encode %s: %w", logPrefix, msg.Type, err)
	}

	slot := make(chan json.RawMessage, 1)
	m.mu.Lock()
	m.pending[requestID] = slot
	m.mu.Unlock()

	slog.Debug(fmt.Sprintf("%s - send type=%s version=%s requestId=%s", logPrefix, msg.Type, msg.Version, requestID))

	if err := m.transport.PostMessage(data); err != nil {
		m.mu.Lock()
		delete(m.pending, requestID)
		m.mu.Unlock()
		return nil, fmt.Errorf("%s - post %s: %w", logPrefix, msg.Type, err)
	}

	select {
	case resp := <-slot:
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s - waiting for %s requestId=%s: %w", logPrefix, msg.Type, requestID, ctx.Err())
	}
}

// AddNotificationHandler routes notifications carrying subscriptionID to handler, replacing
// any previous handler for the same id.
func (m *Messenger) AddNotificationHandler(subscriptionID string, handler NotificationHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[subscriptionID] = handler
}

// RemoveNotificationHandler drops the handler for subscriptionID. Later notifications for it
// are discarded.
func (m *Messenger) RemoveNotificationHandler(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, subscriptionID)
}

// correlationFields holds the raw top-level members of an inbound envelope. Routing depends on
// which keys are present, not on their values.
type correlationFields map[string]json.RawMessage

func (f correlationFields) id(key string) (string, bool) {
	raw, ok := f[key]
	if !ok {
		return "", false
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", true
	}
	return id, true
}

// HandleMessage dispatches one inbound envelope. Envelopes carrying a subscriptionId key go to
// the subscription table; the rest are matched by requestId against pending requests. Anything
// that matches neither is dropped, since other consumers may share the channel.
func (m *Messenger) HandleMessage(data []byte) {
	var fields correlationFields
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		slog.Debug(fmt.Sprintf("%s - dropping non-envelope message: %v", logPrefix, err))
		return
	}
	raw := json.RawMessage(append([]byte(nil), data...))

	if subscriptionID, ok := fields.id("subscriptionId"); ok {
		m.mu.Lock()
		handler, found := m.handlers[subscriptionID]
		m.mu.Unlock()
		if subscriptionID == "" || !found {
			slog.Debug(fmt.Sprintf("%s - dropping notification for unknown subscriptionId=%q", logPrefix, subscriptionID))
			return
		}
		handler(raw)
		return
	}

	requestID, ok := fields.id("requestId")
	if !ok || requestID == "" {
		slog.Debug(fmt.Sprintf("%s - dropping message without requestId or subscriptionId", logPrefix))
		return
	}

	m.mu.Lock()
	slot, ok := m.pending[requestID]
	if ok {
		delete(m.pending, requestID)
	}
	m.mu.Unlock()
	if !ok {
		slog.Debug(fmt.Sprintf("%s - dropping response for unknown requestId=%s", logPrefix, requestID))
		return
	}
	slot <- raw
}

// PendingCount returns the number of requests still waiting for a response.
func (m *Messenger) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// SubscriptionCount returns the number of registered notification handlers.
func (m *Messenger) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}
