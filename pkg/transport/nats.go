package transport

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/customapp-bridge/pkg/commsutil"
)

const natsLogPrefix = "transport:nats"

// NATSParams configures a NATS client transport.
type NATSParams struct {
	// HostSubject defaults to commsutil.SubjectHost.
	HostSubject string
	// ClientID names the client's inbox subject. Defaults to a random UUID.
	ClientID string
}

// NATS posts envelopes to a host subject and receives responses and notifications on a
// per-client inbox subject. The inbox is sent as the reply subject of every post.
type NATS struct {
	nc          *comms.Conn
	hostSubject string
	inbox       string

	mu     sync.Mutex
	sub    *comms.Subscription
	closed bool
}

// NewNATS creates a NATS transport on an existing connection.
func NewNATS(nc *comms.Conn, params NATSParams) *NATS {
	host := params.HostSubject
	if host == "" {
		host = commsutil.SubjectHost
	}
	id := params.ClientID
	if id == "" {
		id = uuid.NewString()
	}
	return &NATS{nc: nc, hostSubject: host, inbox: commsutil.BuildClientSubject(id)}
}

// Inbox returns the subject this transport receives on.
func (n *NATS) Inbox() string { return n.inbox }

// Listen subscribes to the inbox. nats.go delivers a subscription's messages on a single
// goroutine, so handler sees them in arrival order.
func (n *NATS) Listen(handler Handler) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrTransportClosed
	}
	sub, err := n.nc.Subscribe(n.inbox, func(msg *comms.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", natsLogPrefix, n.inbox, err)
	}
	// Make sure the server knows about the inbox before the first request goes out.
	if err := n.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("%s - flush: %w", natsLogPrefix, err)
	}
	n.sub = sub
	slog.Debug(fmt.Sprintf("%s - listening on %s", natsLogPrefix, n.inbox))
	return nil
}

// PostMessage publishes data to the host subject with the inbox as reply subject.
func (n *NATS) PostMessage(data []byte) error {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return fmt.Errorf("%s - post: %w", natsLogPrefix, ErrTransportClosed)
	}
	if err := n.nc.PublishMsg(&comms.Msg{Subject: n.hostSubject, Reply: n.inbox, Data: data}); err != nil {
		return fmt.Errorf("%s - publish to %s: %w", natsLogPrefix, n.hostSubject, err)
	}
	return nil
}

// Close unsubscribes the inbox. The connection stays open.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	if n.sub != nil {
		return n.sub.Unsubscribe()
	}
	return nil
}

// ServeNATS subscribes host to subject. Replies and notifications go to the reply subject of
// each request.
func ServeNATS(nc *comms.Conn, subject string, host HostFunc) (*comms.Subscription, error) {
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		if msg.Reply == "" {
			slog.Debug(fmt.Sprintf("%s - dropping message without reply subject on %s", natsLogPrefix, subject))
			return
		}
		reply := msg.Reply
		host(msg.Data, func(data []byte) error {
			return nc.Publish(reply, data)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", natsLogPrefix, subject, err)
	}
	return sub, nil
}
