package customapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/customapp-bridge/pkg/contexts"
	"github.com/morezero/customapp-bridge/pkg/schema"
)

// Subscription is an open observe-context subscription.
type Subscription struct {
	// ID is the host-assigned subscription id.
	ID string
	// Context is the snapshot fetched right after the subscription was opened.
	Context contexts.Context

	client *Client
	mu     sync.Mutex
	closed bool
}

// ObserveContext discovers the current page, subscribes to its properties, fetches an initial
// snapshot and then forwards every valid pushed context to callback. Stale pushes are dropped.
// Notifications are delivered on the transport's read loop, so callback must not block on
// further client calls.
func (c *Client) ObserveContext(ctx context.Context, callback ContextCallback) (*Subscription, error) {
	props, err := c.currentPageProperties(ctx)
	if err != nil {
		return nil, err
	}

	var ack schema.ObserveContextResponse
	if err := c.call(ctx, schema.ObserveContextV1Key, schema.PropertiesRequest{Properties: props}, &ack); err != nil {
		return nil, err
	}

	sub := &Subscription{ID: ack.SubscriptionID, client: c}
	c.messenger.AddNotificationHandler(ack.SubscriptionID, c.notificationHandler(ack.SubscriptionID, callback))

	bag, err := c.GetContextProperties(ctx, props)
	if err == nil {
		sub.Context, err = narrow(bag)
	}
	if err != nil {
		if uerr := sub.Unsubscribe(context.WithoutCancel(ctx)); uerr != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe %s after failed snapshot: %v", logPrefix, ack.SubscriptionID, uerr))
		}
		return nil, err
	}

	slog.Debug(fmt.Sprintf("%s - observing subscriptionId=%s page=%s", logPrefix, sub.ID, sub.Context.Page()))
	return sub, nil
}

func (c *Client) notificationHandler(subscriptionID string, callback ContextCallback) func(json.RawMessage) {
	return func(raw json.RawMessage) {
		d, err := c.registry.LookupKey(schema.ContextChangedNotificationV1Key)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - %v", logPrefix, err))
			return
		}
		n, err := d.ValidateNotification(raw)
		if err != nil {
			slog.Debug(fmt.Sprintf("%s - dropping invalid notification for %s: %v", logPrefix, subscriptionID, err))
			return
		}
		var payload schema.PropertiesPayload
		if err := json.Unmarshal(n.Payload, &payload); err != nil {
			slog.Debug(fmt.Sprintf("%s - dropping notification for %s: %v", logPrefix, subscriptionID, err))
			return
		}
		cc, err := contexts.FromProperties(payload.Properties)
		if err != nil {
			slog.Debug(fmt.Sprintf("%s - dropping stale context for %s: %v", logPrefix, subscriptionID, err))
			return
		}
		callback(cc)
	}
}

// Unsubscribe removes the local handler, then asks the host to close the subscription.
// Notifications arriving after the handler is removed are dropped. Calling it again is a no-op.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.client.messenger.RemoveNotificationHandler(s.ID)

	var out schema.SuccessResponse
	req := schema.UnsubscribeContextRequest{SubscriptionID: s.ID}
	if err := s.client.call(ctx, schema.UnsubscribeContextV1Key, req, &out); err != nil {
		return err
	}
	if !out.Success {
		slog.Warn(fmt.Sprintf("%s - host did not confirm unsubscribe of %s", logPrefix, s.ID))
	}
	return nil
}
