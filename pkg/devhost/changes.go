package devhost

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/customapp-bridge/pkg/commsutil"
	"github.com/morezero/customapp-bridge/pkg/events"
	"github.com/morezero/customapp-bridge/pkg/schema"
)

func newSubscriptionID() string {
	return uuid.NewString()
}

// UpdateProperties merges updates into the context state and notifies every subscription
// observing a changed property. It returns the changed keys.
func (h *Host) UpdateProperties(ctx context.Context, updates schema.PropertyBag) ([]schema.PropertyKey, error) {
	if err := schema.ValidatePropertyBag(updates); err != nil {
		return nil, fmt.Errorf("%s - invalid properties: %w", logPrefix, err)
	}
	return h.apply(ctx, func(current schema.PropertyBag) schema.PropertyBag {
		next := make(schema.PropertyBag, len(current)+len(updates))
		for k, v := range current {
			next[k] = v
		}
		for k, v := range updates {
			next[k] = v
		}
		return next
	})
}

// ReplaceProperties swaps the whole context state, e.g. when the user navigates to another page.
func (h *Host) ReplaceProperties(ctx context.Context, bag schema.PropertyBag) ([]schema.PropertyKey, error) {
	if err := schema.ValidatePropertyBag(bag); err != nil {
		return nil, fmt.Errorf("%s - invalid properties: %w", logPrefix, err)
	}
	return h.apply(ctx, func(schema.PropertyBag) schema.PropertyBag {
		next := make(schema.PropertyBag, len(bag))
		for k, v := range bag {
			next[k] = v
		}
		return next
	})
}

// RemoveProperties drops keys from the context state. Subscribers then receive bags missing
// those keys, which clients treat as outdated.
func (h *Host) RemoveProperties(ctx context.Context, keys ...schema.PropertyKey) ([]schema.PropertyKey, error) {
	return h.apply(ctx, func(current schema.PropertyBag) schema.PropertyBag {
		next := make(schema.PropertyBag, len(current))
		for k, v := range current {
			next[k] = v
		}
		for _, k := range keys {
			delete(next, k)
		}
		return next
	})
}

type pendingNotification struct {
	id   string
	sub  *subscription
	data []byte
}

func (h *Host) apply(ctx context.Context, mutate func(schema.PropertyBag) schema.PropertyBag) ([]schema.PropertyKey, error) {
	d, err := h.registry.LookupKey(schema.ContextChangedNotificationV1Key)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}

	h.changeMu.Lock()
	defer h.changeMu.Unlock()

	h.mu.Lock()
	next := mutate(h.properties)
	changed := diffKeys(h.properties, next)
	if len(changed) == 0 {
		h.mu.Unlock()
		return nil, nil
	}
	h.properties = next
	h.revision++
	revision := h.revision
	page := next.String(schema.PropertyCurrentPage)

	var outgoing []pendingNotification
	for id, sub := range h.subs {
		if !intersects(sub.properties, changed) {
			continue
		}
		n, err := d.NewNotification(id, schema.PropertiesPayload{Properties: next.Pick(sub.properties)})
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to build notification for %s: %v", logPrefix, id, err))
			continue
		}
		data, err := commsutil.EncodeEnvelope(n)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to encode notification for %s: %v", logPrefix, id, err))
			continue
		}
		outgoing = append(outgoing, pendingNotification{id: id, sub: sub, data: data})
	}
	h.mu.Unlock()

	delivered := 0
	for _, n := range outgoing {
		if err := n.sub.reply(n.data); err != nil {
			slog.Warn(fmt.Sprintf("%s - dropping subscription %s: %v", logPrefix, n.id, err))
			h.mu.Lock()
			delete(h.subs, n.id)
			h.mu.Unlock()
			continue
		}
		delivered++
	}

	names := make([]string, len(changed))
	for i, k := range changed {
		names[i] = string(k)
	}
	event := &events.ContextChangedEvent{
		CurrentPage:           page,
		ChangedProperties:     names,
		NotifiedSubscriptions: delivered,
		Revision:              revision,
		Timestamp:             time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.publisher.PublishChanged(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish change event: %v", logPrefix, err))
	}

	slog.Info(fmt.Sprintf("%s - revision %d changed %v, notified %d subscriptions", logPrefix, revision, names, delivered))
	return changed, nil
}

// diffKeys returns the keys added, removed or modified between a and b, sorted.
func diffKeys(a, b schema.PropertyBag) []schema.PropertyKey {
	var out []schema.PropertyKey
	for k, v := range b {
		if old, ok := a[k]; !ok || !bytes.Equal(old, v) {
			out = append(out, k)
		}
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func intersects(watched, changed []schema.PropertyKey) bool {
	for _, w := range watched {
		for _, c := range changed {
			if w == c {
				return true
			}
		}
	}
	return false
}
