package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/morezero/customapp-bridge/pkg/contexts"
)

const publisherLogPrefix = "events:publisher"

// EventPublisher publishes host context change events.
type EventPublisher interface {
	PublishChanged(ctx context.Context, event *ContextChangedEvent) error
}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(ctx context.Context, event *ContextChangedEvent) error

// PublishChanged calls f.
func (f PublisherFunc) PublishChanged(ctx context.Context, event *ContextChangedEvent) error {
	return f(ctx, event)
}

// Discard drops every event.
var Discard EventPublisher = PublisherFunc(func(context.Context, *ContextChangedEvent) error { return nil })

// PageFilter forwards only the change events of selected pages.
type PageFilter struct {
	next  EventPublisher
	pages map[string]bool
}

// NewPageFilter wraps next so that only events whose currentPage is one of pages reach it.
// Every page must be a known page discriminator.
func NewPageFilter(next EventPublisher, pages []string) (*PageFilter, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s - page filter needs at least one page", publisherLogPrefix)
	}
	known := contexts.Pages()
	set := make(map[string]bool, len(pages))
	for _, p := range pages {
		p = strings.TrimSpace(p)
		if !slices.Contains(known, p) {
			return nil, fmt.Errorf("%s - unknown page %q, want one of %v", publisherLogPrefix, p, known)
		}
		set[p] = true
	}
	return &PageFilter{next: next, pages: set}, nil
}

// PublishChanged forwards event when its page is selected.
func (f *PageFilter) PublishChanged(ctx context.Context, event *ContextChangedEvent) error {
	if !f.pages[event.CurrentPage] {
		slog.Debug(fmt.Sprintf("%s - Skipping change event revision=%d page=%q", publisherLogPrefix, event.Revision, event.CurrentPage))
		return nil
	}
	return f.next.PublishChanged(ctx, event)
}
