// Package events defines event types and publisher interfaces for host context change events.
package events

// ContextChangedEvent is emitted when the development host's context properties change.
type ContextChangedEvent struct {
	CurrentPage       string   `json:"currentPage"`
	ChangedProperties []string `json:"changedProperties"`
	// NotifiedSubscriptions counts the subscriptions that received a notification.
	NotifiedSubscriptions int    `json:"notifiedSubscriptions"`
	Revision              int    `json:"revision"`
	Timestamp             string `json:"timestamp"`
}
