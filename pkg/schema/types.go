// Package schema declares every request, response and notification shape exchanged with the
// host, keyed by "<operation>@<version>", and classifies inbound values as success, error or
// unrecognized.
package schema

import "encoding/json"

// ErrorCode identifies a failure reported by the host or detected by the client.
type ErrorCode string

const (
	// ErrorCodeUnknownMessage means the host could not interpret the request.
	ErrorCodeUnknownMessage ErrorCode = "unknown-message"
	// ErrorCodeOutdatedContext means a received property bag failed the completeness check.
	ErrorCodeOutdatedContext ErrorCode = "outdated-context"
	// ErrorCodeNotSupported means the host declines this operation version.
	ErrorCodeNotSupported ErrorCode = "not-supported"
)

// Valid reports whether c is one of the declared error codes.
func (c ErrorCode) Valid() bool {
	switch c {
	case ErrorCodeUnknownMessage, ErrorCodeOutdatedContext, ErrorCodeNotSupported:
		return true
	}
	return false
}

// Request is the envelope posted to the host.
type Request struct {
	Type      string          `json:"type"`
	Version   string          `json:"version"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

// Response is the success envelope the host answers with.
type Response struct {
	Type      string          `json:"type"`
	Version   string          `json:"version"`
	RequestID string          `json:"requestId"`
	IsError   bool            `json:"isError"`
	Payload   json.RawMessage `json:"payload"`
}

// ErrorMessage is the error envelope shared by every operation.
type ErrorMessage struct {
	RequestID   string    `json:"requestId"`
	IsError     bool      `json:"isError"`
	Code        ErrorCode `json:"code"`
	Description string    `json:"description"`
}

// Notification is a host push correlated by subscription rather than by request.
type Notification struct {
	Type           string          `json:"type"`
	Version        string          `json:"version"`
	SubscriptionID string          `json:"subscriptionId"`
	Payload        json.RawMessage `json:"payload"`
}

// --- operation payloads ---

// GetContextV1Response is the payload of get-context@1.0.0.
type GetContextV1Response struct {
	Context AppContextV1    `json:"context"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// AppContextV1 is the flat context shape returned by get-context@1.0.0.
type AppContextV1 struct {
	EnvironmentID string     `json:"environmentId"`
	UserID        string     `json:"userId"`
	UserEmail     string     `json:"userEmail"`
	UserRoles     []UserRole `json:"userRoles"`
}

// PropertiesRequest is the request payload of get-context@2.0.0 and observe-context@1.0.0.
type PropertiesRequest struct {
	Properties []PropertyKey `json:"properties"`
}

// PropertiesPayload carries a sparse property bag (get-context@2.0.0 response and
// context-changed-notification@1.0.0).
type PropertiesPayload struct {
	Properties PropertyBag `json:"properties"`
}

// ObserveContextResponse is the payload of observe-context@1.0.0.
type ObserveContextResponse struct {
	SubscriptionID string `json:"subscriptionId"`
}

// UnsubscribeContextRequest is the request payload of unsubscribe-context@1.0.0.
type UnsubscribeContextRequest struct {
	SubscriptionID string `json:"subscriptionId"`
}

// SuccessResponse is the payload of unsubscribe-context@1.0.0 and set-popup-size@1.0.0.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// SetPopupSizeRequest is the request payload of set-popup-size@1.0.0.
type SetPopupSizeRequest struct {
	Width  PopupSizeDimension `json:"width"`
	Height PopupSizeDimension `json:"height"`
}
