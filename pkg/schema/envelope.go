package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecognizedMessage is returned when an inbound value matches neither the declared success
// shape nor the shared error shape.
var ErrUnrecognizedMessage = errors.New("schema: unrecognized message")

func (d Descriptor) unregistered() error {
	return ValidationError{Key: d.Key(), Reason: "descriptor is not registered"}
}

// ValidateRequestPayload checks an outbound payload before it is sent.
func (d Descriptor) ValidateRequestPayload(payload json.RawMessage) error {
	if d.PushOnly() {
		return ValidationError{Key: d.Key(), Reason: "operation cannot be requested"}
	}
	if d.shapes == nil {
		return d.unregistered()
	}
	return withKey(d.Key(), nest("payload", d.shapes.requestPayload.check(payload)))
}

// ValidateRequest checks a complete request envelope, as the host sees it.
func (d Descriptor) ValidateRequest(raw json.RawMessage) (*Request, error) {
	if d.PushOnly() {
		return nil, ValidationError{Key: d.Key(), Reason: "operation cannot be requested"}
	}
	if d.shapes == nil {
		return nil, d.unregistered()
	}
	if err := d.shapes.request.check(raw); err != nil {
		return nil, withKey(d.Key(), err)
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, withKey(d.Key(), err)
	}
	return &req, nil
}

// ValidateResponse checks a value against this operation's success envelope. Members outside
// the envelope are ignored.
func (d Descriptor) ValidateResponse(raw json.RawMessage) (*Response, error) {
	if d.PushOnly() {
		return nil, ValidationError{Key: d.Key(), Reason: "operation has no response"}
	}
	if d.shapes == nil {
		return nil, d.unregistered()
	}
	if err := d.shapes.response.check(raw); err != nil {
		return nil, withKey(d.Key(), err)
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, withKey(d.Key(), err)
	}
	return &resp, nil
}

// ValidateNotification checks a value against this operation's notification envelope.
func (d Descriptor) ValidateNotification(raw json.RawMessage) (*Notification, error) {
	if d.NotificationType == "" {
		return nil, ValidationError{Key: d.Key(), Reason: "operation has no notification"}
	}
	if d.shapes == nil {
		return nil, d.unregistered()
	}
	if err := d.shapes.notification.check(raw); err != nil {
		return nil, withKey(d.Key(), err)
	}
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, withKey(d.Key(), err)
	}
	return &n, nil
}

// MatchError checks a value against the shared error envelope. Members outside the envelope,
// such as a type or version, are ignored.
func MatchError(raw json.RawMessage) (*ErrorMessage, bool) {
	shape, _, err := sharedShapes()
	if err != nil {
		return nil, false
	}
	if err := shape.check(raw); err != nil {
		return nil, false
	}
	var msg ErrorMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, false
	}
	return &msg, true
}

// ClassifyResponse validates raw against the success shape first, then the error shape.
// Exactly one of the returned envelopes is non-nil on success; a value matching neither
// yields an error wrapping ErrUnrecognizedMessage.
func (d Descriptor) ClassifyResponse(raw json.RawMessage) (*Response, *ErrorMessage, error) {
	resp, successErr := d.ValidateResponse(raw)
	if successErr == nil {
		return resp, nil, nil
	}
	if msg, ok := MatchError(raw); ok {
		return nil, msg, nil
	}
	return nil, nil, fmt.Errorf("%w for %s: %v", ErrUnrecognizedMessage, d.Key(), successErr)
}

// NewResponse builds a success envelope answering requestID.
func (d Descriptor) NewResponse(requestID string, payload any) (*Response, error) {
	if d.PushOnly() {
		return nil, ValidationError{Key: d.Key(), Reason: "operation has no response"}
	}
	if d.shapes == nil {
		return nil, d.unregistered()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s - encode %s payload: %w", logPrefix, d.Key(), err)
	}
	if err := withKey(d.Key(), nest("payload", d.shapes.responsePayload.check(raw))); err != nil {
		return nil, err
	}
	return &Response{Type: d.ResponseType, Version: d.Version, RequestID: requestID, IsError: false, Payload: raw}, nil
}

// NewNotification builds a notification envelope for a subscription.
func (d Descriptor) NewNotification(subscriptionID string, payload any) (*Notification, error) {
	if d.NotificationType == "" {
		return nil, ValidationError{Key: d.Key(), Reason: "operation has no notification"}
	}
	if d.shapes == nil {
		return nil, d.unregistered()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s - encode %s payload: %w", logPrefix, d.Key(), err)
	}
	if err := withKey(d.Key(), nest("payload", d.shapes.notificationPayload.check(raw))); err != nil {
		return nil, err
	}
	return &Notification{Type: d.NotificationType, Version: d.Version, SubscriptionID: subscriptionID, Payload: raw}, nil
}

// NewErrorMessage builds the shared error envelope.
func NewErrorMessage(requestID string, code ErrorCode, description string) *ErrorMessage {
	return &ErrorMessage{RequestID: requestID, IsError: true, Code: code, Description: description}
}
