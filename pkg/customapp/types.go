// Package customapp is the public surface for an embedded custom app: fetch and observe the
// host context and resize the popup the host renders the app in.
package customapp

import (
	"encoding/json"

	"github.com/morezero/customapp-bridge/pkg/contexts"
	"github.com/morezero/customapp-bridge/pkg/schema"
)

// Error is a failure reported by the host, or a stale context detected locally.
type Error struct {
	Code        schema.ErrorCode `json:"code"`
	Description string           `json:"description"`

	err error
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Description
}

// Unwrap exposes contexts.ErrOutdatedContext for stale contexts.
func (e *Error) Unwrap() error { return e.err }

// NewError creates an Error.
func NewError(code schema.ErrorCode, description string) *Error {
	return &Error{Code: code, Description: description}
}

func outdatedContextError(cause error) *Error {
	return &Error{
		Code:        schema.ErrorCodeOutdatedContext,
		Description: contexts.OutdatedContextDescription,
		err:         cause,
	}
}

// AppContext is the result of the legacy get-context@1.0.0 operation.
type AppContext struct {
	Context schema.AppContextV1
	// Config is nil when the host sent no app configuration.
	Config json.RawMessage
}

// ContextCallback receives every valid context pushed for a subscription.
type ContextCallback func(contexts.Context)
