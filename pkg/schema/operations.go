package schema

import (
	"encoding/json"
	"sync"

	"github.com/morezero/customapp-bridge/pkg/semver"
)

// Operation names.
const (
	OperationGetContext                 = "get-context"
	OperationObserveContext             = "observe-context"
	OperationUnsubscribeContext         = "unsubscribe-context"
	OperationContextChangedNotification = "context-changed-notification"
	OperationSetPopupSize               = "set-popup-size"
)

// Keys of the built-in operation versions.
const (
	GetContextV1Key                 = "get-context@1.0.0"
	GetContextV2Key                 = "get-context@2.0.0"
	ObserveContextV1Key             = "observe-context@1.0.0"
	UnsubscribeContextV1Key         = "unsubscribe-context@1.0.0"
	ContextChangedNotificationV1Key = "context-changed-notification@1.0.0"
	SetPopupSizeV1Key               = "set-popup-size@1.0.0"
)

// Payload schemas of the built-in operation versions.
const (
	nullPayloadSchema = `{"type": "null"}`

	getContextV1ResponseSchema = `{
  "type": "object",
  "required": ["context"],
  "properties": {
    "context": {"$ref": "defs.json#/$defs/appContextV1"},
    "config": true
  }
}`

	propertiesRequestSchema = `{
  "type": "object",
  "required": ["properties"],
  "properties": {
    "properties": {"$ref": "defs.json#/$defs/propertyKeyList"}
  }
}`

	propertiesPayloadSchema = `{
  "type": "object",
  "required": ["properties"],
  "properties": {
    "properties": {"$ref": "defs.json#/$defs/propertyBag"}
  }
}`

	subscriptionIDSchema = `{
  "type": "object",
  "required": ["subscriptionId"],
  "properties": {
    "subscriptionId": {"type": "string"}
  }
}`

	successSchema = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success": {"type": "boolean"}
  }
}`

	setPopupSizeRequestSchema = `{
  "type": "object",
  "required": ["width", "height"],
  "properties": {
    "width": {"$ref": "defs.json#/$defs/popupWidth"},
    "height": {"$ref": "defs.json#/$defs/popupHeight"}
  }
}`
)

func requestResponse(operation, version, status, description, req, resp string) Descriptor {
	return Descriptor{
		Operation:      operation,
		Version:        version,
		Status:         status,
		Description:    description,
		RequestType:    RequestTypeFor(operation),
		ResponseType:   ResponseTypeFor(operation),
		RequestSchema:  json.RawMessage(req),
		ResponseSchema: json.RawMessage(resp),
	}
}

// BuiltinDescriptors returns the operation versions this module speaks. The descriptors are
// not compiled until they are registered.
func BuiltinDescriptors() []Descriptor {
	return []Descriptor{
		requestResponse(OperationGetContext, "1.0.0", semver.StatusDeprecated,
			"Flat environment and user context plus app config.",
			nullPayloadSchema, getContextV1ResponseSchema),
		requestResponse(OperationGetContext, "2.0.0", semver.StatusActive,
			"Fetch the requested subset of context properties.",
			propertiesRequestSchema, propertiesPayloadSchema),
		requestResponse(OperationObserveContext, "1.0.0", semver.StatusActive,
			"Open a subscription for changes of the requested properties.",
			propertiesRequestSchema, subscriptionIDSchema),
		requestResponse(OperationUnsubscribeContext, "1.0.0", semver.StatusActive,
			"Close a subscription opened by observe-context.",
			subscriptionIDSchema, successSchema),
		{
			Operation:          OperationContextChangedNotification,
			Version:            "1.0.0",
			Status:             semver.StatusActive,
			Description:        "Pushed property bag for an open subscription.",
			NotificationType:   OperationContextChangedNotification,
			NotificationSchema: json.RawMessage(propertiesPayloadSchema),
		},
		requestResponse(OperationSetPopupSize, "1.0.0", semver.StatusActive,
			"Resize the host-rendered popup.",
			setPopupSizeRequestSchema, successSchema),
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns a shared registry holding BuiltinDescriptors.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewBuiltinRegistry()
	})
	return defaultRegistry
}

// NewBuiltinRegistry returns a fresh registry holding BuiltinDescriptors.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, d := range BuiltinDescriptors() {
		r.MustRegister(d)
	}
	return r
}
