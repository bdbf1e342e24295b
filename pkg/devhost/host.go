// Package devhost answers the custom app protocol the way the hosting application does. It
// backs the local development server and the tests; it is not production host code.
package devhost

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/customapp-bridge/pkg/commsutil"
	"github.com/morezero/customapp-bridge/pkg/events"
	"github.com/morezero/customapp-bridge/pkg/schema"
	"github.com/morezero/customapp-bridge/pkg/transport"
)

const logPrefix = "devhost:host"

type subscription struct {
	properties []schema.PropertyKey
	reply      transport.ReplyFunc
}

// Host holds the context property state and the open subscriptions.
type Host struct {
	registry    *schema.Registry
	publisher   events.EventPublisher
	unsupported map[string]bool

	// changeMu orders state changes with the delivery of their notifications. It is taken
	// before mu.
	changeMu sync.Mutex

	mu         sync.Mutex
	properties schema.PropertyBag
	subs       map[string]*subscription
	popup      *schema.SetPopupSizeRequest
	revision   int
}

// NewHostParams holds the dependencies of a Host.
type NewHostParams struct {
	// Registry defaults to schema.DefaultRegistry().
	Registry  *schema.Registry
	Publisher events.EventPublisher
	// Properties is the initial context state.
	Properties schema.PropertyBag
	// Unsupported lists "<operation>@<version>" keys answered with not-supported.
	Unsupported []string
}

// NewHost creates a Host. The initial properties must pass value validation.
func NewHost(params NewHostParams) (*Host, error) {
	reg := params.Registry
	if reg == nil {
		reg = schema.DefaultRegistry()
	}
	pub := params.Publisher
	if pub == nil {
		pub = events.Discard
	}
	if err := schema.ValidatePropertyBag(params.Properties); err != nil {
		return nil, fmt.Errorf("%s - invalid initial properties: %w", logPrefix, err)
	}
	unsupported := make(map[string]bool, len(params.Unsupported))
	for _, key := range params.Unsupported {
		if _, err := reg.LookupKey(key); err != nil {
			return nil, fmt.Errorf("%s - unsupported list: %w", logPrefix, err)
		}
		unsupported[key] = true
	}
	props := make(schema.PropertyBag, len(params.Properties))
	for k, v := range params.Properties {
		props[k] = v
	}
	return &Host{
		registry:    reg,
		publisher:   pub,
		unsupported: unsupported,
		properties:  props,
		subs:        make(map[string]*subscription),
	}, nil
}

// HandleMessage answers one request envelope through reply. It has the transport.HostFunc
// signature. Envelopes without a usable requestId cannot be answered and are dropped.
func (h *Host) HandleMessage(data []byte, reply transport.ReplyFunc) {
	hdr, err := commsutil.PeekHeader(data)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - dropping non-envelope message: %v", logPrefix, err))
		return
	}
	if hdr.RequestID == nil || !schema.IsUUID(*hdr.RequestID) {
		slog.Debug(fmt.Sprintf("%s - dropping %s without a valid requestId", logPrefix, hdr.Key()))
		return
	}
	requestID := *hdr.RequestID

	slog.Debug(fmt.Sprintf("%s - request=%s id=%s", logPrefix, hdr.Key(), requestID))

	d, ok := h.registry.LookupRequest(hdr.Type, hdr.Version)
	if !ok {
		h.send(reply, h.unknownRequest(requestID, hdr))
		return
	}
	if h.unsupported[d.Key()] {
		h.send(reply, schema.NewErrorMessage(requestID, schema.ErrorCodeNotSupported,
			fmt.Sprintf("%s is not supported by this host", d.Key())))
		return
	}

	req, err := d.ValidateRequest(data)
	if err != nil {
		h.send(reply, schema.NewErrorMessage(requestID, schema.ErrorCodeUnknownMessage, err.Error()))
		return
	}

	h.send(reply, h.dispatch(d, req, reply))
}

func (h *Host) unknownRequest(requestID string, hdr commsutil.EnvelopeHeader) *schema.ErrorMessage {
	if op, ok := schema.OperationFromRequestType(hdr.Type); ok {
		if _, err := h.registry.Resolve(op, ""); err == nil {
			return schema.NewErrorMessage(requestID, schema.ErrorCodeNotSupported,
				fmt.Sprintf("version %s of %s is not supported", hdr.Version, op))
		}
	}
	return schema.NewErrorMessage(requestID, schema.ErrorCodeUnknownMessage,
		fmt.Sprintf("unknown message type %q", hdr.Type))
}

// dispatch routes a validated request to its handler and returns the envelope to send.
func (h *Host) dispatch(d schema.Descriptor, req *schema.Request, reply transport.ReplyFunc) interface{} {
	var (
		payload interface{}
		err     error
	)
	switch d.Key() {
	case schema.GetContextV1Key:
		payload, err = h.handleGetContextV1()
	case schema.GetContextV2Key:
		payload, err = h.handleGetContext(req)
	case schema.ObserveContextV1Key:
		payload, err = h.handleObserveContext(req, reply)
	case schema.UnsubscribeContextV1Key:
		payload, err = h.handleUnsubscribeContext(req)
	case schema.SetPopupSizeV1Key:
		payload, err = h.handleSetPopupSize(req)
	default:
		return schema.NewErrorMessage(req.RequestID, schema.ErrorCodeNotSupported,
			fmt.Sprintf("%s has no handler", d.Key()))
	}
	if err != nil {
		return schema.NewErrorMessage(req.RequestID, schema.ErrorCodeUnknownMessage, err.Error())
	}

	resp, err := d.NewResponse(req.RequestID, payload)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - %s produced an invalid response: %v", logPrefix, d.Key(), err))
		return schema.NewErrorMessage(req.RequestID, schema.ErrorCodeUnknownMessage, err.Error())
	}
	return resp
}

func (h *Host) send(reply transport.ReplyFunc, envelope interface{}) {
	data, err := commsutil.EncodeEnvelope(envelope)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		return
	}
	if err := reply(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to send response: %v", logPrefix, err))
	}
}

func (h *Host) handleGetContextV1() (*schema.GetContextV1Response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out schema.GetContextV1Response
	for key, target := range map[schema.PropertyKey]interface{}{
		schema.PropertyEnvironmentID: &out.Context.EnvironmentID,
		schema.PropertyUserID:        &out.Context.UserID,
		schema.PropertyUserEmail:     &out.Context.UserEmail,
		schema.PropertyUserRoles:     &out.Context.UserRoles,
	} {
		if !h.properties.Has(key) {
			return nil, fmt.Errorf("context property %s is not available", key)
		}
		if err := h.properties.Decode(key, target); err != nil {
			return nil, err
		}
	}
	if out.Context.UserRoles == nil {
		out.Context.UserRoles = []schema.UserRole{}
	}
	if raw, ok := h.properties[schema.PropertyAppConfig]; ok {
		out.Config = raw
	}
	return &out, nil
}

func (h *Host) handleGetContext(req *schema.Request) (*schema.PropertiesPayload, error) {
	var in schema.PropertiesRequest
	if err := json.Unmarshal(req.Payload, &in); err != nil {
		return nil, fmt.Errorf("failed to parse get-context payload: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return &schema.PropertiesPayload{Properties: h.properties.Pick(in.Properties)}, nil
}

func (h *Host) handleObserveContext(req *schema.Request, reply transport.ReplyFunc) (*schema.ObserveContextResponse, error) {
	var in schema.PropertiesRequest
	if err := json.Unmarshal(req.Payload, &in); err != nil {
		return nil, fmt.Errorf("failed to parse observe-context payload: %w", err)
	}
	id := newSubscriptionID()

	h.mu.Lock()
	h.subs[id] = &subscription{properties: in.Properties, reply: reply}
	h.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - opened subscription %s for %d properties", logPrefix, id, len(in.Properties)))
	return &schema.ObserveContextResponse{SubscriptionID: id}, nil
}

func (h *Host) handleUnsubscribeContext(req *schema.Request) (*schema.SuccessResponse, error) {
	var in schema.UnsubscribeContextRequest
	if err := json.Unmarshal(req.Payload, &in); err != nil {
		return nil, fmt.Errorf("failed to parse unsubscribe-context payload: %w", err)
	}

	h.mu.Lock()
	_, ok := h.subs[in.SubscriptionID]
	delete(h.subs, in.SubscriptionID)
	h.mu.Unlock()

	if ok {
		slog.Info(fmt.Sprintf("%s - closed subscription %s", logPrefix, in.SubscriptionID))
	}
	return &schema.SuccessResponse{Success: ok}, nil
}

func (h *Host) handleSetPopupSize(req *schema.Request) (*schema.SuccessResponse, error) {
	var in schema.SetPopupSizeRequest
	if err := json.Unmarshal(req.Payload, &in); err != nil {
		return nil, fmt.Errorf("failed to parse set-popup-size payload: %w", err)
	}

	h.mu.Lock()
	h.popup = &in
	h.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - popup resized to %s x %s", logPrefix, in.Width, in.Height))
	return &schema.SuccessResponse{Success: true}, nil
}

// Properties returns a copy of the current context state.
func (h *Host) Properties() schema.PropertyBag {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(schema.PropertyBag, len(h.properties))
	for k, v := range h.properties {
		out[k] = v
	}
	return out
}

// PopupSize returns the last size requested by a client.
func (h *Host) PopupSize() (schema.SetPopupSizeRequest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.popup == nil {
		return schema.SetPopupSizeRequest{}, false
	}
	return *h.popup, true
}

// SubscriptionCount returns the number of open subscriptions.
func (h *Host) SubscriptionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Revision returns the number of applied context changes.
func (h *Host) Revision() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revision
}
