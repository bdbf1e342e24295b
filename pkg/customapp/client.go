package customapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morezero/customapp-bridge/pkg/contexts"
	"github.com/morezero/customapp-bridge/pkg/messenger"
	"github.com/morezero/customapp-bridge/pkg/schema"
)

const logPrefix = "customapp:client"

// Client runs the high-level operations over a Messenger.
type Client struct {
	messenger *messenger.Messenger
	registry  *schema.Registry
}

// NewClientParams holds the dependencies of a Client.
type NewClientParams struct {
	Messenger *messenger.Messenger
	// Registry defaults to schema.DefaultRegistry().
	Registry *schema.Registry
}

// NewClient creates a Client.
func NewClient(params NewClientParams) *Client {
	reg := params.Registry
	if reg == nil {
		reg = schema.DefaultRegistry()
	}
	return &Client{messenger: params.Messenger, registry: reg}
}

// call validates payload, sends it as the request of key and classifies the response.
// Host error envelopes come back as *Error.
func (c *Client) call(ctx context.Context, key string, payload any, out any) error {
	d, err := c.registry.LookupKey(key)
	if err != nil {
		return fmt.Errorf("%s - %w", logPrefix, err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s - encode %s: %w", logPrefix, key, err)
	}
	if err := d.ValidateRequestPayload(raw); err != nil {
		return err
	}

	respRaw, err := c.messenger.Send(ctx, messenger.OutboundMessage{
		Type:    d.RequestType,
		Version: d.Version,
		Payload: raw,
	})
	if err != nil {
		return err
	}

	resp, hostErr, err := d.ClassifyResponse(respRaw)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - unrecognized response to %s: %v", logPrefix, key, err))
		return err
	}
	if hostErr != nil {
		return NewError(hostErr.Code, hostErr.Description)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return fmt.Errorf("%s - decode %s payload: %w", logPrefix, key, err)
	}
	return nil
}

// GetContextProperties fetches exactly the requested properties with get-context@2.0.0.
// Unknown keys fail validation before anything is sent.
func (c *Client) GetContextProperties(ctx context.Context, keys []schema.PropertyKey) (schema.PropertyBag, error) {
	var out schema.PropertiesPayload
	if err := c.call(ctx, schema.GetContextV2Key, schema.PropertiesRequest{Properties: keys}, &out); err != nil {
		return nil, err
	}
	if out.Properties == nil {
		out.Properties = schema.PropertyBag{}
	}
	return out.Properties, nil
}

// currentPageProperties asks for the discriminator and returns the property list for it.
func (c *Client) currentPageProperties(ctx context.Context) ([]schema.PropertyKey, error) {
	bag, err := c.GetContextProperties(ctx, []schema.PropertyKey{schema.PropertyCurrentPage})
	if err != nil {
		return nil, err
	}
	page := contexts.CurrentPage(bag)
	props := contexts.PropertiesForPage(page)
	if props == nil {
		return nil, outdatedContextError(fmt.Errorf("%w: page %q", contexts.ErrOutdatedContext, page))
	}
	return props, nil
}

func narrow(bag schema.PropertyBag) (contexts.Context, error) {
	cc, err := contexts.FromProperties(bag)
	if err != nil {
		if errors.Is(err, contexts.ErrOutdatedContext) {
			return nil, outdatedContextError(err)
		}
		return nil, err
	}
	return cc, nil
}

// GetContext discovers the current page, fetches the properties of that page and returns the
// typed context. A bag that fails the completeness check yields an *Error with code
// outdated-context.
func (c *Client) GetContext(ctx context.Context) (contexts.Context, error) {
	props, err := c.currentPageProperties(ctx)
	if err != nil {
		return nil, err
	}
	bag, err := c.GetContextProperties(ctx, props)
	if err != nil {
		return nil, err
	}
	return narrow(bag)
}

// GetAppContext runs the legacy get-context@1.0.0 operation.
func (c *Client) GetAppContext(ctx context.Context) (*AppContext, error) {
	var out schema.GetContextV1Response
	if err := c.call(ctx, schema.GetContextV1Key, nil, &out); err != nil {
		return nil, err
	}
	return &AppContext{Context: out.Context, Config: out.Config}, nil
}

// SetPopupSize asks the host to resize the popup. Dimensions outside the unit's range fail
// locally and are never sent.
func (c *Client) SetPopupSize(ctx context.Context, width, height schema.PopupSizeDimension) (bool, error) {
	var out schema.SuccessResponse
	req := schema.SetPopupSizeRequest{Width: width, Height: height}
	if err := c.call(ctx, schema.SetPopupSizeV1Key, req, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}
