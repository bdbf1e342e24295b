package customapp

import (
	"sync/atomic"
	"testing"

	"github.com/morezero/customapp-bridge/pkg/devhost"
	"github.com/morezero/customapp-bridge/pkg/messenger"
	"github.com/morezero/customapp-bridge/pkg/schema"
	"github.com/morezero/customapp-bridge/pkg/transport"
)

const testPrefix = "customapp:client_test"

type harness struct {
	client    *Client
	host      *devhost.Host
	messenger *messenger.Messenger
	posted    atomic.Int32
}

// newHarness wires a Client to a development host over an in-process pipe.
func newHarness(t *testing.T, params devhost.NewHostParams) *harness {
	t.Helper()
	if params.Properties == nil {
		params.Properties = itemEditorBag(t)
	}
	host, err := devhost.NewHost(params)
	if err != nil {
		t.Fatalf("%s - NewHost: %v", testPrefix, err)
	}

	h := &harness{host: host}
	pipe := transport.NewPipe(host.HandleMessage)
	t.Cleanup(func() { _ = pipe.Close() })

	h.messenger = messenger.New(messenger.TransportFunc(func(data []byte) error {
		h.posted.Add(1)
		return pipe.PostMessage(data)
	}))
	pipe.Listen(h.messenger.HandleMessage)
	h.client = NewClient(NewClientParams{Messenger: h.messenger})
	return h
}

func sharedBag(t *testing.T, page string) schema.PropertyBag {
	t.Helper()
	bag := schema.PropertyBag{}
	set := func(k schema.PropertyKey, v any) {
		if err := bag.Set(k, v); err != nil {
			t.Fatalf("%s - Set(%s): %v", testPrefix, k, err)
		}
	}
	set(schema.PropertyPath, "/content")
	set(schema.PropertyPageTitle, "Content")
	set(schema.PropertyEnvironmentID, "b1a7c0de-0000-4000-8000-000000000001")
	set(schema.PropertyUserID, "user-1")
	set(schema.PropertyUserEmail, "jane@example.com")
	set(schema.PropertyUserRoles, []schema.UserRole{{ID: "f58733b9-520b-406b-9d45-eb15a2baee96"}})
	set(schema.PropertyCurrentPage, page)
	return bag
}

func itemEditorBag(t *testing.T) schema.PropertyBag {
	t.Helper()
	bag := sharedBag(t, schema.PageItemEditor)
	_ = bag.Set(schema.PropertyContentItemID, "c2b8d1ef-1111-4111-8111-000000000002")
	_ = bag.Set(schema.PropertyLanguageID, "00000000-0000-0000-0000-000000000000")
	_ = bag.Set(schema.PropertyValidationErrors, schema.ValidationErrors{"title": {"Required"}})
	_ = bag.Set(schema.PropertyAppConfig, map[string]string{"theme": "dark"})
	return bag
}

func itemListingBag(t *testing.T) schema.PropertyBag {
	t.Helper()
	bag := sharedBag(t, schema.PageItemListing)
	_ = bag.Set(schema.PropertyLanguageID, "00000000-0000-0000-0000-000000000000")
	_ = bag.Set(schema.PropertyItemListingFilter, schema.ItemListingFilter{
		SearchPhrase:       "roast",
		ContentTypeIDs:     []string{},
		CollectionIDs:      []string{},
		SpaceIDs:           []string{},
		ContributorIDs:     []string{},
		WorkflowStepIDs:    []string{},
		PublishingStates:   []schema.PublishingState{schema.PublishingStateDraft},
		CompletionStatuses: []schema.VariantCompletionStatus{},
	})
	_ = bag.Set(schema.PropertyItemListingSelection, []schema.ItemListingSelectionEntry{
		{ID: "c2b8d1ef-1111-4111-8111-000000000002", LanguageID: "00000000-0000-0000-0000-000000000000"},
	})
	return bag
}
