package schema

import (
	"encoding/json"
	"testing"
)

const (
	testRequestID     = "7f3c1c52-3e0a-4a8b-9a57-2f8e1d2c4b10"
	testEnvironmentID = "b1a7c0de-0000-4000-8000-000000000001"
	testItemID        = "c2b8d1ef-1111-4111-8111-000000000002"
	testLanguageID    = "00000000-0000-0000-0000-000000000000"
	testRoleID        = "d3c9e2f0-2222-4222-8222-000000000003"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("schema:testdata_test - marshal: %v", err)
	}
	return b
}

// itemEditorBag returns a property bag that is complete for the item editor page.
func itemEditorBag(t *testing.T) PropertyBag {
	t.Helper()
	bag := PropertyBag{}
	values := map[PropertyKey]any{
		PropertyPath:             "/content/items/abc",
		PropertyPageTitle:        "Edit item",
		PropertyEnvironmentID:    testEnvironmentID,
		PropertyUserID:           "user-1",
		PropertyUserEmail:        "jane@example.com",
		PropertyUserRoles:        []UserRole{{ID: testRoleID, Codename: nil}},
		PropertyContentItemID:    testItemID,
		PropertyLanguageID:       testLanguageID,
		PropertyValidationErrors: ValidationErrors{},
		PropertyCurrentPage:      PageItemEditor,
	}
	for k, v := range values {
		if err := bag.Set(k, v); err != nil {
			t.Fatalf("schema:testdata_test - Set(%s): %v", k, err)
		}
	}
	return bag
}

// samplePayloads holds a request and success-response payload per request/response operation.
func samplePayloads(t *testing.T) map[string][2]any {
	t.Helper()
	return map[string][2]any{
		GetContextV1Key: {nil, map[string]any{
			"context": map[string]any{
				"environmentId": testEnvironmentID,
				"userId":        "user-1",
				"userEmail":     "jane@example.com",
				"userRoles":     []map[string]any{{"id": testRoleID, "codename": "reviewer"}},
			},
			"config": map[string]any{"feature": true},
		}},
		GetContextV2Key: {
			PropertiesRequest{Properties: []PropertyKey{PropertyEnvironmentID, PropertyCurrentPage}},
			PropertiesPayload{Properties: itemEditorBag(t)},
		},
		ObserveContextV1Key: {
			PropertiesRequest{Properties: []PropertyKey{PropertyPath}},
			ObserveContextResponse{SubscriptionID: "sub-1"},
		},
		UnsubscribeContextV1Key: {
			UnsubscribeContextRequest{SubscriptionID: "sub-1"},
			SuccessResponse{Success: true},
		},
		SetPopupSizeV1Key: {
			SetPopupSizeRequest{Width: Pixels(800), Height: Percent(50)},
			SuccessResponse{Success: true},
		},
	}
}
