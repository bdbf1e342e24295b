package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/morezero/customapp-bridge/pkg/semver"
)

func TestBuiltinRegistry_Keys(t *testing.T) {
	r := NewBuiltinRegistry()
	want := []string{
		ContextChangedNotificationV1Key,
		GetContextV1Key,
		GetContextV2Key,
		ObserveContextV1Key,
		SetPopupSizeV1Key,
		UnsubscribeContextV1Key,
	}
	got := r.Descriptors()
	if len(got) != len(want) {
		t.Fatalf("schema:registry_test - got %d descriptors, want %d", len(got), len(want))
	}
	for i, d := range got {
		if d.Key() != want[i] {
			t.Errorf("schema:registry_test - descriptor[%d] = %s, want %s", i, d.Key(), want[i])
		}
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewBuiltinRegistry()
	before, _ := r.Lookup(OperationGetContext, "2.0.0")

	err := r.Register(Descriptor{
		Operation:   OperationGetContext,
		Version:     "2.0.0",
		Description: "replacement",
		RequestType: RequestTypeFor(OperationGetContext),
	})
	if !errors.Is(err, ErrDuplicateOperation) {
		t.Fatalf("schema:registry_test - expected ErrDuplicateOperation, got %v", err)
	}

	after, _ := r.Lookup(OperationGetContext, "2.0.0")
	if after.Description != before.Description {
		t.Errorf("schema:registry_test - descriptor was mutated: %q", after.Description)
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
	}{
		{name: "uppercase operation", d: Descriptor{Operation: "GetContext", Version: "1.0.0"}},
		{name: "empty operation", d: Descriptor{Operation: "", Version: "1.0.0"}},
		{name: "non-strict version", d: Descriptor{Operation: "get-context", Version: "3"}},
		{name: "empty version", d: Descriptor{Operation: "get-context", Version: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewRegistry().Register(tt.d); err == nil {
				t.Error("schema:registry_test - expected error")
			}
		})
	}
}

func TestRegistry_NewVersionDoesNotTouchOld(t *testing.T) {
	r := NewBuiltinRegistry()
	r.MustRegister(Descriptor{
		Operation:    OperationSetPopupSize,
		Version:      "2.0.0",
		RequestType:  RequestTypeFor(OperationSetPopupSize),
		ResponseType: ResponseTypeFor(OperationSetPopupSize),
		RequestSchema: json.RawMessage(`{
  "type": "object",
  "required": ["width"],
  "properties": {"width": {"$ref": "defs.json#/$defs/popupWidth"}}
}`),
	})

	v2, ok := r.Lookup(OperationSetPopupSize, "2.0.0")
	if !ok {
		t.Fatal("schema:registry_test - set-popup-size@2.0.0 missing")
	}
	if err := v2.ValidateRequestPayload(json.RawMessage(`{"width":{"unit":"px","value":300}}`)); err != nil {
		t.Errorf("schema:registry_test - 2.0.0 rejected a width-only payload: %v", err)
	}
	if err := v2.ValidateRequestPayload(json.RawMessage(`{"width":{"unit":"px","value":100}}`)); err == nil {
		t.Error("schema:registry_test - 2.0.0 should enforce the shared width range")
	}
	if _, err := v2.NewResponse(testRequestID, map[string]any{"anything": true}); err != nil {
		t.Errorf("schema:registry_test - missing response schema should accept any payload: %v", err)
	}

	v1, ok := r.Lookup(OperationSetPopupSize, "1.0.0")
	if !ok {
		t.Fatal("schema:registry_test - set-popup-size@1.0.0 missing")
	}
	payload := mustJSON(t, SetPopupSizeRequest{Width: Pixels(100), Height: Pixels(400)})
	if err := v1.ValidateRequestPayload(payload); err == nil {
		t.Error("schema:registry_test - 1.0.0 should still enforce its ranges")
	}
	if err := v1.ValidateRequestPayload(json.RawMessage(`{"width":{"unit":"px","value":300}}`)); err == nil {
		t.Error("schema:registry_test - 1.0.0 should still require a height")
	}
}

func TestRegistry_RegisterBrokenSchema(t *testing.T) {
	r := NewBuiltinRegistry()
	err := r.Register(Descriptor{
		Operation:     "open-dialog",
		Version:       "1.0.0",
		RequestType:   RequestTypeFor("open-dialog"),
		ResponseType:  ResponseTypeFor("open-dialog"),
		RequestSchema: json.RawMessage(`{"$ref": "defs.json#/$defs/noSuchDefinition"}`),
	})
	if err == nil {
		t.Fatal("schema:registry_test - expected compile error")
	}
	if _, ok := r.Lookup("open-dialog", "1.0.0"); ok {
		t.Error("schema:registry_test - descriptor with a broken schema was registered")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewBuiltinRegistry()
	tests := []struct {
		operation string
		rangeStr  string
		want      string
		wantErr   bool
	}{
		{operation: OperationGetContext, rangeStr: "", want: "2.0.0"},
		{operation: OperationGetContext, rangeStr: "2", want: "2.0.0"},
		{operation: OperationGetContext, rangeStr: "1", want: "1.0.0"},
		{operation: OperationGetContext, rangeStr: "^1.0.0", want: "1.0.0"},
		{operation: OperationGetContext, rangeStr: ">=1.0.0", want: "2.0.0"},
		{operation: OperationGetContext, rangeStr: "1.0.0", want: "1.0.0"},
		{operation: OperationGetContext, rangeStr: "^3.0.0", wantErr: true},
		{operation: "missing-op", rangeStr: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.operation+"@"+tt.rangeStr, func(t *testing.T) {
			d, err := r.Resolve(tt.operation, tt.rangeStr)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownOperation) {
					t.Errorf("schema:registry_test - expected ErrUnknownOperation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("schema:registry_test - unexpected error: %v", err)
			}
			if d.Version != tt.want {
				t.Errorf("schema:registry_test - resolved %s, want %s", d.Version, tt.want)
			}
		})
	}
}

func TestRegistry_ResolveRef(t *testing.T) {
	r := NewBuiltinRegistry()
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "get-context", want: GetContextV2Key},
		{ref: "get-context@1", want: GetContextV1Key},
		{ref: "get-context@^2.0.0", want: GetContextV2Key},
		{ref: " set-popup-size@1.0.0 ", want: SetPopupSizeV1Key},
		{ref: "get-context@", wantErr: true},
		{ref: "GetContext", wantErr: true},
		{ref: "open-dialog", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			d, err := r.ResolveRef(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Errorf("schema:registry_test - ResolveRef(%q) expected error, got %s", tt.ref, d.Key())
				}
				return
			}
			if err != nil || d.Key() != tt.want {
				t.Errorf("schema:registry_test - ResolveRef(%q) = %s, %v; want %s", tt.ref, d.Key(), err, tt.want)
			}
		})
	}
}

func TestDefinitions(t *testing.T) {
	var doc struct {
		Defs map[string]json.RawMessage `json:"$defs"`
	}
	if err := json.Unmarshal(Definitions(), &doc); err != nil {
		t.Fatalf("schema:registry_test - definitions are not JSON: %v", err)
	}
	for _, name := range []string{"uuid", "email", "propertyBag", "propertyKeyList", "popupWidth", "popupHeight", "errorCode"} {
		if _, ok := doc.Defs[name]; !ok {
			t.Errorf("schema:registry_test - definition %s missing", name)
		}
	}
}

func TestRegistry_LookupKey(t *testing.T) {
	r := NewBuiltinRegistry()

	d, err := r.LookupKey("get-context@1.0.0")
	if err != nil {
		t.Fatalf("schema:registry_test - unexpected error: %v", err)
	}
	if d.Status != semver.StatusDeprecated {
		t.Errorf("schema:registry_test - get-context@1.0.0 status = %q, want deprecated", d.Status)
	}

	for _, key := range []string{"get-context@2", "get-context@9.9.9", "Bad@1.0.0"} {
		if _, err := r.LookupKey(key); err == nil {
			t.Errorf("schema:registry_test - LookupKey(%q) expected error", key)
		}
	}
}

func TestRegistry_LookupRequest(t *testing.T) {
	r := NewBuiltinRegistry()

	d, ok := r.LookupRequest("observe-context-request", "1.0.0")
	if !ok || d.Operation != OperationObserveContext {
		t.Fatalf("schema:registry_test - LookupRequest = %+v, %v", d, ok)
	}
	if _, ok := r.LookupRequest("context-changed-notification", "1.0.0"); ok {
		t.Error("schema:registry_test - push-only operation must not be requestable")
	}
}

func TestOperationFromRequestType(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"get-context-request", "get-context", true},
		{"set-popup-size-request", "set-popup-size", true},
		{"-request", "", false},
		{"get-context-response", "get-context-response", false},
	}
	for _, tt := range tests {
		got, ok := OperationFromRequestType(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("schema:registry_test - OperationFromRequestType(%q) = %q, %v", tt.in, got, ok)
		}
	}
}
