package schema

import (
	"encoding/json"
	"testing"
)

func TestValidatePropertyValue(t *testing.T) {
	tests := []struct {
		key     PropertyKey
		raw     string
		wantErr bool
	}{
		{PropertyEnvironmentID, `"` + testEnvironmentID + `"`, false},
		{PropertyEnvironmentID, `"not-a-uuid"`, true},
		{PropertyEnvironmentID, `null`, true},
		{PropertyUserEmail, `"jane@example.com"`, false},
		{PropertyUserEmail, `"Jane <jane@example.com>"`, true},
		{PropertyUserEmail, `"jane"`, true},
		{PropertyUserRoles, `[{"id":"` + testRoleID + `","codename":null}]`, false},
		{PropertyUserRoles, `[{"id":"` + testRoleID + `"}]`, true},
		{PropertyUserRoles, `[]`, false},
		{PropertyAppConfig, `{"anything":[1,2,3]}`, false},
		{PropertyAppConfig, `null`, false},
		{PropertyValidationErrors, `{}`, false},
		{PropertyValidationErrors, `{"title":["Required"]}`, false},
		{PropertyValidationErrors, `{"title":"Required"}`, true},
		{PropertyCurrentPage, `"itemEditor"`, false},
		{PropertyCurrentPage, `"contentInventory"`, false},
		{PropertyCurrentPage, `"dashboard"`, true},
		{PropertyItemListingSelection, `[{"id":"` + testItemID + `","languageId":"` + testLanguageID + `"}]`, false},
		{PropertyItemListingSelection, `[{"id":"` + testItemID + `"}]`, true},
		{PropertyItemListingFilter, `{"searchPhrase":"","contentTypeIds":[],"collectionIds":[],"spaceIds":[],"contributorIds":[],"workflowStepIds":[],"publishingStates":["draft"],"completionStatuses":["allDone"]}`, false},
		{PropertyItemListingFilter, `{"searchPhrase":"","contentTypeIds":[],"collectionIds":[],"spaceIds":[],"contributorIds":[],"workflowStepIds":[],"publishingStates":["archived"],"completionStatuses":[]}`, true},
		{"favouriteColour", `"blue"`, true},
	}
	for _, tt := range tests {
		err := ValidatePropertyValue(tt.key, json.RawMessage(tt.raw))
		if (err != nil) != tt.wantErr {
			t.Errorf("schema:properties_test - ValidatePropertyValue(%s, %s) err=%v, wantErr=%v", tt.key, tt.raw, err, tt.wantErr)
		}
	}
}

func TestAllPropertyKeys(t *testing.T) {
	keys := AllPropertyKeys()
	if len(keys) != 13 {
		t.Fatalf("schema:properties_test - got %d keys, want 13", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Errorf("schema:properties_test - keys not sorted at %d: %s >= %s", i, keys[i-1], keys[i])
		}
	}
	if IsPropertyKey("favouriteColour") {
		t.Error("schema:properties_test - unknown key reported as known")
	}
}

func TestPropertyBag(t *testing.T) {
	bag := itemEditorBag(t)

	if !bag.Has(PropertyContentItemID) || bag.Has(PropertyAppConfig) {
		t.Error("schema:properties_test - Has reports wrong presence")
	}
	if got := bag.String(PropertyCurrentPage); got != PageItemEditor {
		t.Errorf("schema:properties_test - String(currentPage) = %q", got)
	}
	if got := bag.String(PropertyUserRoles); got != "" {
		t.Errorf("schema:properties_test - String on non-string = %q, want empty", got)
	}

	var roles []UserRole
	if err := bag.Decode(PropertyUserRoles, &roles); err != nil {
		t.Fatalf("schema:properties_test - Decode: %v", err)
	}
	if len(roles) != 1 || roles[0].ID != testRoleID || roles[0].Codename != nil {
		t.Errorf("schema:properties_test - decoded roles %+v", roles)
	}

	picked := bag.Pick([]PropertyKey{PropertyPath, PropertyAppConfig})
	if len(picked) != 1 || !picked.Has(PropertyPath) {
		t.Errorf("schema:properties_test - Pick = %v", picked)
	}

	if err := ValidatePropertyBag(bag); err != nil {
		t.Errorf("schema:properties_test - complete bag rejected: %v", err)
	}
}
