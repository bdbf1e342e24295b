package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// PropertyKey names one context property. The set of keys is closed.
type PropertyKey string

// Context property keys.
const (
	PropertyEnvironmentID        PropertyKey = "environmentId"
	PropertyUserID               PropertyKey = "userId"
	PropertyUserEmail            PropertyKey = "userEmail"
	PropertyUserRoles            PropertyKey = "userRoles"
	PropertyAppConfig            PropertyKey = "appConfig"
	PropertyContentItemID        PropertyKey = "contentItemId"
	PropertyLanguageID           PropertyKey = "languageId"
	PropertyPath                 PropertyKey = "path"
	PropertyPageTitle            PropertyKey = "pageTitle"
	PropertyValidationErrors     PropertyKey = "validationErrors"
	PropertyItemListingFilter    PropertyKey = "itemListingFilter"
	PropertyItemListingSelection PropertyKey = "itemListingSelection"
	PropertyCurrentPage          PropertyKey = "currentPage"
)

// Page discriminator values carried by PropertyCurrentPage.
const (
	PageItemEditor  = "itemEditor"
	PageItemListing = "contentInventory"
	PageOther       = "other"
)

// PublishingState is a publishing workflow state used by the item listing filter.
type PublishingState string

const (
	PublishingStatePublished   PublishingState = "published"
	PublishingStateUnpublished PublishingState = "unpublished"
	PublishingStateScheduled   PublishingState = "scheduled"
	PublishingStateDraft       PublishingState = "draft"
)

// VariantCompletionStatus is the completeness of a language variant in the item listing filter.
type VariantCompletionStatus string

const (
	VariantCompletionAllDone       VariantCompletionStatus = "allDone"
	VariantCompletionHasIssues     VariantCompletionStatus = "hasIssues"
	VariantCompletionNotTranslated VariantCompletionStatus = "notTranslated"
	VariantCompletionUnfinished    VariantCompletionStatus = "unfinished"
)

// UserRole is one entry of the userRoles property.
type UserRole struct {
	ID       string  `json:"id"`
	Codename *string `json:"codename"`
}

// ValidationErrors maps an element codename to its validation messages.
type ValidationErrors map[string][]string

// ItemListingFilter is the serialized filter of the content inventory page.
type ItemListingFilter struct {
	SearchPhrase       string                    `json:"searchPhrase"`
	ContentTypeIDs     []string                  `json:"contentTypeIds"`
	CollectionIDs      []string                  `json:"collectionIds"`
	SpaceIDs           []string                  `json:"spaceIds"`
	ContributorIDs     []string                  `json:"contributorIds"`
	WorkflowStepIDs    []string                  `json:"workflowStepIds"`
	PublishingStates   []PublishingState         `json:"publishingStates"`
	CompletionStatuses []VariantCompletionStatus `json:"completionStatuses"`
}

// ItemListingSelectionEntry identifies one selected item variant on the content inventory page.
type ItemListingSelectionEntry struct {
	ID         string `json:"id"`
	LanguageID string `json:"languageId"`
}

// PropertyBag is a sparse mapping of property keys to raw JSON values. A key that is absent
// is "undefined"; a key holding JSON null is present.
type PropertyBag map[PropertyKey]json.RawMessage

// Has reports whether key is present in the bag.
func (b PropertyBag) Has(key PropertyKey) bool {
	_, ok := b[key]
	return ok
}

// String returns the string value of key, or "" when absent or not a string.
func (b PropertyBag) String(key PropertyKey) string {
	raw, ok := b[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Decode unmarshals the value of key into target. Absent keys leave target untouched.
func (b PropertyBag) Decode(key PropertyKey, target any) error {
	raw, ok := b[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("schema: decode property %s: %w", key, err)
	}
	return nil
}

// Set marshals value into the bag under key.
func (b PropertyBag) Set(key PropertyKey, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("schema: encode property %s: %w", key, err)
	}
	b[key] = raw
	return nil
}

// Pick returns a new bag holding only the given keys that are present in b.
func (b PropertyBag) Pick(keys []PropertyKey) PropertyBag {
	out := make(PropertyBag, len(keys))
	for _, k := range keys {
		if v, ok := b[k]; ok {
			out[k] = v
		}
	}
	return out
}

// propertyKeys is the closed property vocabulary.
var propertyKeys = []PropertyKey{
	PropertyEnvironmentID,
	PropertyUserID,
	PropertyUserEmail,
	PropertyUserRoles,
	PropertyAppConfig,
	PropertyContentItemID,
	PropertyLanguageID,
	PropertyPath,
	PropertyPageTitle,
	PropertyValidationErrors,
	PropertyItemListingFilter,
	PropertyItemListingSelection,
	PropertyCurrentPage,
}

// AllPropertyKeys returns the complete property vocabulary in sorted order.
func AllPropertyKeys() []PropertyKey {
	keys := append([]PropertyKey(nil), propertyKeys...)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// IsPropertyKey reports whether key belongs to the property vocabulary.
func IsPropertyKey(key PropertyKey) bool {
	for _, k := range propertyKeys {
		if k == key {
			return true
		}
	}
	return false
}

// ValidatePropertyKeys fails on the first key outside the vocabulary.
func ValidatePropertyKeys(keys []PropertyKey) error {
	for i, k := range keys {
		if !IsPropertyKey(k) {
			return errAt(fmt.Sprintf("[%d]", i), "unknown property %q", k)
		}
	}
	return nil
}

// ValidatePropertyValue checks a single property value against its rule.
func ValidatePropertyValue(key PropertyKey, raw json.RawMessage) error {
	if !IsPropertyKey(key) {
		return errAt(string(key), "unknown property")
	}
	return ValidatePropertyBag(PropertyBag{key: raw})
}

// ValidatePropertyBag checks every present property and rejects keys outside the vocabulary.
// Absent properties are never an error here; completeness is decided by the context layer.
func ValidatePropertyBag(bag PropertyBag) error {
	_, shape, err := sharedShapes()
	if err != nil {
		return err
	}
	if bag == nil {
		bag = PropertyBag{}
	}
	raw, err := json.Marshal(bag)
	if err != nil {
		return errAt("", "encode properties: %v", err)
	}
	return shape.check(raw)
}
