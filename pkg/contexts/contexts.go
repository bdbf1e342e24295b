// Package contexts decides which page context variant a sparse property bag describes.
package contexts

import (
	"errors"
	"fmt"

	"github.com/morezero/customapp-bridge/pkg/schema"
)

// ErrOutdatedContext is returned when a bag fails the completeness check for its page.
// Callers are expected to fetch the context again.
var ErrOutdatedContext = errors.New("contexts: outdated context")

// OutdatedContextDescription is the description reported with ErrOutdatedContext.
const OutdatedContextDescription = "The context we received is outdated, please try to get the context again."

var sharedProperties = []schema.PropertyKey{
	schema.PropertyPath,
	schema.PropertyPageTitle,
	schema.PropertyEnvironmentID,
	schema.PropertyUserID,
	schema.PropertyUserEmail,
	schema.PropertyUserRoles,
	schema.PropertyAppConfig,
}

// optionalProperties are part of every variant but never required for completeness.
var optionalProperties = map[schema.PropertyKey]bool{
	schema.PropertyAppConfig: true,
}

var pageProperties = map[string][]schema.PropertyKey{
	schema.PageItemEditor: withShared(
		schema.PropertyContentItemID,
		schema.PropertyLanguageID,
		schema.PropertyValidationErrors,
		schema.PropertyCurrentPage,
	),
	schema.PageItemListing: withShared(
		schema.PropertyLanguageID,
		schema.PropertyItemListingFilter,
		schema.PropertyItemListingSelection,
		schema.PropertyCurrentPage,
	),
	schema.PageOther: withShared(
		schema.PropertyCurrentPage,
	),
}

func withShared(keys ...schema.PropertyKey) []schema.PropertyKey {
	out := make([]schema.PropertyKey, 0, len(sharedProperties)+len(keys))
	out = append(out, sharedProperties...)
	return append(out, keys...)
}

// Pages returns the known page discriminators.
func Pages() []string {
	return []string{schema.PageItemEditor, schema.PageItemListing, schema.PageOther}
}

// PropertiesForPage returns the ordered property list to fetch or observe for page. An
// unknown or empty page yields nil.
func PropertiesForPage(page string) []schema.PropertyKey {
	props, ok := pageProperties[page]
	if !ok {
		return nil
	}
	return append([]schema.PropertyKey(nil), props...)
}

// IsOptional reports whether key is excluded from the completeness check.
func IsOptional(key schema.PropertyKey) bool {
	return optionalProperties[key]
}

// IsComplete reports whether bag satisfies the variant for page: its currentPage equals page
// and every non-optional property of the variant is present.
func IsComplete(page string, bag schema.PropertyBag) bool {
	props, ok := pageProperties[page]
	if !ok {
		return false
	}
	if bag.String(schema.PropertyCurrentPage) != page {
		return false
	}
	for _, key := range props {
		if optionalProperties[key] {
			continue
		}
		if !bag.Has(key) {
			return false
		}
	}
	return true
}

// CurrentPage returns the discriminator carried by bag, or "" when absent or not a string.
func CurrentPage(bag schema.PropertyBag) string {
	return bag.String(schema.PropertyCurrentPage)
}

// FromProperties narrows bag to its typed variant. Bags that fail the completeness check for
// their own discriminator, or carry no known discriminator, yield ErrOutdatedContext.
func FromProperties(bag schema.PropertyBag) (Context, error) {
	page := CurrentPage(bag)
	if !IsComplete(page, bag) {
		return nil, fmt.Errorf("%w: page %q", ErrOutdatedContext, page)
	}

	var base Base
	if err := base.decode(bag); err != nil {
		return nil, err
	}

	switch page {
	case schema.PageItemEditor:
		c := &ItemEditorContext{Base: base}
		if err := decodeAll(bag, map[schema.PropertyKey]any{
			schema.PropertyContentItemID:    &c.ContentItemID,
			schema.PropertyLanguageID:       &c.LanguageID,
			schema.PropertyValidationErrors: &c.ValidationErrors,
		}); err != nil {
			return nil, err
		}
		return c, nil
	case schema.PageItemListing:
		c := &ItemListingContext{Base: base}
		if err := decodeAll(bag, map[schema.PropertyKey]any{
			schema.PropertyLanguageID:           &c.LanguageID,
			schema.PropertyItemListingFilter:    &c.Filter,
			schema.PropertyItemListingSelection: &c.Selection,
		}); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return &OtherContext{Base: base}, nil
	}
}

func decodeAll(bag schema.PropertyBag, targets map[schema.PropertyKey]any) error {
	for key, target := range targets {
		if err := bag.Decode(key, target); err != nil {
			return fmt.Errorf("contexts: %w", err)
		}
	}
	return nil
}
