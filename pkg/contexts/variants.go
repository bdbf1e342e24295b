package contexts

import (
	"encoding/json"

	"github.com/morezero/customapp-bridge/pkg/schema"
)

// Context is one of *ItemEditorContext, *ItemListingContext or *OtherContext.
type Context interface {
	// Page returns the variant's currentPage discriminator.
	Page() string
	// Properties returns the bag the context was built from.
	Properties() schema.PropertyBag
}

// Base holds the properties shared by every variant.
type Base struct {
	Path          string
	PageTitle     string
	EnvironmentID string
	UserID        string
	UserEmail     string
	UserRoles     []schema.UserRole
	// AppConfig is nil when the host sent no app configuration.
	AppConfig json.RawMessage

	bag schema.PropertyBag
}

func (b *Base) decode(bag schema.PropertyBag) error {
	b.bag = bag
	if raw, ok := bag[schema.PropertyAppConfig]; ok {
		b.AppConfig = raw
	}
	return decodeAll(bag, map[schema.PropertyKey]any{
		schema.PropertyPath:          &b.Path,
		schema.PropertyPageTitle:     &b.PageTitle,
		schema.PropertyEnvironmentID: &b.EnvironmentID,
		schema.PropertyUserID:        &b.UserID,
		schema.PropertyUserEmail:     &b.UserEmail,
		schema.PropertyUserRoles:     &b.UserRoles,
	})
}

// Properties returns the bag the context was built from.
func (b *Base) Properties() schema.PropertyBag { return b.bag }

// ItemEditorContext is the context of the content item editor.
type ItemEditorContext struct {
	Base
	ContentItemID    string
	LanguageID       string
	ValidationErrors schema.ValidationErrors
}

// Page returns schema.PageItemEditor.
func (*ItemEditorContext) Page() string { return schema.PageItemEditor }

// ItemListingContext is the context of the content inventory listing.
type ItemListingContext struct {
	Base
	LanguageID string
	Filter     schema.ItemListingFilter
	Selection  []schema.ItemListingSelectionEntry
}

// Page returns schema.PageItemListing.
func (*ItemListingContext) Page() string { return schema.PageItemListing }

// OtherContext is the context of any other page.
type OtherContext struct {
	Base
}

// Page returns schema.PageOther.
func (*OtherContext) Page() string { return schema.PageOther }
