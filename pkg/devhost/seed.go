package devhost

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/morezero/customapp-bridge/pkg/contexts"
	"github.com/morezero/customapp-bridge/pkg/schema"
)

const seedLogPrefix = "devhost:seed"

// Seed is the initial state of a development host. Seed files are YAML; JSON files parse
// as well.
type Seed struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Properties  map[string]interface{} `yaml:"properties"`
	// Unsupported lists "<operation>@<version>" keys the host refuses with not-supported.
	Unsupported []string `yaml:"unsupported,omitempty"`
}

// Bag converts the seed properties into a validated PropertyBag.
func (s *Seed) Bag() (schema.PropertyBag, error) {
	bag := make(schema.PropertyBag, len(s.Properties))
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := schema.PropertyKey(k)
		if !schema.IsPropertyKey(key) {
			return nil, fmt.Errorf("%s - seed %q: unknown property %q", seedLogPrefix, s.Name, k)
		}
		raw, err := json.Marshal(s.Properties[k])
		if err != nil {
			return nil, fmt.Errorf("%s - seed %q: property %s: %w", seedLogPrefix, s.Name, k, err)
		}
		bag[key] = raw
	}
	if err := schema.ValidatePropertyBag(bag); err != nil {
		return nil, fmt.Errorf("%s - seed %q: %w", seedLogPrefix, s.Name, err)
	}
	return bag, nil
}

// MissingProperties returns the non-optional properties bag lacks for the page it names. A bag
// naming no known page is an error. Clients report either case as an outdated context.
func MissingProperties(bag schema.PropertyBag) ([]schema.PropertyKey, error) {
	page := contexts.CurrentPage(bag)
	known := false
	for _, p := range contexts.Pages() {
		if p == page {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%s - currentPage %q is not one of %v", seedLogPrefix, page, contexts.Pages())
	}

	var missing []schema.PropertyKey
	for _, key := range contexts.PropertiesForPage(page) {
		if contexts.IsOptional(key) || bag.Has(key) {
			continue
		}
		missing = append(missing, key)
	}
	return missing, nil
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Properties == nil {
		s.Properties = map[string]interface{}{}
	}
	return &s, nil
}

// LoadSeed loads a seed from file paths or environment.
// It tries paths in order: first any paths passed in, then CUSTOMAPP_SEED_FILE env, then defaults.
func LoadSeed(paths ...string) (*Seed, error) {
	all := make([]string, 0, len(paths)+4)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("CUSTOMAPP_SEED_FILE"); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/seed.yaml", "seed.yaml", "seed.json")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		s, err := ParseSeed(data)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse seed file %s: %v", seedLogPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded seed %q from %s", seedLogPrefix, s.Name, p))
		return s, nil
	}

	slog.Info(fmt.Sprintf("%s - Using default seed", seedLogPrefix))
	return DefaultSeed(), nil
}

// DefaultSeed returns an item editor context for a sample environment.
func DefaultSeed() *Seed {
	return &Seed{
		Name:        "item-editor",
		Description: "Item editor page of a sample environment",
		Properties: map[string]interface{}{
			"path":          "/975bf280-fd91-488c-994c-2f04416e5ee3/content-inventory/00000000-0000-0000-0000-000000000000/content/8ceea5b1-4a5c-4e5a-9a07-9b2b6ea6b0a4",
			"pageTitle":     "On Roasts",
			"environmentId": "975bf280-fd91-488c-994c-2f04416e5ee3",
			"userId":        "dev-user",
			"userEmail":     "developer@example.com",
			"userRoles": []interface{}{
				map[string]interface{}{"id": "f58733b9-520b-406b-9d45-eb15a2baee96", "codename": "project-manager"},
			},
			"appConfig":        map[string]interface{}{"greeting": "Hello from the development host"},
			"contentItemId":    "8ceea5b1-4a5c-4e5a-9a07-9b2b6ea6b0a4",
			"languageId":       "00000000-0000-0000-0000-000000000000",
			"validationErrors": map[string]interface{}{},
			"currentPage":      schema.PageItemEditor,
		},
	}
}
