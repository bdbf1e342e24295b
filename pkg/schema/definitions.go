package schema

import (
	"encoding/json"
	"sort"
	"sync"
)

// object is a JSON Schema fragment under construction.
type object = map[string]any

func ref(name string) object {
	return object{"$ref": "#/$defs/" + name}
}

func uuidList() object {
	return object{"type": "array", "items": ref("uuid")}
}

func closedEnum[T ~string](values ...T) object {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return object{"type": "string", "enum": out}
}

func dimensionSchema(ranges map[PopupSizeUnit]dimensionRange) object {
	units := make([]PopupSizeUnit, 0, len(ranges))
	for u := range ranges {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })

	perUnit := make([]any, 0, len(units))
	for _, u := range units {
		r := ranges[u]
		perUnit = append(perUnit, object{
			"if":   object{"properties": object{"unit": object{"const": string(u)}}},
			"then": object{"properties": object{"value": object{"minimum": r.min, "maximum": r.max}}},
		})
	}
	return object{
		"type":     "object",
		"required": []string{"unit", "value"},
		"properties": object{
			"unit":  closedEnum(units...),
			"value": object{"type": "number"},
		},
		"allOf": perUnit,
	}
}

// propertyRules is the value schema of every key in the vocabulary.
func propertyRules() object {
	return object{
		string(PropertyEnvironmentID):        ref("uuid"),
		string(PropertyUserID):               object{"type": "string"},
		string(PropertyUserEmail):            ref("email"),
		string(PropertyUserRoles):            object{"type": "array", "items": ref("userRole")},
		string(PropertyAppConfig):            true,
		string(PropertyContentItemID):        ref("uuid"),
		string(PropertyLanguageID):           ref("uuid"),
		string(PropertyPath):                 object{"type": "string"},
		string(PropertyPageTitle):            object{"type": "string"},
		string(PropertyValidationErrors):     ref("validationErrors"),
		string(PropertyItemListingFilter):    ref("itemListingFilter"),
		string(PropertyItemListingSelection): object{"type": "array", "items": ref("itemListingSelectionEntry")},
		string(PropertyCurrentPage):          ref("pageDiscriminator"),
	}
}

var (
	definitionsOnce sync.Once
	definitionsDoc  []byte
)

// Definitions returns the shared definitions document: the property vocabulary, the property
// bag, popup dimensions and the value shapes they use.
func Definitions() []byte {
	definitionsOnce.Do(func() {
		defs := object{
			"uuid":  object{"type": "string", "format": "uuid"},
			"email": object{"type": "string", "format": "email"},
			"userRole": object{
				"type":     "object",
				"required": []string{"id", "codename"},
				"properties": object{
					"id":       ref("uuid"),
					"codename": object{"type": []string{"string", "null"}},
				},
			},
			"validationErrors": object{
				"type":                 "object",
				"additionalProperties": object{"type": "array", "items": object{"type": "string"}},
			},
			"itemListingFilter": object{
				"type": "object",
				"required": []string{
					"searchPhrase", "contentTypeIds", "collectionIds", "spaceIds",
					"contributorIds", "workflowStepIds", "publishingStates", "completionStatuses",
				},
				"properties": object{
					"searchPhrase":    object{"type": "string"},
					"contentTypeIds":  uuidList(),
					"collectionIds":   uuidList(),
					"spaceIds":        uuidList(),
					"contributorIds":  uuidList(),
					"workflowStepIds": uuidList(),
					"publishingStates": object{"type": "array", "items": closedEnum(
						PublishingStatePublished, PublishingStateUnpublished,
						PublishingStateScheduled, PublishingStateDraft,
					)},
					"completionStatuses": object{"type": "array", "items": closedEnum(
						VariantCompletionAllDone, VariantCompletionHasIssues,
						VariantCompletionNotTranslated, VariantCompletionUnfinished,
					)},
				},
			},
			"itemListingSelectionEntry": object{
				"type":     "object",
				"required": []string{"id", "languageId"},
				"properties": object{
					"id":         ref("uuid"),
					"languageId": ref("uuid"),
				},
			},
			"pageDiscriminator": closedEnum(PageItemEditor, PageItemListing, PageOther),
			"propertyKey":       closedEnum(propertyKeys...),
			"propertyKeyList":   object{"type": "array", "items": ref("propertyKey")},
			"propertyBag": object{
				"type":                 "object",
				"properties":           propertyRules(),
				"additionalProperties": false,
			},
			"appContextV1": object{
				"type":     "object",
				"required": []string{"environmentId", "userId", "userEmail", "userRoles"},
				"properties": object{
					"environmentId": ref("uuid"),
					"userId":        object{"type": "string"},
					"userEmail":     ref("email"),
					"userRoles":     object{"type": "array", "items": ref("userRole")},
				},
			},
			"popupWidth":  dimensionSchema(widthRanges),
			"popupHeight": dimensionSchema(heightRanges),
			"errorCode":   closedEnum(ErrorCodeUnknownMessage, ErrorCodeOutdatedContext, ErrorCodeNotSupported),
		}
		doc, err := json.Marshal(object{"$defs": defs})
		if err != nil {
			panic(err)
		}
		definitionsDoc = doc
	})
	return append([]byte(nil), definitionsDoc...)
}

// refSchema returns a document that is exactly one shared definition.
func refSchema(name string) []byte {
	return mustMarshal(object{"$ref": DefinitionsDocument + "#/$defs/" + name})
}

func errorEnvelopeSchema() []byte {
	return mustMarshal(object{
		"type":     "object",
		"required": []string{"requestId", "isError", "code", "description"},
		"properties": object{
			"requestId":   object{"$ref": DefinitionsDocument + "#/$defs/uuid"},
			"isError":     object{"const": true},
			"code":        object{"$ref": DefinitionsDocument + "#/$defs/errorCode"},
			"description": object{"type": "string"},
		},
	})
}

// envelopeSchema wraps a payload document in an envelope. Envelopes stay open: members other
// than the required ones are ignored.
func envelopeSchema(required []string, members object, payloadDocument string) []byte {
	props := object{"payload": object{"$ref": payloadDocument}}
	for k, v := range members {
		props[k] = v
	}
	return mustMarshal(object{
		"type":       "object",
		"required":   required,
		"properties": props,
	})
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
