package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaBaseURL is the base every schema document is registered under. Nothing is fetched
// from it.
const schemaBaseURL = "https://customapp-bridge.morezero.dev/schemas/"

// DefinitionsDocument names the shared definitions document. Payload schemas refer to its
// entries as "defs.json#/$defs/<name>".
const DefinitionsDocument = "defs.json"

// ValidationError describes why a value does not conform to a declared shape.
type ValidationError struct {
	Key    string // message key, e.g. "set-popup-size@1.0.0"
	Field  string // dotted path inside the envelope or payload
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("schema: %s field=%s: %s", e.Key, e.Field, e.Reason)
}

// fieldError is the internal form of a ValidationError before the message key is known.
type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string {
	if e.field == "" {
		return e.reason
	}
	return e.field + ": " + e.reason
}

func errAt(field, format string, args ...any) error {
	return &fieldError{field: field, reason: fmt.Sprintf(format, args...)}
}

// nest prefixes the field path of err with parent.
func nest(parent string, err error) error {
	if err == nil {
		return nil
	}
	var fe *fieldError
	if errors.As(err, &fe) {
		field := parent
		if fe.field != "" {
			field = parent + "." + fe.field
		}
		return &fieldError{field: field, reason: fe.reason}
	}
	return &fieldError{field: parent, reason: err.Error()}
}

// withKey converts an internal error into a ValidationError for a message key.
func withKey(key string, err error) error {
	if err == nil {
		return nil
	}
	var fe *fieldError
	if errors.As(err, &fe) {
		return ValidationError{Key: key, Field: fe.field, Reason: fe.reason}
	}
	return ValidationError{Key: key, Reason: err.Error()}
}

// newCompiler returns a draft 2020-12 compiler that asserts formats and already holds the
// shared definitions.
func newCompiler() (*jsonschema.Compiler, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	if err := c.AddResource(schemaBaseURL+DefinitionsDocument, bytes.NewReader(Definitions())); err != nil {
		return nil, fmt.Errorf("%s - add %s: %w", logPrefix, DefinitionsDocument, err)
	}
	return c, nil
}

// compiledShape is one compiled schema document.
type compiledShape struct {
	name   string
	schema *jsonschema.Schema
}

func compileShape(c *jsonschema.Compiler, name string, doc []byte) (*compiledShape, error) {
	url := schemaBaseURL + name
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("%s - add %s: %w", logPrefix, name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("%s - compile %s: %w", logPrefix, name, err)
	}
	return &compiledShape{name: name, schema: sch}, nil
}

// check validates raw and reports the first failing location as a dotted field path.
func (s *compiledShape) check(raw json.RawMessage) error {
	if s == nil {
		return errAt("", "no schema declared")
	}
	v, err := decodeInstance(raw)
	if err != nil {
		return errAt("", "%v", err)
	}
	err = s.schema.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return errAt("", "%v", err)
	}
	leaf := firstLeaf(ve)
	return errAt(instancePath(leaf.InstanceLocation), "%s", leaf.Message)
}

// decodeInstance decodes raw the way the validator expects, keeping numbers exact.
func decodeInstance(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return nil, errors.New("invalid JSON: trailing data")
	}
	return v, nil
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// instancePath turns a JSON pointer such as "/payload/properties/1" into
// "payload.properties.[1]".
func instancePath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(p); err == nil {
			p = "[" + p + "]"
		}
		parts[i] = p
	}
	return strings.Join(parts, ".")
}

// Shapes that do not belong to a single operation version.
const (
	errorEnvelopeDocument = "error.json"
	propertyBagDocument   = "property-bag.json"
)

var (
	sharedShapesOnce sync.Once
	sharedErr        error
	errorEnvelope    *compiledShape
	propertyBag      *compiledShape
)

func sharedShapes() (*compiledShape, *compiledShape, error) {
	sharedShapesOnce.Do(func() {
		c, err := newCompiler()
		if err != nil {
			sharedErr = err
			return
		}
		if errorEnvelope, err = compileShape(c, errorEnvelopeDocument, errorEnvelopeSchema()); err != nil {
			sharedErr = err
			return
		}
		propertyBag, sharedErr = compileShape(c, propertyBagDocument, refSchema("propertyBag"))
	})
	return errorEnvelope, propertyBag, sharedErr
}

// IsUUID reports whether s is a canonical hyphenated UUID.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
