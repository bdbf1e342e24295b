package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/morezero/customapp-bridge/pkg/semver"
)

const logPrefix = "schema:registry"

var (
	// ErrDuplicateOperation is returned when a key is registered twice.
	ErrDuplicateOperation = errors.New("schema: operation version already registered")
	// ErrUnknownOperation is returned when no descriptor matches a lookup.
	ErrUnknownOperation = errors.New("schema: unknown operation")
)

// Descriptor declares the shapes of one operation version. A descriptor with an empty
// RequestType is push-only.
type Descriptor struct {
	Operation        string
	Version          string
	Status           string // semver.StatusActive or semver.StatusDeprecated
	Description      string
	RequestType      string
	ResponseType     string
	NotificationType string

	// JSON Schema (draft 2020-12) documents of the payloads. They may refer to the shared
	// definitions as "defs.json#/$defs/<name>". A missing schema accepts any payload.
	RequestSchema      json.RawMessage
	ResponseSchema     json.RawMessage
	NotificationSchema json.RawMessage

	shapes *descriptorShapes
}

// descriptorShapes holds the compiled envelope and payload schemas of a registered descriptor.
type descriptorShapes struct {
	request             *compiledShape
	requestPayload      *compiledShape
	response            *compiledShape
	responsePayload     *compiledShape
	notification        *compiledShape
	notificationPayload *compiledShape
}

// Key returns "<operation>@<version>".
func (d Descriptor) Key() string {
	return semver.BuildMessageKey(d.Operation, d.Version)
}

// PushOnly reports whether the operation only ever arrives as a notification.
func (d Descriptor) PushOnly() bool {
	return d.RequestType == ""
}

// Registry holds operation descriptors keyed by (operation, version). Registered descriptors
// are immutable; lookups return copies.
type Registry struct {
	mu          sync.RWMutex
	compiler    *jsonschema.Compiler
	descriptors map[string]Descriptor
	byRequest   map[string]string // "<requestType>@<version>" -> key
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]Descriptor),
		byRequest:   make(map[string]string),
	}
}

// Register adds a descriptor. Registering an existing key fails without touching the
// previously registered descriptor.
func (r *Registry) Register(d Descriptor) error {
	if !semver.ValidateOperationName(d.Operation) {
		return fmt.Errorf("%s - invalid operation name %q", logPrefix, d.Operation)
	}
	if _, err := semver.NewVersionRecord(d.Key(), d.Version, d.Status); err != nil {
		return fmt.Errorf("%s - %s: %w", logPrefix, d.Operation, err)
	}
	if d.Status == "" {
		d.Status = semver.StatusActive
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := d.Key()
	if _, exists := r.descriptors[key]; exists {
		return fmt.Errorf("%s - %s: %w", logPrefix, key, ErrDuplicateOperation)
	}
	shapes, err := r.compile(d)
	if err != nil {
		return err
	}
	d.shapes = shapes
	r.descriptors[key] = d
	if d.RequestType != "" {
		r.byRequest[d.RequestType+"@"+d.Version] = key
	}
	return nil
}

// compile turns the payload documents of d into envelope and payload validators. Callers hold
// r.mu.
func (r *Registry) compile(d Descriptor) (*descriptorShapes, error) {
	if r.compiler == nil {
		c, err := newCompiler()
		if err != nil {
			return nil, err
		}
		r.compiler = c
	}

	base := strings.ReplaceAll(d.Key(), "@", "_")
	var shapes descriptorShapes
	build := func(kind string, payload json.RawMessage, required []string, members object) (*compiledShape, *compiledShape, error) {
		if len(payload) == 0 {
			payload = json.RawMessage("true")
		}
		payloadDoc := base + "." + kind + ".payload.json"
		p, err := compileShape(r.compiler, payloadDoc, payload)
		if err != nil {
			return nil, nil, err
		}
		env, err := compileShape(r.compiler, base+"."+kind+".json", envelopeSchema(required, members, payloadDoc))
		if err != nil {
			return nil, nil, err
		}
		return env, p, nil
	}

	uuidRef := object{"$ref": DefinitionsDocument + "#/$defs/uuid"}
	var err error
	if d.RequestType != "" {
		shapes.request, shapes.requestPayload, err = build("request", d.RequestSchema,
			[]string{"type", "version", "requestId", "payload"},
			object{
				"type":      object{"const": d.RequestType},
				"version":   object{"const": d.Version},
				"requestId": uuidRef,
			})
		if err != nil {
			return nil, err
		}
	}
	if d.ResponseType != "" {
		shapes.response, shapes.responsePayload, err = build("response", d.ResponseSchema,
			[]string{"type", "version", "requestId", "isError", "payload"},
			object{
				"type":      object{"const": d.ResponseType},
				"version":   object{"const": d.Version},
				"requestId": uuidRef,
				"isError":   object{"const": false},
			})
		if err != nil {
			return nil, err
		}
	}
	if d.NotificationType != "" {
		shapes.notification, shapes.notificationPayload, err = build("notification", d.NotificationSchema,
			[]string{"type", "version", "subscriptionId", "payload"},
			object{
				"type":           object{"const": d.NotificationType},
				"version":        object{"const": d.Version},
				"subscriptionId": object{"type": "string"},
			})
		if err != nil {
			return nil, err
		}
	}
	return &shapes, nil
}

// MustRegister is Register that panics on error, for static tables.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor for an exact operation version.
func (r *Registry) Lookup(operation, version string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[semver.BuildMessageKey(operation, version)]
	return d, ok
}

// LookupKey returns the descriptor for a "<operation>@<version>" key.
func (r *Registry) LookupKey(key string) (Descriptor, error) {
	ref, err := semver.ParseMessageRef(key)
	if err != nil {
		return Descriptor{}, err
	}
	if !semver.IsExactVersion(ref.Range) {
		return Descriptor{}, fmt.Errorf("%s - %s is not an exact version: %w", logPrefix, key, ErrUnknownOperation)
	}
	d, ok := r.Lookup(ref.Operation, ref.Range)
	if !ok {
		return Descriptor{}, fmt.Errorf("%s - %s: %w", logPrefix, key, ErrUnknownOperation)
	}
	return d, nil
}

// LookupRequest finds the descriptor addressed by a request envelope's type and version.
func (r *Registry) LookupRequest(requestType, version string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byRequest[requestType+"@"+version]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[key], true
}

// Resolve picks the best registered version of operation for a range ("", "2", "^2.0.0",
// "2.0.0"). Deprecated versions are chosen only when nothing active matches.
func (r *Registry) Resolve(operation, rangeStr string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var versions []semver.VersionRecord
	for key, d := range r.descriptors {
		if d.Operation != operation {
			continue
		}
		rec, err := semver.NewVersionRecord(key, d.Version, d.Status)
		if err != nil {
			continue
		}
		versions = append(versions, rec)
	}

	match := semver.ResolveVersion(semver.ResolveVersionParams{Versions: versions, Range: rangeStr})
	if match == nil {
		return Descriptor{}, fmt.Errorf("%s - %s: %w", logPrefix, semver.BuildMessageKey(operation, rangeStr), ErrUnknownOperation)
	}
	return r.descriptors[match.Key], nil
}

// ResolveRef resolves a reference such as "get-context", "get-context@1" or
// "get-context@^2.0.0" to a registered descriptor.
func (r *Registry) ResolveRef(input string) (Descriptor, error) {
	ref, err := semver.ParseMessageRef(input)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return r.Resolve(ref.Operation, ref.Range)
}

// Descriptors returns all descriptors sorted by key.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// RequestTypeFor returns the wire type of an operation's request.
func RequestTypeFor(operation string) string { return operation + "-request" }

// ResponseTypeFor returns the wire type of an operation's response.
func ResponseTypeFor(operation string) string { return operation + "-response" }

// OperationFromRequestType strips the "-request" suffix from a wire type.
func OperationFromRequestType(t string) (string, bool) {
	op, ok := strings.CutSuffix(t, "-request")
	return op, ok && op != ""
}
