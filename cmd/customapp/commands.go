package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/morezero/customapp-bridge/internal/config"
	"github.com/morezero/customapp-bridge/internal/server"
	"github.com/morezero/customapp-bridge/pkg/commsutil"
	"github.com/morezero/customapp-bridge/pkg/contexts"
	"github.com/morezero/customapp-bridge/pkg/customapp"
	"github.com/morezero/customapp-bridge/pkg/messenger"
	"github.com/morezero/customapp-bridge/pkg/schema"
	"github.com/morezero/customapp-bridge/pkg/transport"
)

// session is a connected client plus the cleanup for its transport.
type session struct {
	cfg    *config.Config
	client *customapp.Client
	close  func()
}

func connect(ctx context.Context) (*session, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	server.SetupLogging(os.Stderr, cfg.LogLevel)
	if err := cfg.ValidateForClient(); err != nil {
		return nil, err
	}

	switch cfg.Transport {
	case config.TransportWebSocket:
		ws, err := transport.DialWebSocket(ctx, cfg.WebSocketURL, nil)
		if err != nil {
			return nil, err
		}
		m := messenger.New(ws)
		ws.Listen(m.HandleMessage)
		return &session{
			cfg:    cfg,
			client: customapp.NewClient(customapp.NewClientParams{Messenger: m}),
			close:  func() { _ = ws.Close() },
		}, nil
	default:
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-client")
		if err != nil {
			return nil, err
		}
		tr := transport.NewNATS(nc, transport.NATSParams{HostSubject: cfg.HostSubject, ClientID: cfg.ClientID})
		m := messenger.New(tr)
		if err := tr.Listen(m.HandleMessage); err != nil {
			nc.Close()
			return nil, err
		}
		return &session{
			cfg:    cfg,
			client: customapp.NewClient(customapp.NewClientParams{Messenger: m}),
			close: func() {
				_ = tr.Close()
				nc.Close()
			},
		}, nil
	}
}

func (s *session) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// contextOutput is the printed form of a typed context.
type contextOutput struct {
	Page       string             `json:"page"`
	Properties schema.PropertyBag `json:"properties"`
}

func printContext(w io.Writer, c contexts.Context) error {
	return printJSON(w, contextOutput{Page: c.Page(), Properties: c.Properties()})
}

func runGetContext() error {
	s, err := connect(context.Background())
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.requestContext()
	defer cancel()
	c, err := s.client.GetContext(ctx)
	if err != nil {
		return err
	}
	return printContext(os.Stdout, c)
}

func runGetAppContext() error {
	s, err := connect(context.Background())
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.requestContext()
	defer cancel()
	ac, err := s.client.GetAppContext(ctx)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, schema.GetContextV1Response{Context: ac.Context, Config: ac.Config})
}

func knownPropertyKeys() string {
	keys := schema.AllPropertyKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func parsePropertyKeys(names []string) ([]schema.PropertyKey, error) {
	keys := make([]schema.PropertyKey, len(names))
	for i, n := range names {
		keys[i] = schema.PropertyKey(n)
		if !schema.IsPropertyKey(keys[i]) {
			return nil, fmt.Errorf("unknown property %q, want one of %s", n, knownPropertyKeys())
		}
	}
	return keys, nil
}

func runGetProperties(names []string) error {
	keys, err := parsePropertyKeys(names)
	if err != nil {
		return err
	}
	s, err := connect(context.Background())
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.requestContext()
	defer cancel()
	bag, err := s.client.GetContextProperties(ctx, keys)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, bag)
}

func runObserve() error {
	s, err := connect(context.Background())
	if err != nil {
		return err
	}
	defer s.close()

	pushed := make(chan contexts.Context, 16)
	ctx, cancel := s.requestContext()
	sub, err := s.client.ObserveContext(ctx, func(c contexts.Context) {
		select {
		case pushed <- c:
		default:
			fmt.Fprintln(os.Stderr, "customapp observe: output is falling behind, dropping a change")
		}
	})
	cancel()
	if err != nil {
		return err
	}
	if err := printContext(os.Stdout, sub.Context); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case c := <-pushed:
			if err := printContext(os.Stdout, c); err != nil {
				return err
			}
		case <-sigCh:
			ctx, cancel := s.requestContext()
			defer cancel()
			return sub.Unsubscribe(ctx)
		}
	}
}

func runSetPopupSize(w, h string) error {
	width, err := parseDimension(w)
	if err != nil {
		return fmt.Errorf("width: %w", err)
	}
	height, err := parseDimension(h)
	if err != nil {
		return fmt.Errorf("height: %w", err)
	}
	s, err := connect(context.Background())
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.requestContext()
	defer cancel()
	ok, err := s.client.SetPopupSize(ctx, width, height)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, schema.SuccessResponse{Success: ok})
}

// parseDimension parses "640px" or "50%".
func parseDimension(s string) (schema.PopupSizeDimension, error) {
	var (
		unit schema.PopupSizeUnit
		num  string
	)
	switch {
	case strings.HasSuffix(s, "px"):
		unit, num = schema.UnitPixels, strings.TrimSuffix(s, "px")
	case strings.HasSuffix(s, "%"):
		unit, num = schema.UnitPercent, strings.TrimSuffix(s, "%")
	default:
		return schema.PopupSizeDimension{}, fmt.Errorf("%q needs a px or %% unit", s)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return schema.PopupSizeDimension{}, fmt.Errorf("%q: %w", s, err)
	}
	return schema.PopupSizeDimension{Unit: unit, Value: v}, nil
}

// schemaEntry is the printed form of one registered operation. Schemas are payload schemas;
// their $ref values point into the definitions document.
type schemaEntry struct {
	Key                string      `yaml:"key"`
	Status             string      `yaml:"status"`
	Description        string      `yaml:"description,omitempty"`
	RequestType        string      `yaml:"requestType,omitempty"`
	ResponseType       string      `yaml:"responseType,omitempty"`
	NotificationType   string      `yaml:"notificationType,omitempty"`
	RequestSchema      interface{} `yaml:"requestSchema,omitempty"`
	ResponseSchema     interface{} `yaml:"responseSchema,omitempty"`
	NotificationSchema interface{} `yaml:"notificationSchema,omitempty"`
}

// schemasOutput is the document printed by the schemas command.
type schemasOutput struct {
	Operations  []schemaEntry `yaml:"operations"`
	Properties  []string      `yaml:"properties"`
	Definitions interface{}   `yaml:"definitions"`
}

// jsonToYAML decodes a JSON document into values the YAML encoder prints as a mapping.
func jsonToYAML(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func newSchemaEntry(d schema.Descriptor) (schemaEntry, error) {
	e := schemaEntry{
		Key:              d.Key(),
		Status:           d.Status,
		Description:      d.Description,
		RequestType:      d.RequestType,
		ResponseType:     d.ResponseType,
		NotificationType: d.NotificationType,
	}
	var err error
	if e.RequestSchema, err = jsonToYAML(d.RequestSchema); err != nil {
		return e, fmt.Errorf("%s request schema: %w", d.Key(), err)
	}
	if e.ResponseSchema, err = jsonToYAML(d.ResponseSchema); err != nil {
		return e, fmt.Errorf("%s response schema: %w", d.Key(), err)
	}
	if e.NotificationSchema, err = jsonToYAML(d.NotificationSchema); err != nil {
		return e, fmt.Errorf("%s notification schema: %w", d.Key(), err)
	}
	return e, nil
}

// runSchemas prints every registered operation, or only the one ref resolves to. ref is an
// operation name with an optional "@" version range.
func runSchemas(w io.Writer, ref string) error {
	reg := schema.DefaultRegistry()
	descriptors := reg.Descriptors()
	if ref != "" {
		d, err := reg.ResolveRef(ref)
		if err != nil {
			return err
		}
		descriptors = []schema.Descriptor{d}
	}

	var out schemasOutput
	for _, d := range descriptors {
		e, err := newSchemaEntry(d)
		if err != nil {
			return err
		}
		out.Operations = append(out.Operations, e)
	}
	for _, k := range schema.AllPropertyKeys() {
		out.Properties = append(out.Properties, string(k))
	}
	defs, err := jsonToYAML(schema.Definitions())
	if err != nil {
		return fmt.Errorf("definitions: %w", err)
	}
	out.Definitions = defs

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
