package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/morezero/customapp-bridge/pkg/schema"
	"github.com/morezero/customapp-bridge/pkg/transport"
)

const maxContextBody = 1 << 20

// HealthOutput is the body of GET /health.
type HealthOutput struct {
	Status        string       `json:"status"`
	Checks        HealthChecks `json:"checks"`
	Subscriptions int          `json:"subscriptions"`
	Revision      int          `json:"revision"`
	Timestamp     string       `json:"timestamp"`
}

// HealthChecks lists the individual health checks.
type HealthChecks struct {
	Comms bool `json:"comms"`
}

// ContextChangeOutput is the body returned by PUT and DELETE /context.
type ContextChangeOutput struct {
	Changed  []schema.PropertyKey `json:"changed"`
	Revision int                  `json:"revision"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - json encode: %v", logPrefix, err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) health() *HealthOutput {
	out := &HealthOutput{
		Status:        "healthy",
		Checks:        HealthChecks{Comms: s.nc != nil && s.nc.IsConnected()},
		Subscriptions: s.host.SubscriptionCount(),
		Revision:      s.host.Revision(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if !out.Checks.Comms {
		out.Status = "unhealthy"
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.health()
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleContext serves the context state. GET returns the bag, PUT merges the body into it
// (?replace=true swaps it), DELETE removes the ?key= properties.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()

	var (
		changed []schema.PropertyKey
		err     error
	)
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.host.Properties())
		return
	case http.MethodPut:
		body, readErr := io.ReadAll(io.LimitReader(r.Body, maxContextBody))
		if readErr != nil {
			writeError(w, http.StatusBadRequest, readErr.Error())
			return
		}
		var bag schema.PropertyBag
		if err := json.Unmarshal(body, &bag); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("body must be a JSON object of context properties: %v", err))
			return
		}
		if r.URL.Query().Get("replace") == "true" {
			changed, err = s.host.ReplaceProperties(ctx, bag)
		} else {
			changed, err = s.host.UpdateProperties(ctx, bag)
		}
	case http.MethodDelete:
		var keys []schema.PropertyKey
		for _, k := range r.URL.Query()["key"] {
			keys = append(keys, schema.PropertyKey(k))
		}
		if err := schema.ValidatePropertyKeys(keys); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		changed, err = s.host.RemoveProperties(ctx, keys...)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if changed == nil {
		changed = []schema.PropertyKey{}
	}
	writeJSON(w, http.StatusOK, ContextChangeOutput{Changed: changed, Revision: s.host.Revision()})
}

func (s *Server) handlePopup(w http.ResponseWriter, r *http.Request) {
	size, ok := s.host.PopupSize()
	if !ok {
		writeError(w, http.StatusNotFound, "no popup size requested yet")
		return
	}
	writeJSON(w, http.StatusOK, size)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := transport.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - WebSocket upgrade failed: %v", logPrefix, err))
		return
	}
	slog.Info(fmt.Sprintf("%s - WebSocket client connected from %s", logPrefix, r.RemoteAddr))
	if err := transport.ServeWebSocket(s.ctx, conn, s.host.HandleMessage); err != nil {
		slog.Warn(fmt.Sprintf("%s - WebSocket session ended: %v", logPrefix, err))
	}
}

// homePageTemplate is the HTML for the development host home page.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Custom App Development Host</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; vertical-align: top; }
    th { background: #f0f4f8; color: #0066cc; }
    pre { margin: 0; font-size: 0.85rem; white-space: pre-wrap; }
    .meta { color: #333; font-size: 0.9rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>Custom App Development Host</h1>
  <p class="meta">Seed: {{.Seed}}</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Open subscriptions: {{.Health.Subscriptions}}, revision {{.Health.Revision}}</p>
    {{if .Popup}}<p>Popup size: {{.Popup.Width}} x {{.Popup.Height}}</p>{{end}}
  </section>

  <section>
    <h2>Context</h2>
    <table>
      <thead><tr><th>Property</th><th>Value</th></tr></thead>
      <tbody>
        {{range .Properties}}
        <tr><td>{{.Key}}</td><td><pre>{{.Value}}</pre></td></tr>
        {{end}}
      </tbody>
    </table>
  </section>

  <section>
    <h2>Operations</h2>
    <table>
      <thead><tr><th>Key</th><th>Status</th><th>Description</th></tr></thead>
      <tbody>
        {{range .Operations}}
        <tr><td>{{.Key}}</td><td>{{.Status}}</td><td>{{.Description}}</td></tr>
        {{end}}
      </tbody>
    </table>
  </section>
</body>
</html>
`

type homeProperty struct {
	Key   schema.PropertyKey
	Value string
}

// homeData is the data passed to the home page template.
type homeData struct {
	Seed       string
	Health     *HealthOutput
	Popup      *schema.SetPopupSizeRequest
	Properties []homeProperty
	Operations []schema.Descriptor
}

// handleHome returns an HTTP handler for the development host home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		data := homeData{
			Seed:       s.seedName,
			Health:     s.health(),
			Operations: schema.DefaultRegistry().Descriptors(),
		}
		if size, ok := s.host.PopupSize(); ok {
			data.Popup = &size
		}
		props := s.host.Properties()
		for k, v := range props {
			data.Properties = append(data.Properties, homeProperty{Key: k, Value: string(v)})
		}
		sort.Slice(data.Properties, func(i, j int) bool { return data.Properties[i].Key < data.Properties[j].Key })

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
