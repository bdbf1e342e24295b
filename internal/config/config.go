// Package config provides configuration loaded from an optional TOML file and environment
// variables. Environment variables win over the file; the file wins over the defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Transport names accepted by CUSTOMAPP_TRANSPORT.
const (
	TransportNATS      = "nats"
	TransportWebSocket = "ws"
)

// Config holds customapp-bridge configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" toml:"comms_url"`
	COMMSName string `envconfig:"SERVICE_NAME" toml:"service_name"`

	// Subject overrides (empty = commsutil defaults)
	HostSubject        string `envconfig:"CUSTOMAPP_HOST_SUBJECT" toml:"host_subject"`
	ChangeEventSubject string `envconfig:"CUSTOMAPP_CHANGE_EVENT_SUBJECT" toml:"change_event_subject"`
	// ChangeEventPages limits published change events to these pages (empty = all pages).
	ChangeEventPages []string `envconfig:"CUSTOMAPP_CHANGE_EVENT_PAGES" toml:"change_event_pages"`

	// Client side
	Transport      string        `envconfig:"CUSTOMAPP_TRANSPORT" toml:"transport"`
	WebSocketURL   string        `envconfig:"CUSTOMAPP_WS_URL" toml:"ws_url"`
	ClientID       string        `envconfig:"CUSTOMAPP_CLIENT_ID" toml:"client_id"`
	RequestTimeout time.Duration `envconfig:"CUSTOMAPP_REQUEST_TIMEOUT" toml:"request_timeout"`

	// Development host
	SeedFile string `envconfig:"CUSTOMAPP_SEED_FILE" toml:"seed_file"`

	// HTTP endpoint (CUSTOMAPP_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr           string        `envconfig:"CUSTOMAPP_HTTP_ADDR" toml:"http_addr"`
	HTTPPort           int           `envconfig:"HTTP_PORT" toml:"http_port"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" toml:"health_check_timeout"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" toml:"log_level"`
}

// Defaults returns the configuration used when neither file nor environment set a value.
func Defaults() Config {
	return Config{
		COMMSURL:           "nats://127.0.0.1:4222",
		COMMSName:          "customapp-bridge",
		Transport:          TransportNATS,
		WebSocketURL:       "ws://127.0.0.1:8080/ws",
		RequestTimeout:     10 * time.Second,
		HTTPPort:           8080,
		HealthCheckTimeout: 5 * time.Second,
		LogLevel:           "info",
	}
}

// LoadConfig loads configuration from CUSTOMAPP_CONFIG_FILE (when set) and environment variables.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(os.Getenv("CUSTOMAPP_CONFIG_FILE"))
}

// LoadConfigFile loads configuration from the TOML file at path and environment variables.
// An empty path skips the file.
func LoadConfigFile(path string) (*Config, error) {
	c := Defaults()
	if path != "" {
		meta, err := toml.DecodeFile(path, &c)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", logPrefix, path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s - unknown keys in %s: %v", logPrefix, path, undecoded)
		}
	}
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// ValidateForServe checks required config when running the development host.
func (c *Config) ValidateForServe() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for serve", logPrefix)
	}
	if c.HTTPAddr == "" && (c.HTTPPort <= 0 || c.HTTPPort > 65535) {
		return fmt.Errorf("%s - HTTP_PORT must be between 1 and 65535", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForClient checks required config when running client commands.
func (c *Config) ValidateForClient() error {
	switch c.Transport {
	case TransportNATS:
		if c.COMMSURL == "" {
			return fmt.Errorf("%s - COMMS_URL is required for the nats transport", logPrefix)
		}
	case TransportWebSocket:
		if c.WebSocketURL == "" {
			return fmt.Errorf("%s - CUSTOMAPP_WS_URL is required for the ws transport", logPrefix)
		}
	default:
		return fmt.Errorf("%s - CUSTOMAPP_TRANSPORT must be %q or %q, got %q", logPrefix, TransportNATS, TransportWebSocket, c.Transport)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - CUSTOMAPP_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	return nil
}
