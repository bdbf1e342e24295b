// Package server runs the development host: NATS subscription, WebSocket endpoint and an HTTP
// surface for inspecting and driving the context state.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/customapp-bridge/internal/config"
	"github.com/morezero/customapp-bridge/pkg/commsutil"
	"github.com/morezero/customapp-bridge/pkg/devhost"
	"github.com/morezero/customapp-bridge/pkg/events"
	"github.com/morezero/customapp-bridge/pkg/transport"
)

const logPrefix = "server:server"

// Server is the development host orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	host       *devhost.Host
	seedName   string
	httpServer *http.Server
	// ctx is cancelled on shutdown and ends open WebSocket sessions.
	ctx context.Context
}

// SetupLogging installs a text slog handler writing to w at the given level.
func SetupLogging(w io.Writer, level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})))
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	SetupLogging(os.Stdout, cfg.LogLevel)
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting customapp development host", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Load seed
	seed, err := devhost.LoadSeed(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load seed: %w", logPrefix, err)
	}
	bag, err := seed.Bag()
	if err != nil {
		return fmt.Errorf("%s - invalid seed: %w", logPrefix, err)
	}
	missing, err := devhost.MissingProperties(bag)
	switch {
	case err != nil:
		slog.Warn(fmt.Sprintf("%s - Seed %q: %v; clients will report an outdated context", logPrefix, seed.Name, err))
	case len(missing) > 0:
		slog.Warn(fmt.Sprintf("%s - Seed %q lacks %v; clients will report an outdated context", logPrefix, seed.Name, missing))
	}

	hostSubject := cfg.HostSubject
	if hostSubject == "" {
		hostSubject = commsutil.SubjectHost
	}
	slog.Info(fmt.Sprintf("%s - Host subject: %s", logPrefix, hostSubject))

	// Step 2: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))

	// Step 3: Create host
	publisherOpts := &events.CommsPublisherOpts{}
	if cfg.ChangeEventSubject != "" {
		publisherOpts.GlobalChangeSubject = cfg.ChangeEventSubject
	}
	var publisher events.EventPublisher = events.NewCommsPublisher(nc, publisherOpts)
	if len(cfg.ChangeEventPages) > 0 {
		filter, err := events.NewPageFilter(publisher, cfg.ChangeEventPages)
		if err != nil {
			nc.Close()
			return fmt.Errorf("%s - invalid CUSTOMAPP_CHANGE_EVENT_PAGES: %w", logPrefix, err)
		}
		publisher = filter
		slog.Info(fmt.Sprintf("%s - Publishing change events for pages %v", logPrefix, cfg.ChangeEventPages))
	}
	host, err := devhost.NewHost(devhost.NewHostParams{
		Publisher:   publisher,
		Properties:  bag,
		Unsupported: seed.Unsupported,
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("%s - failed to create host: %w", logPrefix, err)
	}

	s := &Server{cfg: cfg, nc: nc, host: host, seedName: seed.Name, ctx: ctx}

	// Step 4: Subscribe
	sub, err := transport.ServeNATS(nc, hostSubject, host.HandleMessage)
	if err != nil {
		nc.Close()
		return err
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, hostSubject))

	// Step 5: Start HTTP server
	httpAddr := cfg.ListenAddr()
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.routes()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Development host is ready with seed %q", logPrefix, seed.Name))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	_ = sub.Unsubscribe()
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = s.httpServer.Shutdown(shutdownCtx)
	_ = nc.Drain()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/context", s.handleContext)
	mux.HandleFunc("/popup", s.handlePopup)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}
