// Package tests contains end-to-end tests for customapp-bridge.
// These tests start an embedded NATS server and a development host, then drive the client
// facade over real transports.
package tests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/customapp-bridge/pkg/commsutil"
	"github.com/morezero/customapp-bridge/pkg/contexts"
	"github.com/morezero/customapp-bridge/pkg/customapp"
	"github.com/morezero/customapp-bridge/pkg/devhost"
	"github.com/morezero/customapp-bridge/pkg/events"
	"github.com/morezero/customapp-bridge/pkg/messenger"
	"github.com/morezero/customapp-bridge/pkg/schema"
	"github.com/morezero/customapp-bridge/pkg/transport"
)

const (
	testHostSubject   = "customapp.test.host.v1"
	testChangeSubject = "customapp.test.context.changed"
	testPort          = 14240
)

// testEnv holds the test environment for E2E tests.
type testEnv struct {
	ns   *commsserver.Server
	nc   *comms.Conn
	host *devhost.Host
}

// setupE2E starts an embedded NATS server and serves a development host on it.
func setupE2E(t *testing.T, unsupported ...string) *testEnv {
	t.Helper()

	opts := &commsserver.Options{
		Host:   "127.0.0.1",
		Port:   testPort,
		NoLog:  true,
		NoSigs: true,
	}
	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("e2e_test - failed to create NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("e2e_test - NATS server failed to start")
	}

	nc, err := commsutil.Connect(ns.ClientURL(), "e2e-host")
	if err != nil {
		ns.Shutdown()
		t.Fatalf("e2e_test - failed to connect: %v", err)
	}

	bag, err := devhost.DefaultSeed().Bag()
	if err != nil {
		t.Fatalf("e2e_test - seed: %v", err)
	}
	host, err := devhost.NewHost(devhost.NewHostParams{
		Publisher:   events.NewCommsPublisher(nc, &events.CommsPublisherOpts{GlobalChangeSubject: testChangeSubject}),
		Properties:  bag,
		Unsupported: unsupported,
	})
	if err != nil {
		t.Fatalf("e2e_test - NewHost: %v", err)
	}
	sub, err := transport.ServeNATS(nc, testHostSubject, host.HandleMessage)
	if err != nil {
		t.Fatalf("e2e_test - ServeNATS: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("e2e_test - flush: %v", err)
	}

	t.Cleanup(func() {
		_ = sub.Unsubscribe()
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return &testEnv{ns: ns, nc: nc, host: host}
}

// natsClient connects a new client over its own NATS connection.
func (e *testEnv) natsClient(t *testing.T, id string) (*customapp.Client, *messenger.Messenger) {
	t.Helper()
	nc, err := commsutil.Connect(e.ns.ClientURL(), "e2e-"+id)
	if err != nil {
		t.Fatalf("e2e_test - client connect: %v", err)
	}
	tr := transport.NewNATS(nc, transport.NATSParams{HostSubject: testHostSubject, ClientID: id})
	m := messenger.New(tr)
	if err := tr.Listen(m.HandleMessage); err != nil {
		t.Fatalf("e2e_test - Listen: %v", err)
	}
	t.Cleanup(func() {
		_ = tr.Close()
		nc.Close()
	})
	return customapp.NewClient(customapp.NewClientParams{Messenger: m}), m
}

// wsClient serves the host on an httptest WebSocket endpoint and connects a client to it.
func (e *testEnv) wsClient(t *testing.T) *customapp.Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := transport.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = transport.ServeWebSocket(ctx, conn, e.host.HandleMessage)
	}))

	ws, err := transport.DialWebSocket(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("e2e_test - dial: %v", err)
	}
	m := messenger.New(ws)
	ws.Listen(m.HandleMessage)
	t.Cleanup(func() {
		_ = ws.Close()
		cancel()
		srv.Close()
	})
	return customapp.NewClient(customapp.NewClientParams{Messenger: m})
}

func timeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestE2E_GetContext(t *testing.T) {
	env := setupE2E(t)
	client, _ := env.natsClient(t, "get-context")

	c, err := client.GetContext(timeout(t))
	if err != nil {
		t.Fatalf("e2e_test - GetContext: %v", err)
	}
	ie, ok := c.(*contexts.ItemEditorContext)
	if !ok {
		t.Fatalf("e2e_test - got %T, want *contexts.ItemEditorContext", c)
	}
	if ie.PageTitle != "On Roasts" || ie.ContentItemID == "" {
		t.Errorf("e2e_test - context = %+v", ie)
	}
}

func TestE2E_GetAppContext(t *testing.T) {
	env := setupE2E(t)
	client, _ := env.natsClient(t, "legacy")

	ac, err := client.GetAppContext(timeout(t))
	if err != nil {
		t.Fatalf("e2e_test - GetAppContext: %v", err)
	}
	if ac.Context.UserEmail != "developer@example.com" || ac.Config == nil {
		t.Errorf("e2e_test - app context = %+v", ac)
	}
}

func TestE2E_ConcurrentRequests(t *testing.T) {
	env := setupE2E(t)
	client, m := env.natsClient(t, "concurrent")
	ctx := timeout(t)

	keys := []schema.PropertyKey{
		schema.PropertyPath, schema.PropertyPageTitle, schema.PropertyUserEmail,
		schema.PropertyContentItemID, schema.PropertyLanguageID, schema.PropertyCurrentPage,
	}
	var wg sync.WaitGroup
	errs := make(chan error, len(keys)*4)
	for i := 0; i < 4; i++ {
		for _, key := range keys {
			wg.Add(1)
			go func(key schema.PropertyKey) {
				defer wg.Done()
				bag, err := client.GetContextProperties(ctx, []schema.PropertyKey{key})
				if err != nil {
					errs <- err
					return
				}
				if len(bag) != 1 || !bag.Has(key) {
					errs <- fmt.Errorf("asked for %s, got %v", key, bag)
				}
			}(key)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("e2e_test - %v", err)
	}
	if m.PendingCount() != 0 {
		t.Errorf("e2e_test - %d requests still pending", m.PendingCount())
	}
}

func TestE2E_NotSupported(t *testing.T) {
	env := setupE2E(t, schema.SetPopupSizeV1Key)
	client, _ := env.natsClient(t, "unsupported")

	_, err := client.SetPopupSize(timeout(t), schema.Pixels(640), schema.Pixels(480))
	var appErr *customapp.Error
	if !errors.As(err, &appErr) || appErr.Code != schema.ErrorCodeNotSupported {
		t.Fatalf("e2e_test - err = %v, want not-supported", err)
	}
}

func TestE2E_ObserveAcrossTransports(t *testing.T) {
	env := setupE2E(t)
	natsClient, _ := env.natsClient(t, "observer")
	wsClient := env.wsClient(t)
	ctx := timeout(t)

	changes := make(chan events.ContextChangedEvent, 4)
	changeSub, err := env.nc.Subscribe(testChangeSubject, func(msg *comms.Msg) {
		var e events.ContextChangedEvent
		if err := json.Unmarshal(msg.Data, &e); err == nil {
			changes <- e
		}
	})
	if err != nil {
		t.Fatalf("e2e_test - subscribe: %v", err)
	}
	defer changeSub.Unsubscribe()
	_ = env.nc.Flush()

	natsPushed := make(chan contexts.Context, 4)
	wsPushed := make(chan contexts.Context, 4)
	natsSub, err := natsClient.ObserveContext(ctx, func(c contexts.Context) { natsPushed <- c })
	if err != nil {
		t.Fatalf("e2e_test - nats ObserveContext: %v", err)
	}
	wsSub, err := wsClient.ObserveContext(ctx, func(c contexts.Context) { wsPushed <- c })
	if err != nil {
		t.Fatalf("e2e_test - ws ObserveContext: %v", err)
	}
	if natsSub.ID == wsSub.ID {
		t.Fatal("e2e_test - subscriptions share an id")
	}

	update := schema.PropertyBag{}
	_ = update.Set(schema.PropertyPageTitle, "Cold Brew")
	if _, err := env.host.UpdateProperties(ctx, update); err != nil {
		t.Fatalf("e2e_test - UpdateProperties: %v", err)
	}

	for name, ch := range map[string]chan contexts.Context{"nats": natsPushed, "ws": wsPushed} {
		select {
		case c := <-ch:
			if got := c.(*contexts.ItemEditorContext).PageTitle; got != "Cold Brew" {
				t.Errorf("e2e_test - %s client saw PageTitle %q", name, got)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("e2e_test - %s client never received the change", name)
		}
	}

	select {
	case e := <-changes:
		if e.NotifiedSubscriptions != 2 || e.CurrentPage != schema.PageItemEditor {
			t.Errorf("e2e_test - change event = %+v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("e2e_test - no change event published")
	}

	if err := natsSub.Unsubscribe(ctx); err != nil {
		t.Fatalf("e2e_test - Unsubscribe: %v", err)
	}
	if err := wsSub.Unsubscribe(ctx); err != nil {
		t.Fatalf("e2e_test - Unsubscribe: %v", err)
	}
	if env.host.SubscriptionCount() != 0 {
		t.Errorf("e2e_test - host still has %d subscriptions", env.host.SubscriptionCount())
	}
}
