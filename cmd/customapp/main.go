// Package main is the entrypoint for the customapp CLI: it runs the development host and drives
// the custom app operations against a running host.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/morezero/customapp-bridge/internal/server"
)

const usage = `Usage: customapp [command]

Commands:
  serve                        (default) Start the development host (NATS, HTTP, WebSocket).
  get-context                  Fetch the context of the current page.
  get-app-context              Fetch the legacy app context (get-context@1.0.0).
  get-properties <key>...      Fetch the named context properties.
  observe                      Print the context and every change until interrupted.
  set-popup-size <w> <h>       Resize the popup, e.g. "set-popup-size 640px 50%".
  schemas [operation[@range]]  Print registered operations and their JSON Schemas as YAML,
                               e.g. "schemas get-context@^1".

Environment:
  CUSTOMAPP_CONFIG_FILE           TOML file read before the environment.
  COMMS_URL                       NATS URL (default nats://127.0.0.1:4222).
  SERVICE_NAME                    NATS connection name (default customapp-bridge).
  CUSTOMAPP_TRANSPORT             Client transport: nats or ws (default nats).
  CUSTOMAPP_WS_URL                Host WebSocket URL (default ws://127.0.0.1:8080/ws).
  CUSTOMAPP_CLIENT_ID             Client id for the NATS reply subject (default random).
  CUSTOMAPP_REQUEST_TIMEOUT       Per-request timeout (default 10s).
  CUSTOMAPP_HOST_SUBJECT          Host request subject (default customapp.host.v1).
  CUSTOMAPP_CHANGE_EVENT_SUBJECT  Context change event subject (default customapp.context.changed).
  CUSTOMAPP_CHANGE_EVENT_PAGES    Comma-separated pages whose change events are published.
  CUSTOMAPP_SEED_FILE             Seed file for the development host.
  CUSTOMAPP_HTTP_ADDR             HTTP listen address, e.g. 0.0.0.0:8080.
  HTTP_PORT                       HTTP port when CUSTOMAPP_HTTP_ADDR is unset (default 8080).
  HEALTH_CHECK_TIMEOUT            Health check timeout (default 5s).
  LOG_LEVEL                       debug, info, warn or error (default info).
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	var err error
	switch cmd {
	case "get-context":
		err = runGetContext()
	case "get-app-context":
		err = runGetAppContext()
	case "get-properties":
		if len(args) < 2 {
			log.Fatalf("customapp get-properties: require at least one property key of %s", knownPropertyKeys())
		}
		err = runGetProperties(args[1:])
	case "observe":
		err = runObserve()
	case "set-popup-size":
		if len(args) != 3 {
			log.Fatalf("customapp set-popup-size: require width and height, e.g. 640px 50%%")
		}
		err = runSetPopupSize(args[1], args[2])
	case "schemas":
		ref := ""
		if len(args) > 1 {
			ref = args[1]
		}
		err = runSchemas(os.Stdout, ref)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		err = server.Run()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("customapp %s: %v", cmd, err)
	}
}
