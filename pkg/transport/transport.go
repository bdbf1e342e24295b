// Package transport carries encoded envelopes between a client Messenger and a host.
// Every transport delivers inbound envelopes to its Handler one at a time, in arrival order.
package transport

import "errors"

// ErrTransportClosed is returned when posting on a closed transport.
var ErrTransportClosed = errors.New("transport: closed")

// Handler receives one inbound envelope.
type Handler func(data []byte)

// ReplyFunc posts an envelope back to the client that sent a request.
type ReplyFunc func(data []byte) error

// HostFunc handles one envelope posted by a client. reply stays valid for the client's
// lifetime, so hosts may keep it to push notifications.
type HostFunc func(data []byte, reply ReplyFunc)
