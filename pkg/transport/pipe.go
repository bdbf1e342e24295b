package transport

import (
	"fmt"
	"log/slog"
	"sync"
)

const pipeLogPrefix = "transport:pipe"

const pipeBuffer = 256

// Pipe is an in-process transport connecting a client directly to a HostFunc. Each direction
// has its own delivery goroutine, so the host and the client handler never run concurrently
// with themselves.
type Pipe struct {
	host HostFunc

	mu       sync.Mutex
	closed   bool
	toHost   chan []byte
	toClient chan []byte
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewPipe creates a Pipe whose posted envelopes are handled by host.
func NewPipe(host HostFunc) *Pipe {
	p := &Pipe{
		host:     host,
		toHost:   make(chan []byte, pipeBuffer),
		toClient: make(chan []byte, pipeBuffer),
		done:     make(chan struct{}),
	}
	p.wg.Add(1)
	go p.hostLoop()
	return p
}

// Listen starts delivering host envelopes to handler. It must be called once.
func (p *Pipe) Listen(handler Handler) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case data := <-p.toClient:
				handler(data)
			case <-p.done:
				return
			}
		}
	}()
}

func (p *Pipe) hostLoop() {
	defer p.wg.Done()
	for {
		select {
		case data := <-p.toHost:
			p.host(data, p.reply)
		case <-p.done:
			return
		}
	}
}

func (p *Pipe) enqueue(ch chan []byte, data []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	msg := append([]byte(nil), data...)
	select {
	case ch <- msg:
		return nil
	case <-p.done:
		return ErrTransportClosed
	}
}

// PostMessage sends data to the host.
func (p *Pipe) PostMessage(data []byte) error {
	if err := p.enqueue(p.toHost, data); err != nil {
		return fmt.Errorf("%s - post: %w", pipeLogPrefix, err)
	}
	return nil
}

func (p *Pipe) reply(data []byte) error {
	if err := p.enqueue(p.toClient, data); err != nil {
		slog.Debug(fmt.Sprintf("%s - reply dropped: %v", pipeLogPrefix, err))
		return err
	}
	return nil
}

// Close stops both delivery goroutines. Queued envelopes are discarded.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
