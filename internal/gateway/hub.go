package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrHubClosed = errors.New("gateway hub closed")

// Hub is the process-local mailbox: account id to its live connections.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[*Conn]struct{}
	closed bool
	opts   Options
}

func NewHub(opts Options) *Hub {
	return &Hub{
		conns: make(map[string]map[*Conn]struct{}),
		opts:  opts,
	}
}

// Serve registers transport for accountID and blocks until the connection ends,
// either by the peer, a write failure, ctx cancellation or Close.
func (h *Hub) Serve(ctx context.Context, accountID string, transport Transport) error {
	c := newConn(accountID, transport, h.opts)
	if err := h.register(c); err != nil {
		_ = transport.Close()
		return err
	}

	log.Info().
		Str("accountId", accountID).
		Int("connections", h.ConnectionCount(accountID)).
		Msg("gateway connection opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	go func() {
		select {
		case <-ctx.Done():
			c.closeWith(websocket.CloseGoingAway, "server shutdown")
		case <-c.done:
		}
	}()

	defer func() {
		c.setState(StateClosing)
		h.deregister(c)
		c.shutdown()

		select {
		case <-writerDone:
		case <-time.After(h.opts.CloseTimeout):
			log.Warn().Str("accountId", accountID).Msg("gateway writer did not stop in time")
		}

		c.setState(StateClosed)
		log.Info().
			Str("accountId", accountID).
			Int64("dropped", c.Dropped()).
			Msg("gateway connection closed")
	}()

	c.readPump()
	return nil
}

func (h *Hub) register(c *Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	set, ok := h.conns[c.accountID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.conns[c.accountID] = set
	}
	set[c] = struct{}{}
	c.setState(StateOpen)
	return nil
}

func (h *Hub) deregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[c.accountID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.accountID)
	}
}

// Publish enqueues {event, data} on every connection of the targets and returns
// how many connections accepted it. Targets without connections are skipped.
func (h *Hub) Publish(eventType string, data any, targets ...string) int {
	frame, err := json.Marshal(Envelope{Event: eventType, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to encode gateway event")
		return 0
	}

	h.mu.RLock()
	var conns []*Conn
	seen := make(map[string]struct{}, len(targets))
	for _, accountID := range targets {
		if _, dup := seen[accountID]; dup {
			continue
		}
		seen[accountID] = struct{}{}
		for c := range h.conns[accountID] {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if c.enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) ConnectionCount(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[accountID])
}

func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, set := range h.conns {
		total += len(set)
	}
	return total
}

// Close rejects new connections and closes every live one.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var conns []*Conn
	for _, set := range h.conns {
		for c := range set {
			conns = append(conns, c)
		}
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			c.closeWith(websocket.CloseGoingAway, "server shutdown")
		}(c)
	}
	wg.Wait()

	log.Info().Int("connections", len(conns)).Msg("gateway hub closed")
}
