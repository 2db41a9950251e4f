package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const closeFrameTimeout = time.Second

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the subset of *websocket.Conn the gateway relies on.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	SetReadLimit(limit int64)
	Close() error
}

var _ Transport = (*websocket.Conn)(nil)

// Conn is one live connection of an account. Frames are queued on send and
// written by a single writer goroutine; enqueueing never blocks.
type Conn struct {
	accountID string
	transport Transport
	opts      Options

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	enqueueMu sync.Mutex

	state   atomic.Int32
	dropped atomic.Int64
}

func newConn(accountID string, transport Transport, opts Options) *Conn {
	c := &Conn{
		accountID: accountID,
		transport: transport,
		opts:      opts,
		send:      make(chan []byte, opts.SendBuffer),
		done:      make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *Conn) AccountID() string { return c.accountID }

func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// Dropped returns how many frames were discarded because the queue was full.
func (c *Conn) Dropped() int64 { return c.dropped.Load() }

// enqueue reports whether the frame was queued.
func (c *Conn) enqueue(frame []byte) bool {
	if c.State() != StateOpen {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
	}

	if c.opts.Overflow == OverflowDisconnect {
		c.dropped.Add(1)
		log.Warn().
			Str("accountId", c.accountID).
			Int("buffer", cap(c.send)).
			Msg("slow consumer, disconnecting")
		go c.closeWith(websocket.ClosePolicyViolation, "slow consumer")
		return false
	}

	c.enqueueMu.Lock()
	defer c.enqueueMu.Unlock()

	select {
	case <-c.send:
		c.dropped.Add(1)
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// closeWith sends a close frame, bounded by closeFrameTimeout, and then shuts the connection down.
func (c *Conn) closeWith(code int, text string) {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, text)
		_ = c.transport.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeFrameTimeout))
		c.terminate()
	})
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(c.terminate)
}

func (c *Conn) terminate() {
	close(c.done)
	_ = c.transport.Close()
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case frame := <-c.send:
			_ = c.transport.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.transport.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("accountId", c.accountID).Msg("gateway write failed")
				c.shutdown()
				return
			}

		case <-ticker.C:
			if err := c.transport.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				log.Debug().Err(err).Str("accountId", c.accountID).Msg("gateway ping failed")
				c.shutdown()
				return
			}
		}
	}
}

// readPump discards inbound frames and keeps the read deadline alive on pongs.
// It returns when the peer goes away or the transport is closed.
func (c *Conn) readPump() {
	c.transport.SetReadLimit(c.opts.ReadLimit)
	_ = c.transport.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.transport.SetPongHandler(func(string) error {
		return c.transport.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		if _, _, err := c.transport.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("accountId", c.accountID).Msg("gateway read ended unexpectedly")
			}
			return
		}
	}
}
