// Package client implements the chat client core: connection lifecycle,
// room membership, and the event stream feeding message reconciliation.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/okitsu/roomchat/pkg/protocol"
	"nhooyr.io/websocket"
)

// State describes the connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateFailed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventKind discriminates connection events.
type EventKind int

const (
	// EventOpened reports that the transport was established.
	EventOpened EventKind = iota
	// EventEnvelope carries one decoded inbound envelope.
	EventEnvelope
	// EventClosed reports an orderly connection close.
	EventClosed
	// EventFailed reports a dial failure or a transport error.
	EventFailed
)

// Event is one connection notification. Events are delivered on a single
// channel in the order the transport produced them.
type Event struct {
	Kind     EventKind
	Envelope protocol.Envelope
	Err      error
}

const eventBuffer = 32

// Connection owns the transport and its lifecycle state. It performs no
// automatic retry; reconnecting is the caller's decision, made by calling
// Connect again after a close or failure.
type Connection struct {
	url string
	log *slog.Logger

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	closing bool

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection creates a Connection for the given websocket URL.
func NewConnection(url string, log *slog.Logger) *Connection {
	if log == nil {
		log = slog.Default()
	}
	return &Connection{
		url:    url,
		log:    log,
		state:  StateDisconnected,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the channel delivering connection events. It is meant for a
// single consumer; in-order delivery is only guaranteed with one reader.
func (c *Connection) Events() <-chan Event {
	return c.events
}

// Connect starts establishing the transport. The outcome arrives on Events as
// EventOpened or EventFailed. Calling Connect while already connecting or open
// is a no-op; the returned state reports what the connection was doing at the
// time of the call.
func (c *Connection) Connect(ctx context.Context) State {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		s := c.state
		c.mu.Unlock()
		return s
	}
	c.state = StateConnecting
	c.closing = false
	c.mu.Unlock()

	go c.dial(ctx)
	return StateConnecting
}

func (c *Connection) dial(ctx context.Context) {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateFailed
		c.mu.Unlock()
		c.emit(Event{Kind: EventFailed, Err: fmt.Errorf("failed to connect to server: %w", err)})
		return
	}

	c.mu.Lock()
	if c.closing {
		// Disconnect raced the dial; drop the fresh transport.
		c.state = StateDisconnected
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		c.emit(Event{Kind: EventClosed})
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.emit(Event{Kind: EventOpened})
	go c.readLoop(conn)
}

// Send transmits one envelope. It is allowed only while the connection is
// open and blocks no longer than transport backpressure requires.
func (c *Connection) Send(env protocol.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		return ErrNotConnected
	}
	data, err := env.Encode()
	if err != nil {
		return err
	}
	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send %s envelope: %w", env.Type, err)
	}
	return nil
}

// Disconnect closes the transport if one is established or being established.
// The close is reported asynchronously as an EventClosed.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	switch c.state {
	case StateConnecting, StateOpen:
		c.closing = true
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

// Close disconnects and stops event delivery permanently.
func (c *Connection) Close() {
	c.Disconnect()
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Connection) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			c.finish(conn, err)
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn("dropping malformed envelope", "error", err)
			continue
		}
		c.emit(Event{Kind: EventEnvelope, Envelope: env})
	}
}

// finish classifies the read error that ended the loop: an orderly close
// transitions back to Disconnected, anything else is a transport failure.
func (c *Connection) finish(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	orderly := c.closing || isCloseError(err)
	if orderly {
		c.state = StateDisconnected
	} else {
		c.state = StateFailed
	}
	c.mu.Unlock()

	if orderly {
		c.emit(Event{Kind: EventClosed})
		return
	}
	c.log.Warn("connection lost", "error", err)
	c.emit(Event{Kind: EventFailed, Err: err})
}

func isCloseError(err error) bool {
	if websocket.CloseStatus(err) != -1 {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// emit delivers an event unless the connection has been closed for good.
func (c *Connection) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
