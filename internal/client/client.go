package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/okitsu/roomchat/internal/chat"
	"github.com/okitsu/roomchat/pkg/protocol"
)

// Options configures optional client behavior.
type Options struct {
	// Logger receives diagnostics; defaults to slog.Default().
	Logger *slog.Logger
	// CensorWords, when non-empty, enables masking of these words in inbound
	// messages before they reach the timeline.
	CensorWords []string
}

// Client composes the connection, the session, and the reconciler into one
// chat client. Every state transition happens either inside an exclusive
// caller operation or on the single event loop draining connection events, so
// the timeline only ever changes in delivery order.
type Client struct {
	mu   sync.Mutex
	conn *Connection
	sess *Session
	rec  *chat.Reconciler
	log  *slog.Logger

	updates chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New creates a Client for the given websocket URL and starts its event loop.
func New(url string, opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	var censor *chat.Censor
	if len(opts.CensorWords) > 0 {
		built, err := chat.NewCensor(opts.CensorWords, '*')
		if err != nil {
			return nil, err
		}
		censor = built
	}

	conn := NewConnection(url, log)
	sess := NewSession(conn)
	c := &Client{
		conn:    conn,
		sess:    sess,
		rec:     chat.NewReconciler(conn, sess, censor, log),
		log:     log,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go c.loop()
	return c, nil
}

// Connect starts establishing the transport; the outcome arrives through the
// event loop. The returned state reports what the connection was doing at the
// time of the call, so a redundant Connect is a visible no-op.
func (c *Client) Connect(ctx context.Context) State {
	return c.conn.Connect(ctx)
}

// Disconnect closes the transport. Membership is invalidated and the timeline
// cleared once the close event is processed.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// Close disconnects and stops the event loop permanently.
func (c *Client) Close() {
	c.conn.Close()
	c.once.Do(func() { close(c.done) })
}

// IsConnected reports whether the transport is open.
func (c *Client) IsConnected() bool {
	return c.conn.State() == StateOpen
}

// ConnectionState returns the connection lifecycle state.
func (c *Client) ConnectionState() State {
	return c.conn.State()
}

// ParticipantID returns the stable per-client participant identifier.
func (c *Client) ParticipantID() string {
	return c.sess.ParticipantID()
}

// Join requests room membership under the given display name.
func (c *Client) Join(displayName, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Join(displayName, roomID)
}

// Joined reports whether the client currently holds room membership.
func (c *Client) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Confirmed()
}

// SendMessage authors a message: the local echo appears in the timeline
// immediately and the envelope is transmitted to the server.
func (c *Client) SendMessage(body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.rec.SendMessage(body); err != nil {
		return err
	}
	c.notify()
	return nil
}

// Messages returns a snapshot of the timeline in insertion order.
func (c *Client) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Timeline().Messages()
}

// Updates signals that the timeline or membership changed. Notifications are
// coalesced; consumers re-read Messages after each one.
func (c *Client) Updates() <-chan struct{} {
	return c.updates
}

func (c *Client) loop() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.conn.Events():
			c.handle(ev)
		}
	}
}

func (c *Client) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case EventOpened:
		c.log.Info("connection open")
	case EventEnvelope:
		if ev.Envelope.Type == protocol.TypeJoinError {
			c.handleJoinError(ev.Envelope)
			return
		}
		if c.rec.HandleEnvelope(ev.Envelope) {
			c.notify()
		}
	case EventClosed:
		c.log.Info("connection closed")
		c.endSession()
	case EventFailed:
		c.log.Error("connection failed", "error", ev.Err)
		c.endSession()
	}
}

func (c *Client) handleJoinError(env protocol.Envelope) {
	p, err := env.JoinError()
	if err != nil {
		c.log.Warn("dropping malformed JOIN_ERROR", "error", err)
		return
	}
	c.log.Warn("join rejected", "room", p.RoomID, "reason", p.Reason)
	c.sess.HandleJoinError(p)
	c.notify()
}

// endSession invalidates membership and clears the timeline; a fresh
// connect+join sequence is required afterwards.
func (c *Client) endSession() {
	c.sess.Invalidate()
	c.rec.Reset()
	c.notify()
}

func (c *Client) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
