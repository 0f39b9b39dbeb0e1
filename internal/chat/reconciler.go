package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okitsu/roomchat/pkg/protocol"
)

var (
	// ErrEmptyMessage is returned when a message body is blank after trimming.
	ErrEmptyMessage = errors.New("message body is empty")

	// ErrNotJoined is returned when sending without confirmed room membership.
	ErrNotJoined = errors.New("no room membership")
)

// echoWindow bounds how long a provisional entry stays eligible for
// content-based echo matching when the server does not echo the token.
const echoWindow = 5 * time.Second

// Sender transmits one envelope to the server.
type Sender interface {
	Send(protocol.Envelope) error
}

// Membership exposes the read-only session state the reconciler needs.
type Membership interface {
	ParticipantID() string
	DisplayName() string
	RoomID() string
	Confirmed() bool
}

// Reconciler merges locally authored messages and authoritative server events
// into one ordered view. Events are applied in the exact order they are
// handed in; it performs no reordering or batching.
type Reconciler struct {
	sender   Sender
	session  Membership
	timeline *Timeline
	censor   *Censor
	log      *slog.Logger

	seq int
	now func() time.Time
}

// NewReconciler creates a Reconciler. censor may be nil to disable inbound
// moderation.
func NewReconciler(sender Sender, session Membership, censor *Censor, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		sender:   sender,
		session:  session,
		timeline: NewTimeline(),
		censor:   censor,
		log:      log,
		now:      time.Now,
	}
}

// Timeline returns the view the reconciler maintains.
func (r *Reconciler) Timeline() *Timeline {
	return r.timeline
}

// SendMessage appends an optimistic local echo and transmits the message.
// The echo carries a provisional identifier and a fresh idempotency token; a
// later server broadcast echoing the token confirms the entry in place. A
// transmit failure removes the echo again so a rejected send leaves no trace.
func (r *Reconciler) SendMessage(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyMessage
	}
	if !r.session.Confirmed() {
		return ErrNotJoined
	}

	r.seq++
	token := uuid.NewString()
	env, err := protocol.NewEnvelope(protocol.TypeSendMessage, protocol.SendMessage{
		UserID:          r.session.ParticipantID(),
		RoomID:          r.session.RoomID(),
		Message:         body,
		ClientMessageID: token,
	})
	if err != nil {
		return err
	}

	r.timeline.append(Message{
		ID:          fmt.Sprintf("local-%d", r.seq),
		RoomID:      r.session.RoomID(),
		Author:      r.session.DisplayName(),
		Body:        body,
		Provisional: true,
		token:       token,
		sentAt:      r.now(),
	})
	if err := r.sender.Send(env); err != nil {
		r.timeline.dropLast()
		return err
	}
	return nil
}

// HandleEnvelope applies one inbound server event to the timeline and reports
// whether the view changed. Unknown envelope types are skipped; malformed
// payloads are dropped with a diagnostic and never corrupt the view.
func (r *Reconciler) HandleEnvelope(env protocol.Envelope) bool {
	switch env.Type {
	case protocol.TypeAddChat:
		p, err := env.AddChat()
		if err != nil {
			r.log.Warn("dropping malformed ADD_CHAT", "error", err)
			return false
		}
		return r.applyAdd(p)
	case protocol.TypeUpdateChat:
		p, err := env.UpdateChat()
		if err != nil {
			r.log.Warn("dropping malformed UPDATE_CHAT", "error", err)
			return false
		}
		if !r.timeline.setVotes(p.ChatID, p.Upvotes) {
			// The add event may simply not have arrived yet.
			r.log.Debug("vote update for unknown message", "chatId", p.ChatID)
			return false
		}
		return true
	default:
		r.log.Debug("ignoring envelope", "type", env.Type)
		return false
	}
}

// Reset clears the timeline. Called when the session ends.
func (r *Reconciler) Reset() {
	r.seq = 0
	r.timeline.Reset()
}

func (r *Reconciler) applyAdd(p protocol.AddChat) bool {
	if p.ClientMessageID != "" {
		if i, ok := r.timeline.indexByToken(p.ClientMessageID); ok {
			r.timeline.confirm(i, p.ChatID, p.Upvotes)
			return true
		}
	}
	if r.timeline.contains(p.ChatID) {
		// Retransmission; the view already holds this message.
		return false
	}
	if i, ok := r.timeline.indexOfRecentEcho(p.Name, p.Message, p.RoomID, r.now().Add(-echoWindow)); ok {
		r.timeline.confirm(i, p.ChatID, p.Upvotes)
		return true
	}

	body := p.Message
	if r.censor != nil {
		body = r.censor.Censor(body)
	}
	r.timeline.append(Message{
		ID:     p.ChatID,
		RoomID: p.RoomID,
		Author: p.Name,
		Body:   body,
		Votes:  p.Upvotes,
	})
	return true
}
