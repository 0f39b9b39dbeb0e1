package client

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/okitsu/roomchat/pkg/protocol"
)

// Session turns a join intent into room membership and gates message traffic
// on it. Membership is optimistic: the wire protocol has no join ack, so it is
// assumed granted once the request is sent and revoked only by a later
// connection close or an explicit JoinError from the server.
type Session struct {
	conn     *Connection
	validate *validator.Validate

	participantID string
	displayName   string
	roomID        string
	confirmed     bool
}

type joinInput struct {
	DisplayName string `validate:"required"`
	RoomID      string `validate:"required"`
}

// NewSession creates a Session bound to the connection. The participant
// identifier is generated once here and is stable for the session's lifetime;
// it is never persisted across client instances.
func NewSession(conn *Connection) *Session {
	return &Session{
		conn:          conn,
		validate:      validator.New(),
		participantID: uuid.NewString(),
	}
}

// ParticipantID returns the stable per-client participant identifier.
func (s *Session) ParticipantID() string { return s.participantID }

// DisplayName returns the name supplied on the last join.
func (s *Session) DisplayName() string { return s.displayName }

// RoomID returns the room of the current membership.
func (s *Session) RoomID() string { return s.roomID }

// Confirmed reports whether the client currently holds room membership.
func (s *Session) Confirmed() bool { return s.confirmed }

// Join requests membership in roomID under displayName. Joining the room the
// session already holds is a no-op; joining a different room replaces the
// local session state.
func (s *Session) Join(displayName, roomID string) error {
	displayName = strings.TrimSpace(displayName)
	roomID = strings.TrimSpace(roomID)
	if err := s.validate.Struct(joinInput{DisplayName: displayName, RoomID: roomID}); err != nil {
		return fmt.Errorf("%w: display name and room are required", ErrInvalidInput)
	}
	if s.conn.State() != StateOpen {
		return ErrNotConnected
	}
	if s.confirmed && s.roomID == roomID {
		return nil
	}

	env, err := protocol.NewEnvelope(protocol.TypeJoinRoom, protocol.JoinRoom{
		Name:   displayName,
		UserID: s.participantID,
		RoomID: roomID,
	})
	if err != nil {
		return err
	}
	if err := s.conn.Send(env); err != nil {
		return err
	}

	s.displayName = displayName
	s.roomID = roomID
	s.confirmed = true
	return nil
}

// HandleJoinError revokes the optimistic membership when the server rejects
// the join for the room the session currently holds.
func (s *Session) HandleJoinError(p protocol.JoinError) {
	if !s.confirmed || p.RoomID != s.roomID {
		return
	}
	s.confirmed = false
}

// Invalidate clears membership. Called when the connection closes: sending is
// no longer possible and a fresh connect+join sequence is required.
func (s *Session) Invalidate() {
	s.confirmed = false
}
