// Package protocol defines the JSON envelopes exchanged with the chat server.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope type discriminators. Unknown values received from the server are
// skipped rather than treated as errors, so newer servers stay compatible
// with older clients.
const (
	TypeJoinRoom    = "JOIN_ROOM"
	TypeSendMessage = "SEND_MESSAGE"
	TypeAddChat     = "ADD_CHAT"
	TypeUpdateChat  = "UPDATE_CHAT"
	TypeJoinError   = "JOIN_ERROR"
)

// Envelope is a single typed message unit, one per transport frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinRoom is the client→server room membership request.
type JoinRoom struct {
	Name   string `json:"name"`
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

// SendMessage is the client→server chat message submission.
// ClientMessageID is an idempotency token; servers that echo it back in the
// corresponding AddChat let the sender replace its provisional entry in place.
type SendMessage struct {
	UserID          string `json:"userId"`
	RoomID          string `json:"roomId"`
	Message         string `json:"message"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// AddChat is the server→client broadcast of a confirmed chat message.
// Upvotes defaults to zero when the field is absent.
type AddChat struct {
	ChatID          string `json:"chatId"`
	RoomID          string `json:"roomId"`
	Message         string `json:"message"`
	Name            string `json:"name"`
	Upvotes         int    `json:"upvotes"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// UpdateChat is the server→client vote count update for a known message.
type UpdateChat struct {
	ChatID  string `json:"chatId"`
	Upvotes int    `json:"upvotes"`
}

// JoinError is the server→client rejection of a JoinRoom request.
type JoinError struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

// NewEnvelope wraps a typed payload into an Envelope.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", typ, err)
	}
	return Envelope{Type: typ, Payload: data}, nil
}

// Encode encodes the envelope into a wire frame.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses a wire frame into an Envelope. The payload is kept raw so the
// caller can dispatch on Type before committing to a payload shape.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("envelope has no type")
	}
	return e, nil
}

// AddChat decodes the payload as an AddChat record.
func (e Envelope) AddChat() (AddChat, error) {
	var p AddChat
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return AddChat{}, fmt.Errorf("failed to decode %s payload: %w", TypeAddChat, err)
	}
	return p, nil
}

// UpdateChat decodes the payload as an UpdateChat record.
func (e Envelope) UpdateChat() (UpdateChat, error) {
	var p UpdateChat
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return UpdateChat{}, fmt.Errorf("failed to decode %s payload: %w", TypeUpdateChat, err)
	}
	return p, nil
}

// JoinRoom decodes the payload as a JoinRoom request.
func (e Envelope) JoinRoom() (JoinRoom, error) {
	var p JoinRoom
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return JoinRoom{}, fmt.Errorf("failed to decode %s payload: %w", TypeJoinRoom, err)
	}
	return p, nil
}

// SendMessage decodes the payload as a SendMessage request.
func (e Envelope) SendMessage() (SendMessage, error) {
	var p SendMessage
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return SendMessage{}, fmt.Errorf("failed to decode %s payload: %w", TypeSendMessage, err)
	}
	return p, nil
}

// JoinError decodes the payload as a JoinError notice.
func (e Envelope) JoinError() (JoinError, error) {
	var p JoinError
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return JoinError{}, fmt.Errorf("failed to decode %s payload: %w", TypeJoinError, err)
	}
	return p, nil
}
