// Package simulator implements a minimal room server speaking the roomchat
// wire protocol. It backs the integration tests and local development; the
// production server is an external collaborator.
package simulator

import (
	"strconv"
	"sync"

	"github.com/okitsu/roomchat/pkg/protocol"
)

// member is one connected participant with its outgoing frame queue.
type member struct {
	userID   string
	name     string
	roomID   string
	outgoing chan []byte
}

// Hub tracks room membership, assigns server-side chat identity, and fans
// broadcasts out to room members. A single Hub is shared by all connections.
type Hub struct {
	mu         sync.Mutex
	rooms      map[string]map[*member]bool
	nextChatID int64
	votes      map[string]int
	chatRooms  map[string]string
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rooms:     make(map[string]map[*member]bool),
		votes:     make(map[string]int),
		chatRooms: make(map[string]string),
	}
}

// join places the member in a room, leaving any previous one.
func (h *Hub) join(m *member, req protocol.JoinRoom) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(m)
	m.userID = req.UserID
	m.name = req.Name
	m.roomID = req.RoomID
	if h.rooms[req.RoomID] == nil {
		h.rooms[req.RoomID] = make(map[*member]bool)
	}
	h.rooms[req.RoomID][m] = true
}

// leave removes the member from its room.
func (h *Hub) leave(m *member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(m)
}

func (h *Hub) removeLocked(m *member) {
	if m.roomID == "" {
		return
	}
	if room := h.rooms[m.roomID]; room != nil {
		delete(room, m)
		if len(room) == 0 {
			delete(h.rooms, m.roomID)
		}
	}
	m.roomID = ""
}

// addChat assigns a server chat id to the submission and broadcasts the
// resulting ADD_CHAT to the whole room, sender included. The idempotency
// token is echoed back so the sender can confirm its provisional entry.
func (h *Hub) addChat(req protocol.SendMessage, name string) error {
	h.mu.Lock()
	h.nextChatID++
	chatID := strconv.FormatInt(h.nextChatID, 10)
	h.chatRooms[chatID] = req.RoomID
	h.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.TypeAddChat, protocol.AddChat{
		ChatID:          chatID,
		RoomID:          req.RoomID,
		Message:         req.Message,
		Name:            name,
		Upvotes:         0,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		return err
	}
	return h.broadcast(req.RoomID, env)
}

// Upvote increments the vote count of a known chat message and broadcasts the
// new total to its room. It reports whether the chat id was known.
func (h *Hub) Upvote(chatID string) bool {
	h.mu.Lock()
	roomID, ok := h.chatRooms[chatID]
	if !ok {
		h.mu.Unlock()
		return false
	}
	h.votes[chatID]++
	votes := h.votes[chatID]
	h.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.TypeUpdateChat, protocol.UpdateChat{
		ChatID:  chatID,
		Upvotes: votes,
	})
	if err != nil {
		return false
	}
	_ = h.broadcast(roomID, env)
	return true
}

// RoomSize returns the number of members currently joined to a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// broadcast queues a frame on every room member. Members whose queue is full
// miss the frame rather than stalling the room.
func (h *Hub) broadcast(roomID string, env protocol.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for m := range h.rooms[roomID] {
		select {
		case m.outgoing <- data:
		default:
		}
	}
	return nil
}
