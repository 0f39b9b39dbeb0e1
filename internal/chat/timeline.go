// Package chat maintains the local message timeline and reconciles it with
// authoritative server events. It never talks to the transport directly and
// emits nothing toward the UI; consumers observe it through snapshots.
package chat

import (
	"time"

	"github.com/samber/lo"
)

// Message is one entry in the timeline view. Provisional entries were
// authored locally and not yet confirmed by the server; their identifiers
// live in a separate value space ("local-N") from server-assigned chat IDs.
type Message struct {
	ID          string
	RoomID      string
	Author      string
	Body        string
	Votes       int
	Provisional bool

	token  string
	sentAt time.Time
}

// Timeline is an insertion-ordered message view. It is append-only apart from
// in-place vote updates and provisional→confirmed identity swaps; entries are
// never removed during a session and the whole view is cleared when the
// session ends.
type Timeline struct {
	entries []Message
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Len returns the number of entries in the view.
func (t *Timeline) Len() int {
	return len(t.entries)
}

// Messages returns a copy of the view in insertion order.
func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.entries))
	copy(out, t.entries)
	return out
}

// Reset clears the view.
func (t *Timeline) Reset() {
	t.entries = nil
}

func (t *Timeline) append(m Message) {
	t.entries = append(t.entries, m)
}

func (t *Timeline) dropLast() {
	if len(t.entries) > 0 {
		t.entries = t.entries[:len(t.entries)-1]
	}
}

// setVotes sets the vote count of the entry with the given id, reporting
// whether such an entry exists.
func (t *Timeline) setVotes(id string, votes int) bool {
	_, i, ok := lo.FindIndexOf(t.entries, func(m Message) bool { return m.ID == id })
	if !ok {
		return false
	}
	t.entries[i].Votes = votes
	return true
}

// contains reports whether a confirmed entry with the given server id exists.
func (t *Timeline) contains(id string) bool {
	return lo.ContainsBy(t.entries, func(m Message) bool { return !m.Provisional && m.ID == id })
}

// indexByToken finds the provisional entry carrying the idempotency token.
func (t *Timeline) indexByToken(token string) (int, bool) {
	_, i, ok := lo.FindIndexOf(t.entries, func(m Message) bool {
		return m.Provisional && m.token == token
	})
	return i, ok
}

// indexOfRecentEcho finds a provisional entry matching the author, body, and
// room of a server broadcast, sent no earlier than the cutoff. Used to absorb
// the sender's own echo when the server does not echo the idempotency token.
func (t *Timeline) indexOfRecentEcho(author, body, roomID string, cutoff time.Time) (int, bool) {
	_, i, ok := lo.FindIndexOf(t.entries, func(m Message) bool {
		return m.Provisional && m.Author == author && m.Body == body &&
			m.RoomID == roomID && !m.sentAt.Before(cutoff)
	})
	return i, ok
}

// confirm swaps the entry at i to its server identity in place.
func (t *Timeline) confirm(i int, serverID string, votes int) {
	t.entries[i].ID = serverID
	t.entries[i].Votes = votes
	t.entries[i].Provisional = false
	t.entries[i].token = ""
}
