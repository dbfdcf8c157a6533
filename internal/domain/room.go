package domain

import (
	"encoding/json"
	"time"
)

type RoomStatus string

const (
	StatusOpen       RoomStatus = "open"        // accepting participants
	StatusInProgress RoomStatus = "in_progress" // game running, joins rejected
	StatusFinished   RoomStatus = "finished"    // outcome recorded, awaiting teardown
	StatusClosed     RoomStatus = "closed"      // aborted, scheduled for removal
)

// Room is the live in-memory session state. Participants keeps join
// order, which doubles as turn order. Payload is owned by game logic and
// only ever rewritten through a mutator under the room lock.
type Room struct {
	ID           string          `json:"id"`
	Status       RoomStatus      `json:"status"`
	Capacity     int             `json:"capacity"`
	Participants []Participant   `json:"participants"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Clone returns a deep copy safe to read outside the room lock.
func (r *Room) Clone() Room {
	out := *r
	out.Participants = make([]Participant, len(r.Participants))
	copy(out.Participants, r.Participants)
	if r.Payload != nil {
		out.Payload = make(json.RawMessage, len(r.Payload))
		copy(out.Payload, r.Payload)
	}
	return out
}

func (r *Room) HasParticipant(participantID string) bool {
	return r.indexOf(participantID) >= 0
}

func (r *Room) indexOf(participantID string) int {
	for i := range r.Participants {
		if r.Participants[i].ID == participantID {
			return i
		}
	}
	return -1
}

// RemoveParticipant deletes the participant preserving join order.
// Returns false if the id is not present.
func (r *Room) RemoveParticipant(participantID string) bool {
	i := r.indexOf(participantID)
	if i < 0 {
		return false
	}
	r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
	return true
}

// Joinable reports whether a join is currently allowed; the capacity
// check is separate so callers can tell RoomFull from RoomNotJoinable.
func (r *Room) Joinable() bool {
	return r.Status == StatusOpen
}

func (r *Room) Full() bool {
	return len(r.Participants) >= r.Capacity
}
