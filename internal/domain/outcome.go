package domain

import (
	"encoding/json"
	"time"
)

// Outcome is the durable summary of a finished room, handed to the
// persistence layer after the in-memory transition has committed.
type Outcome struct {
	RoomID       string
	Result       json.RawMessage
	Participants []Participant
	FinishedAt   time.Time
}

// OutcomeRecord is a persisted outcome as read back for history
// reporting. Never used to reconstruct live rooms.
type OutcomeRecord struct {
	ID         string          `json:"id"`
	RoomID     string          `json:"room_id"`
	Result     json.RawMessage `json:"result,omitempty"`
	FinishedAt time.Time       `json:"finished_at"`
}
