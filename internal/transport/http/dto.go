package http

import (
	"encoding/json"
	"time"

	"github.com/partydeck/game-server/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateRoomRequest struct {
	RoomID   string          `json:"room_id,omitempty"` // optional caller-chosen code
	Capacity int             `json:"capacity,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type RoomItem struct {
	ID           string               `json:"id"`
	Status       domain.RoomStatus    `json:"status"`
	Capacity     int                  `json:"capacity"`
	Participants []domain.Participant `json:"participants"`
	CreatedAt    time.Time            `json:"created_at"`
}

type RoomsListResponse struct {
	Items []RoomItem `json:"items"`
}

type HistoryResponse struct {
	Items      []domain.OutcomeRecord `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

func roomItem(r domain.Room) RoomItem {
	return RoomItem{
		ID:           r.ID,
		Status:       r.Status,
		Capacity:     r.Capacity,
		Participants: r.Participants,
		CreatedAt:    r.CreatedAt,
	}
}
