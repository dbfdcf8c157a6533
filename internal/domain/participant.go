package domain

import "time"

type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	JoinOrder   int       `json:"join_order"`
	Score       int       `json:"score"`
	JoinedAt    time.Time `json:"joined_at"`
}
