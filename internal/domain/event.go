package domain

// Outbound event types pushed to subscribed connections.
const (
	EventRoomState  = "room_state"  // full room snapshot
	EventRoomClosed = "room_closed" // room torn down
	EventError      = "error"       // targeted at one connection only
)

// Event is the unit of broadcast. Seq is assigned by the dispatcher and
// strictly increases per room, so clients can detect reordering or loss.
type Event struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id,omitempty"`
	Seq     uint64 `json:"seq,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type RoomStatePayload struct {
	Room Room `json:"room"`
}

type RoomClosedPayload struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
