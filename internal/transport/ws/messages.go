package ws

import "encoding/json"

// Inbound message types accepted over the socket.
const (
	TypeJoinRoom   = "join_room"
	TypeLeaveRoom  = "leave_room"
	TypeGameAction = "game_action"
	TypeStartGame  = "start_game"
	TypeFinishGame = "finish_game"
)

type ClientMessage struct {
	Type        string          `json:"type"`
	RoomID      string          `json:"room_id,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Action      json.RawMessage `json:"action,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}
