package domain

import "errors"

var (
	ErrRoomNotFound          = errors.New("room not found")
	ErrRoomAlreadyExists     = errors.New("room already exists")
	ErrRoomFull              = errors.New("room is full")
	ErrRoomNotJoinable       = errors.New("room is not joinable")
	ErrInvalidTransition     = errors.New("invalid room state transition")
	ErrNameTaken             = errors.New("display name already taken in the room")
	ErrDuplicateConnection   = errors.New("connection already registered")
	ErrConnectionNotFound    = errors.New("connection not registered")
	ErrConflictingAttachment = errors.New("connection already attached to another room")
	ErrSlowConsumer          = errors.New("connection send buffer full")
)

// ErrorCode maps a domain error to the machine-readable code sent to
// clients in error events. Unknown errors collapse to internal_error so
// internals never leak over the wire.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomAlreadyExists):
		return "room_already_exists"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrRoomNotJoinable):
		return "room_not_joinable"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNameTaken):
		return "name_taken"
	case errors.Is(err, ErrDuplicateConnection):
		return "duplicate_connection"
	case errors.Is(err, ErrConflictingAttachment):
		return "conflicting_attachment"
	case errors.Is(err, ErrConnectionNotFound):
		return "connection_not_found"
	default:
		return "internal_error"
	}
}
