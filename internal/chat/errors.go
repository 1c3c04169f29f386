package chat

import "errors"

// Protocol errors: the line was understood as a command but is malformed.
var (
	ErrEmptyRoomName  = errors.New("room name must not be empty")
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidLine    = errors.New("line contains a line break")
)

// State conflicts: the command is well formed but not allowed right now.
var (
	ErrRoomExists     = errors.New("room already exists")
	ErrRoomNotFound   = errors.New("room does not exist")
	ErrRoomClosed     = errors.New("room closed")
	ErrNotOwner       = errors.New("not the owner of this room")
	ErrOwnerMustClose = errors.New("owner must close room before joining another")
	ErrNotInRoom      = errors.New("not in a room")
	ErrNoRoom         = errors.New("must join a room first")
)

// I/O failures on a single connection. These never reach a broadcaster.
var (
	ErrConnClosed   = errors.New("connection closed")
	ErrSlowConsumer = errors.New("send queue full")
)

// replyFor maps a command error to the ERROR line sent back to the client.
func replyFor(err error) string {
	switch {
	case errors.Is(err, ErrEmptyRoomName):
		return errorLine("Room name must not be empty.")
	case errors.Is(err, ErrUnknownCommand):
		return errorLine("Unknown command.")
	case errors.Is(err, ErrInvalidLine):
		return errorLine("Line must not contain line breaks.")
	case errors.Is(err, ErrRoomExists):
		return errorLine("Room already exists.")
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrRoomClosed):
		return errorLine("Room does not exist.")
	case errors.Is(err, ErrNotOwner):
		return errorLine("You are not the owner of this room.")
	case errors.Is(err, ErrOwnerMustClose):
		return errorLine("You need to close your room before joining another.")
	case errors.Is(err, ErrNotInRoom):
		return errorLine("You are not in a room.")
	case errors.Is(err, ErrNoRoom):
		return errorLine("You must join a room first.")
	default:
		return errorLine("Internal error.")
	}
}

// errorKind labels err for the commands_total metric.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyRoomName), errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrInvalidLine):
		return "protocol_error"
	default:
		return "state_conflict"
	}
}
