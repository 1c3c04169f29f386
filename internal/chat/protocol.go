package chat

import (
	"fmt"
	"strings"
)

// Client → server verbs. Any line that does not start with one of these is chat.
const (
	CmdRequestRoomList = "REQUEST_ROOM_LIST"
	CmdCreateRoom      = "CREATE_ROOM"
	CmdJoinRoom        = "JOIN_ROOM"
	CmdCloseRoom       = "CLOSE_ROOM"
	CmdLeaveRoom       = "LEAVE_ROOM"

	cmdChat = "chat"
)

// Server → client prefixes.
const (
	roomListPrefix = "ROOM_LIST:"
	noticePrefix   = "NOTICE: "
	errorPrefix    = "ERROR: "
)

// Command is one parsed client line.
type Command struct {
	Verb string // one of the Cmd* constants, or "chat"
	Arg  string // room name, or the chat text
}

var verbs = []string{CmdRequestRoomList, CmdCreateRoom, CmdJoinRoom, CmdCloseRoom, CmdLeaveRoom}

// ParseCommand splits a line into verb and argument. A verb matches only when
// the line is exactly the verb or the verb followed by ':'.
func ParseCommand(line string) Command {
	for _, v := range verbs {
		if line == v {
			return Command{Verb: v}
		}
		if rest, ok := strings.CutPrefix(line, v+":"); ok {
			return Command{Verb: v, Arg: strings.TrimSpace(rest)}
		}
	}
	return Command{Verb: cmdChat, Arg: line}
}

func roomListLine(names []string) string {
	return roomListPrefix + strings.Join(names, ",")
}

func noticeLine(format string, args ...any) string {
	return noticePrefix + fmt.Sprintf(format, args...)
}

func errorLine(msg string) string { return errorPrefix + msg }

func welcomeLine(name string) string { return fmt.Sprintf("Welcome, %s!", name) }

func chatLine(name, text string) string { return name + ": " + text }

func joinedNotice(name string) string { return noticeLine("%s has joined the room.", name) }

func leftNotice(name string) string { return noticeLine("%s has left the room.", name) }

var (
	closingNotice  = noticeLine("The room is closing.")
	closedReply    = "Room closed."
	shutdownNotice = noticeLine("Server is shutting down.")
)

// CheckLine rejects text that would split into more than one protocol line.
func CheckLine(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return ErrInvalidLine
	}
	return nil
}
