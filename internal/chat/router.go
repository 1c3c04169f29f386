package chat

import "sync"

type handlerFunc func(s *Session, arg string) error

// router keeps a map[verb]handler that sessions dispatch parsed lines through.
type router struct {
	mu       sync.RWMutex
	handlers map[string]handlerFunc
}

func newRouter() *router { return &router{handlers: make(map[string]handlerFunc)} }

func (r *router) handle(verb string, h handlerFunc) {
	if verb == "" {
		panic("chat router: empty verb")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[verb] = h
}

// dispatch is called by the session's reader loop.
func (r *router) dispatch(s *Session, cmd Command) error {
	r.mu.RLock()
	h, ok := r.handlers[cmd.Verb]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownCommand
	}
	return h(s, cmd.Arg)
}

// defaultRouter wires every protocol verb to its session handler.
func defaultRouter() *router {
	r := newRouter()
	r.handle(CmdRequestRoomList, (*Session).requestRoomList)
	r.handle(CmdCreateRoom, (*Session).createRoom)
	r.handle(CmdJoinRoom, (*Session).joinRoom)
	r.handle(CmdCloseRoom, (*Session).closeRoom)
	r.handle(CmdLeaveRoom, (*Session).leaveRoom)
	r.handle(cmdChat, (*Session).sendChat)
	return r
}
