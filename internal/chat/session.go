package chat

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"chatrelay/internal/metrics"

	"go.uber.org/zap"
)

const relayPublishTimeout = 2 * time.Second

// Session drives one connection through the protocol. Only the session's own
// goroutine touches room; everything it shares goes through Room and Registry.
type Session struct {
	ctx  context.Context
	srv  *Server
	t    Transport
	conn *Conn
	room *Room
}

// Room returns the room the session currently believes it is in.
func (s *Session) Room() *Room { return s.room }

func (s *Session) run() {
	defer s.teardown()

	name, err := s.t.ReadLine()
	name = strings.TrimSpace(name)
	if err == nil && name != "" {
		err = CheckLine(name)
	}
	if err != nil || name == "" {
		zap.L().Debug("session.handshake_failed", zap.String("conn", s.conn.ID()), zap.Error(err))
		return
	}
	s.conn.name = name
	_ = s.conn.Send(welcomeLine(name))
	zap.L().Info("session.welcome", zap.String("conn", s.conn.ID()), zap.String("name", name),
		zap.String("addr", s.conn.RemoteAddr()))

	for {
		line, err := s.t.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				zap.L().Debug("session.read", zap.String("conn", s.conn.ID()), zap.Error(err))
			}
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.handle(line)
	}
}

func (s *Session) handle(line string) {
	cmd := ParseCommand(line)
	s.syncRoom()

	err := CheckLine(line)
	if err == nil {
		err = s.srv.router.dispatch(s, cmd)
	}
	metrics.Commands.WithLabelValues(cmd.Verb, errorKind(err)).Inc()
	if err != nil {
		_ = s.conn.Send(replyFor(err))
	}
}

// syncRoom forgets a room that evicted this connection or dissolved.
func (s *Session) syncRoom() {
	if s.room != nil && !s.room.Has(s.conn) {
		s.room = nil
	}
}

func (s *Session) leaveCurrent() {
	if s.room != nil {
		s.room.Leave(s.conn)
		s.room = nil
	}
}

func (s *Session) teardown() {
	s.leaveCurrent()
	s.srv.clients.Remove(s.conn)
	s.conn.Close()
	zap.L().Info("session.closed", zap.String("conn", s.conn.ID()), zap.String("name", s.conn.Name()))
}

func (s *Session) requestRoomList(string) error {
	_ = s.conn.Send(roomListLine(s.srv.registry.Snapshot()))
	return nil
}

func (s *Session) createRoom(name string) error {
	if name == "" {
		return ErrEmptyRoomName
	}
	s.leaveCurrent()

	r, err := s.srv.registry.CreateIfAbsent(name, s.conn)
	if err != nil {
		return err
	}
	s.room = r
	_ = s.conn.Send(noticeLine("Room %s has been created and you are the owner.", name))
	return nil
}

func (s *Session) joinRoom(name string) error {
	if name == "" {
		return ErrEmptyRoomName
	}
	if s.room != nil && s.room.IsOwner(s.conn) {
		return ErrOwnerMustClose
	}
	r, ok := s.srv.registry.Get(name)
	if !ok {
		return ErrRoomNotFound
	}
	if s.room != r {
		s.leaveCurrent()
		if err := r.Join(s.conn); err != nil {
			return err
		}
		s.room = r
	}
	_ = s.conn.Send(noticeLine("You joined room %s.", name))
	return nil
}

// closeRoom closes the named room, or the current one when no name is given.
func (s *Session) closeRoom(name string) error {
	if name == "" && s.room != nil {
		name = s.room.Name()
	}
	if name == "" {
		return ErrEmptyRoomName
	}
	r, ok := s.srv.registry.Get(name)
	if !ok {
		return ErrRoomNotFound
	}
	if !r.IsOwner(s.conn) {
		return ErrNotOwner
	}
	r.closeByOwner()
	if s.room == r {
		s.room = nil
	}
	return nil
}

func (s *Session) leaveRoom(name string) error {
	if s.room == nil || (name != "" && name != s.room.Name()) {
		return ErrNotInRoom
	}
	left := s.room.Name()
	s.leaveCurrent()
	_ = s.conn.Send(noticeLine("You left room %s.", left))
	return nil
}

func (s *Session) sendChat(text string) error {
	if s.room == nil {
		return ErrNoRoom
	}
	line := chatLine(s.conn.Name(), text)
	s.room.Broadcast(line)

	if s.srv.relay != nil {
		ctx, cancel := context.WithTimeout(s.ctx, relayPublishTimeout)
		defer cancel()
		if err := s.srv.relay.Publish(ctx, s.room.Name(), line); err != nil {
			zap.L().Warn("relay.publish", zap.String("room", s.room.Name()), zap.Error(err))
		}
	}
	return nil
}
