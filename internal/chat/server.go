package chat

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Publisher forwards a room's chat line to other relay instances.
type Publisher interface {
	Publish(ctx context.Context, room, line string) error
}

type Options struct {
	WriteTimeout  time.Duration
	SendQueueSize int
	MaxLineBytes  int
}

const defaultMaxLineBytes = 4096

// Server accepts connections and runs one Session per client.
type Server struct {
	registry *Registry
	clients  *ClientSet
	router   *router
	relay    Publisher
	opts     Options

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	stopping  bool
	wg        sync.WaitGroup
}

// NewServer wires a server to registry and clients. Every registry change is
// pushed to all clients as a ROOM_LIST line.
func NewServer(registry *Registry, clients *ClientSet, opts Options) *Server {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = defaultMaxLineBytes
	}
	s := &Server{
		registry:  registry,
		clients:   clients,
		router:    defaultRouter(),
		opts:      opts,
		listeners: make(map[net.Listener]struct{}),
	}
	registry.OnChange(func(RoomEvent) {
		clients.Broadcast(roomListLine(registry.Snapshot()))
	})
	return s
}

// SetRelay makes sessions publish their chat lines through p. Call before serving.
func (s *Server) SetRelay(p Publisher) { s.relay = p }

func (s *Server) Registry() *Registry { return s.registry }

func (s *Server) Clients() *ClientSet { return s.clients }

// Serve accepts on ln until ctx is cancelled or Shutdown is called. It
// returns nil on a clean stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.listeners[ln] = struct{}{}
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer func() {
		s.mu.Lock()
		delete(s.listeners, ln)
		s.mu.Unlock()
	}()

	zap.L().Info("chat.listening", zap.String("addr", ln.Addr().String()))

	var backoff time.Duration
	for {
		raw, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil || s.isStopping() {
				return nil
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(backoff*2, time.Second)
			}
			zap.L().Warn("chat.accept", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		t := NewStreamTransport(raw, s.opts.MaxLineBytes)
		go s.ServeTransport(ctx, t)
	}
}

// ServeTransport runs a session on t and blocks until it ends.
func (s *Server) ServeTransport(ctx context.Context, t Transport) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		_ = t.Close()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn := NewConn(t, s.opts.WriteTimeout, s.opts.SendQueueSize)
	s.clients.Add(conn)
	if s.isStopping() {
		// Shutdown's CloseAll may have run before the Add.
		conn.Close()
	}
	zap.L().Debug("chat.accept", zap.String("conn", conn.ID()), zap.String("addr", t.RemoteAddr()))

	sess := &Session{ctx: ctx, srv: s, t: t, conn: conn}
	sess.run()
}

// Shutdown stops accepting, tells every client, disconnects them and waits
// for their sessions to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	for ln := range s.listeners {
		_ = ln.Close()
	}
	s.mu.Unlock()

	s.clients.Broadcast(shutdownNotice)
	s.clients.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("chat.shutdown_complete")
		return nil
	case <-ctx.Done():
		zap.L().Warn("chat.shutdown_timeout", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (s *Server) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}
