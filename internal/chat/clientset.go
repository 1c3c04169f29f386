package chat

import (
	"sync"

	"chatrelay/internal/metrics"
)

// ClientSet holds every connected client, independent of rooms. It is used
// to push room-list changes and to disconnect everyone on shutdown.
type ClientSet struct {
	mu      sync.RWMutex
	clients map[*Conn]struct{}
}

func NewClientSet() *ClientSet {
	return &ClientSet{clients: make(map[*Conn]struct{})}
}

func (s *ClientSet) Add(c *Conn) {
	s.mu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.clients[c] = struct{}{}
		metrics.ConnectionsActive.Inc()
	}
	s.mu.Unlock()
}

func (s *ClientSet) Remove(c *Conn) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		metrics.ConnectionsActive.Dec()
	}
	s.mu.Unlock()
}

func (s *ClientSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast queues line on every client. Failed sends are left to the
// owning session, which sees its transport close and removes itself.
func (s *ClientSet) Broadcast(line string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		_ = c.Send(line)
	}
}

// CloseAll disconnects every client.
func (s *ClientSet) CloseAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		c.Close()
	}
}
