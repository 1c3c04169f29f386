package chat

import (
	"slices"
	"strings"
	"sync"

	"chatrelay/internal/metrics"

	"go.uber.org/zap"
)

type RoomEventKind int

const (
	RoomCreated RoomEventKind = iota
	RoomRemoved
)

func (k RoomEventKind) String() string {
	if k == RoomCreated {
		return "created"
	}
	return "removed"
}

// RoomEvent is delivered to registry observers after the registry lock is
// released. ID tells apart successive rooms that reuse a name.
type RoomEvent struct {
	Kind RoomEventKind
	Name string
	ID   uint64
}

// Registry maps room names to live rooms.
type Registry struct {
	// notifyMu is held from a map change until its observers return, so
	// observers see events in the order the map changed.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	rooms     map[string]*Room
	seq       uint64
	observers []func(RoomEvent)
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// OnChange registers fn for every create and remove. Register observers
// before serving traffic. fn runs one event at a time, in order; it must not
// block or lock a Room.
func (g *Registry) OnChange(fn func(RoomEvent)) {
	g.mu.Lock()
	g.observers = append(g.observers, fn)
	g.mu.Unlock()
}

// CreateIfAbsent registers a new room owned by owner. Among concurrent calls
// for the same name exactly one succeeds; the rest get ErrRoomExists.
func (g *Registry) CreateIfAbsent(name string, owner *Conn) (*Room, error) {
	if name == "" {
		return nil, ErrEmptyRoomName
	}
	g.notifyMu.Lock()
	defer g.notifyMu.Unlock()

	g.mu.Lock()
	if _, ok := g.rooms[name]; ok {
		g.mu.Unlock()
		return nil, ErrRoomExists
	}
	g.seq++
	r := newRoom(g.seq, name, owner, g)
	g.rooms[name] = r
	observers := g.observers
	g.mu.Unlock()

	metrics.RoomsActive.Inc()
	zap.L().Info("room.created", zap.String("room", name), zap.String("owner", owner.Name()))
	notify(observers, RoomEvent{Kind: RoomCreated, Name: name, ID: r.id})
	return r, nil
}

func (g *Registry) Get(name string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[name]
	return r, ok
}

// Remove closes and deregisters the named room. Removing an absent name is a no-op.
func (g *Registry) Remove(name string) {
	if r, ok := g.Get(name); ok {
		r.Close()
	}
}

// Snapshot returns the registered room names at one point in time, sorted.
func (g *Registry) Snapshot() []string {
	g.mu.RLock()
	names := make([]string, 0, len(g.rooms))
	for name := range g.rooms {
		names = append(names, name)
	}
	g.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Rooms returns the live rooms, sorted by name.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()
	slices.SortFunc(rooms, func(a, b *Room) int { return strings.Compare(a.name, b.name) })
	return rooms
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// release deregisters r only if the name still maps to r, so a retired room
// never removes a newer room that reused its name.
func (g *Registry) release(r *Room) {
	g.notifyMu.Lock()
	defer g.notifyMu.Unlock()

	g.mu.Lock()
	if cur, ok := g.rooms[r.name]; !ok || cur != r {
		g.mu.Unlock()
		return
	}
	delete(g.rooms, r.name)
	observers := g.observers
	g.mu.Unlock()

	metrics.RoomsActive.Dec()
	notify(observers, RoomEvent{Kind: RoomRemoved, Name: r.name, ID: r.id})
}

func notify(observers []func(RoomEvent), ev RoomEvent) {
	for _, fn := range observers {
		fn(ev)
	}
}

// Deliver broadcasts line into the named room if it exists here.
func (g *Registry) Deliver(name, line string) bool {
	r, ok := g.Get(name)
	if !ok {
		return false
	}
	r.Broadcast(line)
	return true
}
