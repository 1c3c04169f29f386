package chat

import (
	"errors"
	"slices"
	"sync"

	"chatrelay/internal/metrics"

	"go.uber.org/zap"
)

// Room is a named broadcast group. One mutex guards membership for the whole
// of every add, remove and fan-out, so each broadcast sees one consistent
// member set and members receive lines in the order they were broadcast.
type Room struct {
	id       uint64
	name     string
	owner    *Conn
	registry *Registry

	mu      sync.Mutex
	members map[*Conn]struct{}
	closed  bool
}

func newRoom(id uint64, name string, owner *Conn, registry *Registry) *Room {
	return &Room{
		id:       id,
		name:     name,
		owner:    owner,
		registry: registry,
		members:  map[*Conn]struct{}{owner: {}},
	}
}

func (r *Room) Name() string { return r.name }

// ID is unique per registry, even across rooms that reuse a name.
func (r *Room) ID() uint64 { return r.id }

func (r *Room) Owner() *Conn { return r.owner }

func (r *Room) IsOwner(c *Conn) bool { return c != nil && c == r.owner }

// Has reports whether c is currently a member.
func (r *Room) Has(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[c]
	return ok
}

func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns the members' display names, sorted.
func (r *Room) Members() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.members))
	for c := range r.members {
		names = append(names, c.Name())
	}
	r.mu.Unlock()
	slices.Sort(names)
	return names
}

// Join adds c and announces it to everyone, c included. Joining twice is a no-op.
func (r *Room) Join(c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if _, ok := r.members[c]; ok {
		return nil
	}
	r.members[c] = struct{}{}
	r.fanoutLocked(joinedNotice(c.Name()))
	r.settleLocked()
	return nil
}

// Leave removes c. The remaining members are told, an empty room deregisters
// itself, and an owner leaving dissolves the room. c's socket stays open.
func (r *Room) Leave(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[c]; !ok {
		return false
	}
	delete(r.members, c)
	if !r.IsOwner(c) {
		r.fanoutLocked(leftNotice(c.Name()))
	}
	r.settleLocked()
	return true
}

// Broadcast sends line to every member. Members whose send fails are dropped
// and disconnected; the caller never sees those failures.
func (r *Room) Broadcast(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if err := CheckLine(line); err != nil {
		zap.L().Warn("room.invalid_line", zap.String("room", r.name), zap.Error(err))
		return
	}
	metrics.Broadcasts.Inc()
	r.fanoutLocked(line)
	r.settleLocked()
}

// Close announces the closing, deregisters the room and disconnects every member.
func (r *Room) Close() { r.close(false) }

// closeByOwner is Close with a final "Room closed." to the owner before the
// disconnect.
func (r *Room) closeByOwner() { r.close(true) }

func (r *Room) close(confirm bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.fanoutLocked(closingNotice)
	if _, ok := r.members[r.owner]; confirm && ok {
		_ = r.owner.Send(closedReply)
	}
	members := make([]*Conn, 0, len(r.members))
	for c := range r.members {
		members = append(members, c)
	}
	clear(r.members)
	r.retireLocked()
	r.mu.Unlock()

	for _, c := range members {
		c.Close()
	}
	zap.L().Info("room.closed", zap.String("room", r.name), zap.Int("disconnected", len(members)))
}

// fanoutLocked delivers line, evicting members whose send fails and telling
// the rest they left. Evictions can cascade, hence the queue.
func (r *Room) fanoutLocked(line string) {
	queue := []string{line}
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		for c := range r.members {
			if err := c.Send(msg); err != nil {
				if errors.Is(err, ErrInvalidLine) {
					break
				}
				delete(r.members, c)
				c.Close()
				metrics.Evictions.Inc()
				zap.L().Info("room.evict",
					zap.String("room", r.name), zap.String("name", c.Name()), zap.Error(err))
				if !r.IsOwner(c) {
					queue = append(queue, leftNotice(c.Name()))
				}
			}
		}
	}
}

// settleLocked enforces the room invariants after membership shrank: an empty
// room is deregistered, a room without its owner is dissolved.
func (r *Room) settleLocked() {
	if r.closed {
		return
	}
	if len(r.members) == 0 {
		r.retireLocked()
		zap.L().Info("room.empty", zap.String("room", r.name))
		return
	}
	if _, ok := r.members[r.owner]; !ok {
		r.fanoutLocked(closingNotice)
		clear(r.members)
		r.retireLocked()
		zap.L().Info("room.dissolved", zap.String("room", r.name))
	}
}

func (r *Room) retireLocked() {
	r.closed = true
	if r.registry != nil {
		r.registry.release(r)
	}
}
