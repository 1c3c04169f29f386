// Package relay republishes room chat between server instances over Redis
// pub/sub. Each instance keeps exactly one subscription per room that is
// live locally, and ignores messages it published itself.
package relay

import (
	"context"
	"encoding/json"
	"sync"

	"chatrelay/internal/chat"
	"chatrelay/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "chat:room:"

// Message is the pub/sub payload.
type Message struct {
	Origin string `json:"origin"`
	Room   string `json:"room"`
	Line   string `json:"line"`
}

// Channel is the Redis channel carrying a room's lines.
func Channel(room string) string { return channelPrefix + room }

// Deliverer hands a relayed line to the local room of the same name.
type Deliverer interface {
	Deliver(room, line string) bool
}

type RedisRelay struct {
	rdb    *redis.Client
	origin string
	local  Deliverer

	mu   sync.Mutex
	subs map[string]*subscription

	// listen runs one room's subscription until ctx is cancelled.
	listen func(ctx context.Context, room string)
}

// subscription is the Redis listener for one room name, tagged with the id
// of the local room currently holding that name.
type subscription struct {
	roomID uint64
	cancel context.CancelFunc
}

func New(rdb *redis.Client, origin string, local Deliverer) *RedisRelay {
	r := &RedisRelay{
		rdb:    rdb,
		origin: origin,
		local:  local,
		subs:   make(map[string]*subscription),
	}
	r.listen = r.listenRedis
	return r
}

// Publish implements chat.Publisher.
func (r *RedisRelay) Publish(ctx context.Context, room, line string) error {
	raw, err := json.Marshal(Message{Origin: r.origin, Room: room, Line: line})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, Channel(room), string(raw)).Err(); err != nil {
		return err
	}
	metrics.Relayed.WithLabelValues("out").Inc()
	return nil
}

// Observe follows the local registry: subscribe when a room appears, drop
// the subscription when it goes away. Pass it to Registry.OnChange.
func (r *RedisRelay) Observe(ev chat.RoomEvent) {
	switch ev.Kind {
	case chat.RoomCreated:
		r.Subscribe(ev.Name, ev.ID)
	case chat.RoomRemoved:
		r.Unsubscribe(ev.Name, ev.ID)
	}
}

// Subscribe makes sure room has a running subscription owned by roomID. An
// existing subscription for the name is kept and handed over to roomID.
func (r *RedisRelay) Subscribe(room string, roomID uint64) {
	r.mu.Lock()
	if sub, ok := r.subs[room]; ok {
		sub.roomID = roomID
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.subs[room] = &subscription{roomID: roomID, cancel: cancel}
	r.mu.Unlock()

	go r.listen(ctx, room)
}

// Unsubscribe stops room's subscription if roomID still owns it. A late
// removal of an older room with the same name leaves the newer one alone.
func (r *RedisRelay) Unsubscribe(room string, roomID uint64) {
	r.mu.Lock()
	sub, ok := r.subs[room]
	if !ok || sub.roomID != roomID {
		r.mu.Unlock()
		return
	}
	delete(r.subs, room)
	r.mu.Unlock()

	sub.cancel()
}

func (r *RedisRelay) Subscribed(room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[room]
	return ok
}

// Close stops every subscription.
func (r *RedisRelay) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*subscription)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
}

func (r *RedisRelay) listenRedis(ctx context.Context, room string) {
	ps := r.rdb.Subscribe(ctx, Channel(room))
	defer ps.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ps.Channel():
			if !ok { // Redis connection closed.
				return
			}
			r.handle(m.Payload)
		}
	}
}

// handle delivers one payload unless it originated here.
func (r *RedisRelay) handle(payload string) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		zap.L().Warn("relay.decode", zap.Error(err))
		return
	}
	if msg.Origin == r.origin || msg.Room == "" {
		return
	}
	if err := chat.CheckLine(msg.Line); err != nil {
		zap.L().Warn("relay.invalid_line", zap.String("room", msg.Room), zap.String("origin", msg.Origin))
		return
	}
	metrics.Relayed.WithLabelValues("in").Inc()
	r.local.Deliver(msg.Room, msg.Line)
}
