package chat

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryConcurrentCreateExactlyOneWins(t *testing.T) {
	g := NewRegistry()

	const contenders = 64
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		clashes atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < contenders; i++ {
		c, _ := newTestConn(t, fmt.Sprintf("client-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := g.CreateIfAbsent("race", c)
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, ErrRoomExists):
				clashes.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(contenders-1), clashes.Load())
	assert.Equal(t, []string{"race"}, g.Snapshot())
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	g := NewRegistry()
	alice, _ := newTestConn(t, "alice")

	_, err := g.CreateIfAbsent("", alice)
	assert.ErrorIs(t, err, ErrEmptyRoomName)
	assert.Equal(t, 0, g.Len())
}

func TestRegistrySnapshotIsSorted(t *testing.T) {
	g := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		c, _ := newTestConn(t, "owner-"+name)
		_, err := g.CreateIfAbsent(name, c)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, g.Snapshot())
	rooms := g.Rooms()
	require.Len(t, rooms, 3)
	assert.Equal(t, "alpha", rooms[0].Name())
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	g := NewRegistry()
	alice, _ := newTestConn(t, "alice")
	_, err := g.CreateIfAbsent("lobby", alice)
	require.NoError(t, err)

	g.Remove("lobby")
	g.Remove("lobby")
	g.Remove("never-existed")

	assert.Empty(t, g.Snapshot())
	waitDone(t, alice)
}

func TestRegistryStaleRoomCannotRemoveSuccessor(t *testing.T) {
	g := NewRegistry()
	alice, _ := newTestConn(t, "alice")
	bob, _ := newTestConn(t, "bob")

	old, err := g.CreateIfAbsent("lobby", alice)
	require.NoError(t, err)
	old.Leave(alice)

	fresh, err := g.CreateIfAbsent("lobby", bob)
	require.NoError(t, err)

	g.release(old)
	old.Close()

	got, ok := g.Get("lobby")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestRegistryNotifiesObservers(t *testing.T) {
	g := NewRegistry()
	var (
		mu     sync.Mutex
		events []RoomEvent
	)
	g.OnChange(func(ev RoomEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	alice, _ := newTestConn(t, "alice")
	r, err := g.CreateIfAbsent("lobby", alice)
	require.NoError(t, err)
	_, err = g.CreateIfAbsent("lobby", alice)
	require.ErrorIs(t, err, ErrRoomExists)
	r.Leave(alice)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []RoomEvent{
		{Kind: RoomCreated, Name: "lobby", ID: r.ID()},
		{Kind: RoomRemoved, Name: "lobby", ID: r.ID()},
	}, events)
	assert.Equal(t, "created", RoomCreated.String())
	assert.Equal(t, "removed", RoomRemoved.String())
}

func TestRegistryObserversSeeChangesInOrder(t *testing.T) {
	g := NewRegistry()
	var (
		mu    sync.Mutex
		sizes []int
	)
	g.OnChange(func(RoomEvent) {
		n := len(g.Snapshot())
		mu.Lock()
		sizes = append(sizes, n)
		mu.Unlock()
	})

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		c, _ := newTestConn(t, fmt.Sprintf("owner-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.CreateIfAbsent(fmt.Sprintf("room-%d", i), c)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sizes, n)
	for i, size := range sizes {
		assert.Equal(t, i+1, size)
	}
}

func TestRegistryReusedNameGetsNewID(t *testing.T) {
	g := NewRegistry()
	alice, _ := newTestConn(t, "alice")

	old, err := g.CreateIfAbsent("lobby", alice)
	require.NoError(t, err)
	old.Leave(alice)

	fresh, err := g.CreateIfAbsent("lobby", alice)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID(), fresh.ID())
}
