package chat

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// fakeTransport is an in-memory Transport. Lines fed to in are read by the
// session; lines written by the connection land on written.
type fakeTransport struct {
	in      chan string
	written chan string
	closed  chan struct{}
	once    sync.Once

	failWrites  atomic.Bool
	stallWrites atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:      make(chan string, 64),
		written: make(chan string, 1024),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) ReadLine() (string, error) {
	select {
	case l := <-f.in:
		return l, nil
	case <-f.closed:
		return "", io.EOF
	}
}

func (f *fakeTransport) WriteLine(line string, timeout time.Duration) error {
	if f.failWrites.Load() {
		return errors.New("broken pipe")
	}
	if f.stallWrites.Load() {
		select {
		case <-time.After(timeout):
			return errors.New("i/o timeout")
		case <-f.closed:
			return net.ErrClosed
		}
	}
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}
	f.written <- line
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return "fake" }

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// newTestConn returns a named connection over a fake transport.
func newTestConn(t *testing.T, name string) (*Conn, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	c := NewConn(ft, 100*time.Millisecond, 64)
	c.name = name
	t.Cleanup(c.Close)
	return c, ft
}

func nextLine(t *testing.T, ft *fakeTransport) string {
	t.Helper()
	select {
	case l := <-ft.written:
		return l
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a line")
		return ""
	}
}

func expectLines(t *testing.T, ft *fakeTransport, want ...string) {
	t.Helper()
	for _, w := range want {
		require.Equal(t, w, nextLine(t, ft))
	}
}

func expectNoLine(t *testing.T, ft *fakeTransport) {
	t.Helper()
	select {
	case l := <-ft.written:
		t.Fatalf("unexpected line %q", l)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitDone(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(waitTimeout):
		t.Fatal("connection was not closed")
	}
}
