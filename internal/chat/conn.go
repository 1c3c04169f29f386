package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultWriteTimeout  = 5 * time.Second
	defaultSendQueueSize = 256
)

// Conn is one connected client. All writes go through a single writer
// goroutine, so lines from concurrent broadcasts never interleave.
type Conn struct {
	id           string
	name         string // set once by the session before it joins any room
	t            Transport
	writeTimeout time.Duration

	out  chan string
	quit chan struct{}
	done chan struct{}

	closed    atomic.Bool
	quitOnce  sync.Once
	closeOnce sync.Once
}

// NewConn wraps t and starts its writer. writeTimeout bounds every socket
// write; queueSize bounds how far a slow reader may fall behind before it is
// dropped.
func NewConn(t Transport, writeTimeout time.Duration, queueSize int) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if queueSize <= 0 {
		queueSize = defaultSendQueueSize
	}
	c := &Conn{
		id:           uuid.NewString(),
		t:            t,
		writeTimeout: writeTimeout,
		out:          make(chan string, queueSize),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Conn) ID() string { return c.id }

// Name is the display name announced in the handshake.
func (c *Conn) Name() string { return c.name }

func (c *Conn) RemoteAddr() string { return c.t.RemoteAddr() }

// Send queues one line without blocking. A full queue closes the connection;
// a line with an embedded line break is refused and the connection kept.
func (c *Conn) Send(line string) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if err := CheckLine(line); err != nil {
		return err
	}
	select {
	case c.out <- line:
		return nil
	default:
		zap.L().Warn("conn.slow_consumer", zap.String("conn", c.id))
		c.Close()
		return ErrSlowConsumer
	}
}

// Close stops accepting lines, lets the writer flush what is already queued,
// then closes the transport. Safe to call any number of times.
func (c *Conn) Close() {
	c.closed.Store(true)
	c.quitOnce.Do(func() { close(c.quit) })
}

// Done is closed once the transport has been closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Closed() bool { return c.closed.Load() }

func (c *Conn) writeLoop() {
	defer c.shutdown()
	for {
		select {
		case line := <-c.out:
			if err := c.t.WriteLine(line, c.writeTimeout); err != nil {
				zap.L().Debug("conn.write", zap.String("conn", c.id), zap.Error(err))
				return
			}
		case <-c.quit:
			c.drain()
			return
		}
	}
}

func (c *Conn) drain() {
	for {
		select {
		case line := <-c.out:
			if err := c.t.WriteLine(line, c.writeTimeout); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if err := c.t.Close(); err != nil {
			zap.L().Debug("conn.close", zap.String("conn", c.id), zap.Error(err))
		}
		close(c.done)
	})
}
