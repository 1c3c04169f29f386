package chat

import (
	"bufio"
	"fmt"
	"net"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnSendPreservesOrder(t *testing.T) {
	c, ft := newTestConn(t, "alice")

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Send(fmt.Sprintf("line %d", i)))
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("line %d", i), nextLine(t, ft))
	}
}

func TestConnConcurrentSendsNeverInterleave(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	c := NewConn(NewStreamTransport(server, 4096), time.Second, 1024)
	defer c.Close()

	const senders, perSender = 8, 50
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_ = c.Send(fmt.Sprintf("sender-%d message-%d with some padding to make it longer", s, i))
			}
		}(s)
	}

	pattern := regexp.MustCompile(`^sender-\d+ message-\d+ with some padding to make it longer$`)
	sc := bufio.NewScanner(client)
	got := 0
	_ = client.SetReadDeadline(time.Now().Add(waitTimeout))
	for got < senders*perSender && sc.Scan() {
		require.Regexp(t, pattern, sc.Text())
		got++
	}
	wg.Wait()
	assert.Equal(t, senders*perSender, got)
}

func TestConnCloseIsIdempotent(t *testing.T) {
	c, ft := newTestConn(t, "alice")

	c.Close()
	c.Close()
	waitDone(t, c)
	c.Close()

	assert.True(t, c.Closed())
	assert.True(t, ft.isClosed())
	assert.ErrorIs(t, c.Send("late"), ErrConnClosed)
}

func TestConnCloseFlushesQueuedLines(t *testing.T) {
	c, ft := newTestConn(t, "alice")

	require.NoError(t, c.Send("one"))
	require.NoError(t, c.Send("two"))
	require.NoError(t, c.Send("three"))
	c.Close()

	expectLines(t, ft, "one", "two", "three")
	waitDone(t, c)
}

func TestConnWriteErrorClosesConnection(t *testing.T) {
	c, ft := newTestConn(t, "alice")
	ft.failWrites.Store(true)

	require.NoError(t, c.Send("doomed"))
	waitDone(t, c)

	assert.True(t, ft.isClosed())
	assert.ErrorIs(t, c.Send("after"), ErrConnClosed)
}

func TestConnSlowConsumerIsDropped(t *testing.T) {
	ft := newFakeTransport()
	ft.stallWrites.Store(true)
	c := NewConn(ft, 50*time.Millisecond, 1)
	defer c.Close()

	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = c.Send("flood")
	}
	require.ErrorIs(t, err, ErrSlowConsumer)
	assert.True(t, c.Closed())
	waitDone(t, c)
}

func TestStreamTransportFraming(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	tr := NewStreamTransport(server, 64)
	defer tr.Close()

	go func() {
		_, _ = client.Write([]byte("alice\r\nhello world\n"))
		_, _ = client.Write([]byte(fmt.Sprintf("%0100d\n", 0)))
	}()

	line, err := tr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "alice", line)

	line, err = tr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "hello world", line)

	_, err = tr.ReadLine()
	assert.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestStreamTransportWriteAppendsNewline(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	tr := NewStreamTransport(server, 64)
	defer tr.Close()

	go func() { _ = tr.WriteLine("NOTICE: hi\n", time.Second) }()

	_ = client.SetReadDeadline(time.Now().Add(waitTimeout))
	got, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "NOTICE: hi\n", got)
}

func TestConnRefusesEmbeddedLineBreak(t *testing.T) {
	c, tr := newTestConn(t, "alice")

	assert.ErrorIs(t, c.Send("eve: hi\nERROR: forged"), ErrInvalidLine)
	assert.ErrorIs(t, c.Send("eve: hi\rNOTICE: forged"), ErrInvalidLine)
	assert.False(t, c.Closed())

	require.NoError(t, c.Send("still open"))
	expectLines(t, tr, "still open")
}

func TestStreamTransportRefusesInteriorNewline(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	tr := NewStreamTransport(server, 64)
	defer tr.Close()

	assert.ErrorIs(t, tr.WriteLine("hi\nERROR: forged", time.Second), ErrInvalidLine)
}
