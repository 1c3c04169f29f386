package chat

import (
	"bufio"
	"io"
	"net"
	"strings"
	"time"
)

// Transport is one client's line stream. ReadLine is called only by the
// owning session; WriteLine only by the connection's writer goroutine.
type Transport interface {
	ReadLine() (string, error)
	WriteLine(line string, timeout time.Duration) error
	Close() error
	RemoteAddr() string
}

// streamTransport frames a net.Conn as newline-delimited text.
type streamTransport struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// NewStreamTransport wraps a TCP connection. Lines longer than maxLine bytes
// fail the read with bufio.ErrTooLong.
func NewStreamTransport(conn net.Conn, maxLine int) Transport {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, min(maxLine, 4096)), maxLine)
	// ScanLines already strips a trailing \r.
	sc.Split(bufio.ScanLines)
	return &streamTransport{conn: conn, scanner: sc}
}

func (t *streamTransport) ReadLine() (string, error) {
	if t.scanner.Scan() {
		return t.scanner.Text(), nil
	}
	if err := t.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (t *streamTransport) WriteLine(line string, timeout time.Duration) error {
	line = strings.TrimRight(line, "\r\n")
	if err := CheckLine(line); err != nil {
		return err
	}
	if timeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	_, err := io.WriteString(t.conn, line+"\n")
	return err
}

func (t *streamTransport) Close() error { return t.conn.Close() }

func (t *streamTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }
