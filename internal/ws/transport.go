// Package ws carries the chat line protocol over WebSocket: one text frame
// per line in each direction. A frame holding several newline-separated
// lines is read as that many lines.
package ws

import (
	"strings"
	"sync"
	"time"

	"chatrelay/internal/chat"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second // must be < pongWait
	closeWait  = time.Second
)

type transport struct {
	raw       *websocket.Conn
	pending   []string
	quit      chan struct{}
	closeOnce sync.Once
}

var _ chat.Transport = (*transport)(nil)

// NewTransport wraps an upgraded connection. Frames larger than maxLine
// end the read side with websocket.ErrReadLimit.
func NewTransport(raw *websocket.Conn, maxLine int) chat.Transport {
	t := &transport{raw: raw, quit: make(chan struct{})}
	raw.SetReadLimit(int64(maxLine))
	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})
	go t.pinger()
	return t
}

func (t *transport) ReadLine() (string, error) {
	for len(t.pending) == 0 {
		mt, data, err := t.raw.ReadMessage()
		if err != nil {
			return "", err
		}
		if mt != websocket.TextMessage {
			continue
		}
		_ = t.raw.SetReadDeadline(time.Now().Add(pongWait))
		t.pending = strings.Split(strings.TrimRight(string(data), "\r\n"), "\n")
	}
	line := strings.TrimSuffix(t.pending[0], "\r")
	t.pending = t.pending[1:]
	return line, nil
}

// WriteLine must only be called from one goroutine at a time.
func (t *transport) WriteLine(line string, timeout time.Duration) error {
	line = strings.TrimRight(line, "\r\n")
	if err := chat.CheckLine(line); err != nil {
		return err
	}
	_ = t.raw.SetWriteDeadline(time.Now().Add(timeout))
	return t.raw.WriteMessage(websocket.TextMessage, []byte(line))
}

func (t *transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.quit)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.raw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		err = t.raw.Close()
	})
	return err
}

func (t *transport) RemoteAddr() string { return t.raw.RemoteAddr().String() }

func (t *transport) pinger() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.quit:
			return
		case <-ticker.C:
			if err := t.raw.WriteControl(websocket.PingMessage, nil, time.Now().Add(closeWait)); err != nil {
				_ = t.Close()
				return
			}
		}
	}
}
