package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// link wraps one side's websocket connection. Writes are serialized by a
// mutex (gorilla allows one concurrent writer) and bounded by a deadline so
// a stalled peer fails the send instead of wedging the forwarding loop.
type link struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newLink(conn *websocket.Conn) *link {
	return &link{conn: conn}
}

func (l *link) Send(payload []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	_ = l.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := l.conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		l.closed.Store(true)
	}
	return err
}

func (l *link) Open() bool {
	return !l.closed.Load()
}

func (l *link) Close() error {
	if l.closed.Swap(true) {
		return nil
	}

	l.writeMu.Lock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = l.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"))
	l.writeMu.Unlock()

	return l.conn.Close()
}
