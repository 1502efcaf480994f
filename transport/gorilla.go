package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeTimeout is how long Close waits to send the close frame
const closeTimeout = time.Second

type gorillaConn struct {
	conn *websocket.Conn

	writeMtx sync.Mutex
}

// NewGorilla wraps a gorilla/websocket connection
func NewGorilla(conn *websocket.Conn) Conn {
	return &gorillaConn{conn: conn}
}

func (g *gorillaConn) WriteMessage(data []byte, binary bool) error {
	msgType := websocket.TextMessage
	if binary {
		msgType = websocket.BinaryMessage
	}

	// gorilla supports one concurrent writer
	g.writeMtx.Lock()
	defer g.writeMtx.Unlock()

	err := g.conn.WriteMessage(msgType, data)
	if errors.Is(err, websocket.ErrCloseSent) {
		return ErrClosed
	}
	return err
}

func (g *gorillaConn) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := g.conn.ReadMessage()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		} else if err != nil {
			return nil, err
		}

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		return data, nil
	}
}

func (g *gorillaConn) Close() error {
	// Let the peer know we're going away. This is best-effort, the
	// connection may be broken or a write may be stuck on a peer that
	// stopped reading. WriteControl may be called alongside other
	// writers, so it doesn't take writeMtx, and its deadline makes
	// sure the close below always happens.
	_ = g.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout),
	)
	return g.conn.Close()
}
