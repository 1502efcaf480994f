package transport

import (
	"sync"

	"golang.org/x/net/websocket"
)

type xnetConn struct {
	conn *websocket.Conn

	writeMtx sync.Mutex
}

// NewXNet wraps a golang.org/x/net/websocket connection
func NewXNet(conn *websocket.Conn) Conn {
	return &xnetConn{conn: conn}
}

func (x *xnetConn) WriteMessage(data []byte, binary bool) error {
	x.writeMtx.Lock()
	defer x.writeMtx.Unlock()

	// Message sends strings as text frames and byte slices as binary frames
	if binary {
		return websocket.Message.Send(x.conn, data)
	}
	return websocket.Message.Send(x.conn, string(data))
}

func (x *xnetConn) ReadMessage() ([]byte, error) {
	var data []byte
	// Receive returns io.EOF when the peer closes the connection
	err := websocket.Message.Receive(x.conn, &data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (x *xnetConn) Close() error {
	return x.conn.Close()
}
