package transport

import (
	"io"
	"sync"
)

// pipeBuffer is the amount of messages each direction
// of a pipe can hold before writes block
const pipeBuffer = 64

type pipe struct {
	once   sync.Once
	closed chan struct{}
}

func (p *pipe) close() {
	p.once.Do(func() { close(p.closed) })
}

type pipeConn struct {
	p   *pipe
	in  <-chan []byte
	out chan<- []byte
}

// Pipe creates a buffered, in-memory, full duplex
// message connection. Closing either end closes both.
func Pipe() (Conn, Conn) {
	p := &pipe{closed: make(chan struct{})}
	a := make(chan []byte, pipeBuffer)
	b := make(chan []byte, pipeBuffer)
	return &pipeConn{p: p, in: a, out: b}, &pipeConn{p: p, in: b, out: a}
}

func (pc *pipeConn) WriteMessage(data []byte, _ bool) error {
	// Check for closure first, so that a closed pipe never
	// accepts a message even if the buffer has room
	select {
	case <-pc.p.closed:
		return ErrClosed
	default:
	}

	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case <-pc.p.closed:
		return ErrClosed
	case pc.out <- msg:
		return nil
	}
}

func (pc *pipeConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-pc.in:
		return msg, nil
	case <-pc.p.closed:
		return nil, io.EOF
	}
}

func (pc *pipeConn) Close() error {
	pc.p.close()
	return nil
}
