// Package transport defines the message connection a channel runs over,
// along with adapters for the WebSocket libraries in common use.
package transport

import "errors"

// ErrClosed is returned when using a connection that has been closed
var ErrClosed = errors.New("transport is closed")

// Conn is a full-duplex message connection.
//
// WriteMessage must send data as a single message and may be called
// from multiple goroutines at once. ReadMessage is only ever called
// from one goroutine, and returns io.EOF once the connection has been
// closed normally.
type Conn interface {
	WriteMessage(data []byte, binary bool) error
	ReadMessage() ([]byte, error)
	Close() error
}
