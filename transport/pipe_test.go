package transport

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	buf := []byte("hello")
	require.NoError(t, a.WriteMessage(buf, false))
	// The pipe must not share the caller's buffer
	buf[0] = 'j'

	msg, err := b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg))

	require.NoError(t, b.WriteMessage([]byte("world"), true))
	msg, err = a.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "world", string(msg))
}

func TestPipeClose(t *testing.T) {
	a, b := Pipe()
	require.NoError(t, a.Close())
	// Closing twice is a no-op
	require.NoError(t, b.Close())

	_, err := b.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)

	assert.ErrorIs(t, a.WriteMessage([]byte("x"), false), ErrClosed)
	assert.ErrorIs(t, b.WriteMessage([]byte("x"), false), ErrClosed)
}

func TestPipeCloseUnblocksRead(t *testing.T) {
	a, b := Pipe()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.ReadMessage()
		errCh <- err
	}()

	a.Close()
	assert.ErrorIs(t, <-errCh, io.EOF)
}
