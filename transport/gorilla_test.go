package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// stalledServer accepts WebSocket connections and never reads from them
func stalledServer(t *testing.T) *httptest.Server {
	t.Helper()

	release := make(chan struct{})
	upgrader := websocket.Upgrader{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		ts.Close()
	})

	return ts
}

func TestGorillaCloseDuringStalledWrite(t *testing.T) {
	ts := stalledServer(t)

	wsConn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	resp.Body.Close()
	conn := NewGorilla(wsConn)

	// Write until the socket buffers are full and a write blocks
	progress := make(chan struct{}, 1)
	writeErr := make(chan error, 1)
	go func() {
		frame := make([]byte, 1<<20)
		for {
			if err := conn.WriteMessage(frame, true); err != nil {
				writeErr <- err
				return
			}
			select {
			case progress <- struct{}{}:
			default:
			}
		}
	}()

	stalled := false
	for !stalled {
		select {
		case <-progress:
		case err := <-writeErr:
			t.Fatalf("write failed before stalling: %v", err)
		case <-time.After(300 * time.Millisecond):
			stalled = true
		}
	}

	closed := make(chan struct{})
	go func() {
		conn.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(3 * closeTimeout):
		t.Fatal("Close blocked behind a stalled write")
	}

	// Closing must also unblock the stuck write
	select {
	case err := <-writeErr:
		require.Error(t, err)
	case <-time.After(3 * closeTimeout):
		t.Fatal("stalled write was not unblocked by Close")
	}
}
