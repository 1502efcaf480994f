package channel

import (
	"context"
	"sync"

	"go.arsenm.dev/wscall/internal/reflectutil"
)

// Call represents an outbound call. It completes exactly once,
// either with the peer's result or with an error.
type Call struct {
	id   uint64
	path string

	mtx       sync.Mutex
	completed bool
	done      chan struct{}
	result    any
	err       error
}

func newCall(id uint64, path string) *Call {
	return &Call{
		id:   id,
		path: path,
		done: make(chan struct{}),
	}
}

// complete sets the outcome of the call. It returns
// ErrAlreadyCompleted if the outcome was already set.
func (c *Call) complete(result any, err error) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.completed {
		return ErrAlreadyCompleted
	}
	c.completed = true
	c.result, c.err = result, err
	close(c.done)
	return nil
}

// ID returns the call ID sent on the wire
func (c *Call) ID() uint64 {
	return c.id
}

// Path returns the path that was called
func (c *Call) Path() string {
	return c.path
}

// Done returns a channel that is closed once the call completes
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result waits for the call to complete and returns its outcome.
// If the peer failed the call, the error is a *RemoteError.
func (c *Call) Result() (any, error) {
	<-c.done
	return c.result, c.err
}

// Wait is like Result, but stops waiting when ctx is done.
// This does not cancel the call, it will still complete later.
func (c *Call) Wait(ctx context.Context) (any, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Decode waits for the call to complete and stores
// its result in the value pointed to by ret
func (c *Call) Decode(ret any) error {
	res, err := c.Result()
	if err != nil {
		return err
	}
	return reflectutil.Assign(ret, res)
}
