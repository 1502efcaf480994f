/*
 *	wscall allows two peers to call functions on each other remotely.
 *	Copyright (C) 2022 Arsen Musayelyan
 *
 *	This program is free software: you can redistribute it and/or modify
 *	it under the terms of the GNU General Public License as published by
 *	the Free Software Foundation, either version 3 of the License, or
 *	(at your option) any later version.
 *
 *	This program is distributed in the hope that it will be useful,
 *	but WITHOUT ANY WARRANTY; without even the implied warranty of
 *	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 *	GNU General Public License for more details.
 *
 *	You should have received a copy of the GNU General Public License
 *	along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package channel implements calls in both directions over a
// single message connection. Each side registers functions under
// paths, and either side can call the paths the other registered.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.arsenm.dev/wscall/internal/types"
	"go.arsenm.dev/wscall/transport"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// Channel is one end of a connection. It dispatches calls from
// the peer to registered handlers, and matches responses from
// the peer to the calls made with MakeCall.
type Channel struct {
	id   string
	conn transport.Conn
	opts options
	log  *zap.Logger

	writeMtx sync.Mutex

	handlersMtx sync.RWMutex
	handlers    map[string]Handler

	// mtx protects the fields below
	mtx     sync.Mutex
	lastID  uint64
	pending map[uint64]*Call
	closed  bool

	running atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

type ctxKey struct{}

// New creates a new channel on conn. Handlers should be
// registered before calling Run, since calls from the peer
// to paths that aren't registered yet will fail.
func New(conn transport.Conn, opts ...Option) (*Channel, error) {
	if conn == nil {
		return nil, ErrNilConn
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	// Create new v4 UUID to identify this channel
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	out := &Channel{
		id:       id.String(),
		conn:     conn,
		opts:     o,
		handlers: map[string]Handler{},
		pending:  map[uint64]*Call{},
		done:     make(chan struct{}),
	}
	out.log = o.logger.With(zap.String("channel", out.id))
	out.ctx, out.cancel = context.WithCancel(context.Background())

	o.metrics.ChannelOpened()

	return out, nil
}

// FromContext returns the channel a handler was called on
func FromContext(ctx context.Context) (*Channel, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Channel)
	return c, ok
}

// ID returns the unique ID of this channel
func (c *Channel) ID() string {
	return c.id
}

// Register registers h to handle calls to path
func (c *Channel) Register(path string, h Handler) error {
	if path == "" {
		return ErrEmptyPath
	}
	if h == nil {
		return ErrNilHandler
	}
	if fn, ok := h.(HandlerFunc); ok && fn == nil {
		return ErrNilHandler
	}

	c.handlersMtx.Lock()
	defer c.handlersMtx.Unlock()

	if _, ok := c.handlers[path]; ok && c.opts.strict {
		return fmt.Errorf("%w: %s", ErrPathExists, path)
	}
	c.handlers[path] = h

	return nil
}

// RegisterFunc registers the function fn to handle calls
// to path. See Func for the functions that are accepted.
func (c *Channel) RegisterFunc(path string, fn any) error {
	h, err := Func(fn)
	if err != nil {
		return err
	}
	return c.Register(path, h)
}

// Deregister removes the handler for path, if any
func (c *Channel) Deregister(path string) {
	c.handlersMtx.Lock()
	delete(c.handlers, path)
	c.handlersMtx.Unlock()
}

func (c *Channel) handler(path string) Handler {
	c.handlersMtx.RLock()
	defer c.handlersMtx.RUnlock()
	return c.handlers[path]
}

// MakeCall calls path on the peer with arg. The returned Call
// completes once the peer responds or the channel is torn down.
func (c *Channel) MakeCall(path string, arg any) (*Call, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	c.mtx.Lock()
	if c.closed {
		c.mtx.Unlock()
		return nil, ErrClosed
	}
	c.lastID++
	call := newCall(c.lastID, path)
	// The call must be pending before the request is sent,
	// otherwise the response could arrive first
	c.pending[call.id] = call
	c.mtx.Unlock()

	c.opts.metrics.CallSent(path)

	err := c.send(types.Request{
		ID:   call.id,
		Path: path,
		Arg:  arg,
	})
	if err != nil {
		if c.removeCall(call.id) != nil {
			c.opts.metrics.CallCompleted("failure")
		}
		return nil, fmt.Errorf("send call %d to %s: %w", call.id, path, err)
	}

	c.log.Debug("Call sent", zap.Uint64("id", call.id), zap.String("path", path))

	return call, nil
}

// Call calls path on the peer with arg, waits for the response
// and stores the result in the value pointed to by ret. If ret
// is nil, the result is discarded.
//
// If ctx is done before the response arrives, Call returns
// ctx.Err(), but the peer still handles the call.
func (c *Channel) Call(ctx context.Context, path string, arg, ret any) error {
	call, err := c.MakeCall(path, arg)
	if err != nil {
		return err
	}

	if _, err = call.Wait(ctx); err != nil {
		return err
	}

	if ret == nil {
		return nil
	}
	return call.Decode(ret)
}

// Pending returns the amount of calls waiting for a response
func (c *Channel) Pending() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.pending)
}

func (c *Channel) removeCall(id uint64) *Call {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	call, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return call
}

// Run reads messages from the connection until it closes or ctx
// is done, and then tears down the channel. It returns nil if the
// connection was closed normally.
func (c *Channel) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrRunning
	}

	// Tear down when ctx is done, closing the connection
	// unblocks ReadMessage
	stop := context.AfterFunc(ctx, func() {
		c.shutdown(ctx.Err())
	})
	defer stop()

	c.log.Debug("Channel running")

	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			c.shutdown(err)
			return c.Err()
		}

		c.handleMessage(data)
	}
}

// Done returns a channel that is closed once the channel is torn down
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the channel was torn down. It is nil
// while the channel is open and after a normal close.
func (c *Channel) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close closes the connection and tears down the channel.
// All pending calls fail with ErrClosed.
func (c *Channel) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Channel) shutdown(cause error) {
	c.closeOnce.Do(func() {
		// No calls can be added after this
		c.mtx.Lock()
		c.closed = true
		pending := c.pending
		c.pending = map[uint64]*Call{}
		c.mtx.Unlock()

		callErr := ErrClosed
		if cause != nil {
			callErr = fmt.Errorf("%w: %v", ErrClosed, cause)
		}

		for _, call := range pending {
			if call.complete(nil, callErr) == nil {
				c.opts.metrics.CallCompleted("closed")
			}
		}

		c.cancel()
		if err := c.conn.Close(); err != nil {
			c.log.Debug("Error closing connection", zap.Error(err))
		}

		if cause != nil {
			c.log.Warn("Channel closed", zap.Int("pending", len(pending)), zap.Error(cause))
		} else {
			c.log.Debug("Channel closed", zap.Int("pending", len(pending)))
		}

		c.err = cause
		c.opts.metrics.ChannelClosed()
		close(c.done)
	})
}

// handleMessage handles one message received from the peer
func (c *Channel) handleMessage(data []byte) {
	var msg map[string]any
	// Messages that cannot be decoded are not errors,
	// the peer may share the connection with other traffic
	if err := c.opts.codec.Unmarshal(data, &msg); err != nil {
		c.log.Debug("Dropping undecodable message", zap.Error(err))
		return
	}
	frame := types.Frame(msg)

	switch frame.Kind() {
	case types.KindResponse:
		c.handleResponse(frame)
	case types.KindRequest:
		c.handleRequest(frame)
	default:
		c.log.Debug("Dropping unrecognized message")
	}
}

func (c *Channel) handleResponse(frame types.Frame) {
	resp, err := frame.Response()
	if err != nil {
		c.protocolError(&ProtocolError{
			Kind: KindInvalidResponse,
			ID:   frame["id"],
			Err:  err,
		})
		return
	}

	var call *Call
	if id, ok := types.ParseID(resp.ID); ok {
		call = c.removeCall(id)
	}
	if call == nil {
		c.protocolError(&ProtocolError{
			Kind: KindUnknownID,
			ID:   resp.ID,
			Err:  errors.New("no such call is pending, or it already got a response"),
		})
		return
	}

	// removeCall made this the only place the call can complete
	outcome := "success"
	if resp.Success {
		call.complete(resp.Result, nil)
	} else {
		outcome = "failure"
		call.complete(nil, &RemoteError{
			Message: resp.Message,
			Code:    resp.Code,
		})
	}

	c.opts.metrics.CallCompleted(outcome)
}

func (c *Channel) handleRequest(frame types.Frame) {
	req, err := frame.Request()
	if err != nil {
		c.protocolError(&ProtocolError{
			Kind: KindInvalidRequest,
			ID:   frame["id"],
			Err:  err,
		})
		// The frame has an id, so the peer may be waiting for it
		go c.sendFailure(frame["id"], "invalid request: "+err.Error(), CodeError)
		return
	}

	if c.opts.limiter != nil && !c.opts.limiter.Allow() {
		c.opts.metrics.RequestHandled("rate_limited")
		go c.sendFailure(req.ID, "rate limit exceeded", CodeRateLimited)
		return
	}

	h := c.handler(req.Path)
	if h == nil {
		c.protocolError(&ProtocolError{
			Kind: KindNoSuchPath,
			ID:   req.ID,
			Path: req.Path,
		})
		c.opts.metrics.RequestHandled("no_such_path")
		// The peer is still waiting for this call, so tell it
		go c.sendFailure(req.ID, req.Path+" is not defined", CodeNoSuchPath)
		return
	}

	// Handlers may take a long time, so they can't block
	// the reading of other messages
	go c.serve(h, req)
}

// serve runs h and sends its outcome to the peer
func (c *Channel) serve(h Handler, req types.IncomingRequest) {
	log := c.log.With(zap.Any("id", req.ID), zap.String("path", req.Path))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panicked", zap.Any("panic", r), zap.Stack("stack"))
			c.opts.metrics.RequestHandled("panic")
			c.sendFailure(req.ID, fmt.Sprint("panic: ", r), CodePanic)
		}
	}()

	ctx := context.WithValue(c.ctx, ctxKey{}, c)
	res, err := h.ServeCall(ctx, req.Arg)
	if err != nil {
		log.Debug("Handler failed", zap.Error(err))
		c.opts.metrics.RequestHandled("failure")
		msg, code := errorInfo(err)
		c.sendFailure(req.ID, msg, code)
		return
	}

	data, err := c.opts.codec.Marshal(types.Response{
		ID:      req.ID,
		Success: true,
		Result:  res,
	})
	if err != nil {
		log.Warn("Cannot encode handler result", zap.Error(err))
		c.opts.metrics.RequestHandled("failure")
		c.sendFailure(req.ID, "cannot encode result: "+err.Error(), CodeError)
		return
	}

	c.opts.metrics.RequestHandled("success")
	if err = c.write(data); err != nil {
		c.writeFailed(err)
	}
}

func (c *Channel) sendFailure(id any, msg string, code any) {
	err := c.send(types.Failure{
		ID:      id,
		Success: false,
		Message: msg,
		Code:    code,
	})
	if err != nil {
		c.writeFailed(err)
	}
}

// send encodes v and writes it as one message
func (c *Channel) send(v any) error {
	data, err := c.opts.codec.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *Channel) write(data []byte) error {
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()
	return c.conn.WriteMessage(data, c.opts.codec.Binary())
}

func (c *Channel) writeFailed(err error) {
	select {
	case <-c.done:
		// Expected once the connection is gone
		c.log.Debug("Dropping response, channel closed", zap.Error(err))
	default:
		c.log.Warn("Failed to send response", zap.Error(err))
	}
}

func (c *Channel) protocolError(perr *ProtocolError) {
	c.log.Warn("Protocol error",
		zap.String("kind", string(perr.Kind)),
		zap.Any("id", perr.ID),
		zap.String("path", perr.Path),
		zap.Error(perr.Err),
	)
	c.opts.metrics.ProtocolError(string(perr.Kind))
	if c.opts.onProtocolError != nil {
		c.opts.onProtocolError(perr)
	}
}
