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

package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.arsenm.dev/wscall/channel"
	"go.arsenm.dev/wscall/transport"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Option configures a client connection
type Option func(*options)

type options struct {
	chOpts           []channel.Option
	logger           *zap.Logger
	header           http.Header
	handshakeTimeout time.Duration
}

// WithChannelOptions sets the options used for the channel
func WithChannelOptions(opts ...channel.Option) Option {
	return func(o *options) {
		o.chOpts = append(o.chOpts, opts...)
	}
}

// WithLogger sets the logger for connection events
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHeader sets extra headers sent with the WebSocket handshake
func WithHeader(h http.Header) Option {
	return func(o *options) {
		o.header = h
	}
}

// WithHandshakeTimeout sets the maximum duration of the WebSocket handshake
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.handshakeTimeout = d
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:           zap.NewNop(),
		handshakeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Dial connects to the WebSocket server at url and returns a
// running channel. setup, if not nil, is called before the
// channel starts handling messages, so that paths the server
// may call can be registered.
//
// ctx only bounds the handshake. Close the returned
// channel to disconnect.
func Dial(ctx context.Context, url string, setup func(*channel.Channel) error, opts ...Option) (*channel.Channel, error) {
	o := newOptions(opts)

	dialer := websocket.Dialer{
		HandshakeTimeout: o.handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, o.header)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	// Close the handshake response body
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	return start(transport.NewGorilla(conn), setup, o)
}

// New creates and returns a running channel on an existing connection
func New(conn transport.Conn, setup func(*channel.Channel) error, opts ...Option) (*channel.Channel, error) {
	return start(conn, setup, newOptions(opts))
}

func start(conn transport.Conn, setup func(*channel.Channel) error, o options) (*channel.Channel, error) {
	ch, err := channel.New(conn, o.chOpts...)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, err
	}

	if setup != nil {
		if err = setup(ch); err != nil {
			ch.Close()
			return nil, err
		}
	}

	go func() {
		if err := ch.Run(context.Background()); err != nil {
			o.logger.Warn("Connection closed unexpectedly", zap.String("channel", ch.ID()), zap.Error(err))
		}
	}()

	return ch, nil
}
