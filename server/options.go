package server

import (
	"net/http"

	"go.arsenm.dev/wscall/channel"
	"go.uber.org/zap"
)

// Option configures a Server
type Option func(*options)

type options struct {
	chOpts      []channel.Option
	logger      *zap.Logger
	checkOrigin func(r *http.Request) bool
}

// WithChannelOptions sets the options used for every channel
func WithChannelOptions(opts ...channel.Option) Option {
	return func(o *options) {
		o.chOpts = append(o.chOpts, opts...)
	}
}

// WithLogger sets the logger for connection events.
// Channels use the logger given to WithChannelOptions.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCheckOrigin sets the function used to accept or reject
// WebSocket handshakes based on the request. By default, only
// same-origin requests are accepted by ServeHTTP and every
// request is accepted by XNetHandler.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(o *options) {
		o.checkOrigin = fn
	}
}
