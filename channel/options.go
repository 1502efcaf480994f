package channel

import (
	"go.arsenm.dev/wscall/codec"
	"go.arsenm.dev/wscall/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Option configures a Channel
type Option func(*options)

type options struct {
	codec   codec.Codec
	logger  *zap.Logger
	metrics *metrics.Collector
	strict  bool
	limiter *rate.Limiter

	onProtocolError func(error)
}

func defaultOptions() options {
	return options{
		codec:  codec.Default,
		logger: zap.NewNop(),
	}
}

// WithCodec sets the codec used to encode and decode frames.
// Both peers must use the same codec.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger the channel reports to
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records channel activity in m
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithStrictRegister makes Register fail with ErrPathExists
// instead of replacing an existing handler
func WithStrictRegister() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithRateLimit limits the rate at which calls from the peer
// are handled. Calls over the limit fail with CodeRateLimited.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(o *options) {
		o.limiter = rate.NewLimiter(r, burst)
	}
}

// WithProtocolErrorHandler sets a function that is called with
// a *ProtocolError every time the peer violates the protocol
func WithProtocolErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onProtocolError = fn
	}
}
