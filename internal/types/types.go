package types

import (
	"errors"
	"math"

	"github.com/mitchellh/mapstructure"
)

var ErrSuccessNotBool = errors.New("success must be a boolean")

// Request represents a call sent to the peer
type Request struct {
	ID   uint64 `json:"id" msgpack:"id"`
	Path string `json:"path" msgpack:"path"`
	Arg  any    `json:"arg" msgpack:"arg"`
}

// Response represents a successful result returned to the peer.
// ID is echoed verbatim from the request.
type Response struct {
	ID      any  `json:"id" msgpack:"id"`
	Success bool `json:"success" msgpack:"success"`
	Result  any  `json:"result" msgpack:"result"`
}

// Failure represents an error returned to the peer
type Failure struct {
	ID      any    `json:"id" msgpack:"id"`
	Success bool   `json:"success" msgpack:"success"`
	Message string `json:"message" msgpack:"message"`
	Code    any    `json:"code" msgpack:"code"`
}

// Kind is the kind of a decoded frame
type Kind uint8

const (
	KindUnknown Kind = iota
	KindRequest
	KindResponse
)

// Frame is a decoded, not yet classified frame
type Frame map[string]any

// Kind classifies the frame. Anything carrying a success
// flag is a response, anything carrying both an id and a
// path is a request, and everything else is unknown.
func (f Frame) Kind() Kind {
	if _, ok := f["success"]; ok {
		return KindResponse
	}
	_, hasID := f["id"]
	_, hasPath := f["path"]
	if hasID && hasPath {
		return KindRequest
	}
	return KindUnknown
}

// IncomingRequest is a request received from the peer
type IncomingRequest struct {
	ID   any    `mapstructure:"id"`
	Path string `mapstructure:"path"`
	Arg  any    `mapstructure:"arg"`
}

// IncomingResponse is a response received from the peer
type IncomingResponse struct {
	ID      any    `mapstructure:"id"`
	Success bool   `mapstructure:"success"`
	Result  any    `mapstructure:"result"`
	Message string `mapstructure:"message"`
	Code    any    `mapstructure:"code"`
}

// Request decodes the frame as a request
func (f Frame) Request() (IncomingRequest, error) {
	var req IncomingRequest
	err := mapstructure.WeakDecode(map[string]any(f), &req)
	return req, err
}

// Response decodes the frame as a response
func (f Frame) Response() (IncomingResponse, error) {
	var resp IncomingResponse
	// success must be an actual boolean, weak decoding
	// would accept things like "1" or "true"
	if _, ok := f["success"].(bool); !ok {
		return resp, ErrSuccessNotBool
	}
	err := mapstructure.WeakDecode(map[string]any(f), &resp)
	return resp, err
}

// ParseID converts a decoded id into a call ID.
// It returns false if the value cannot be a call ID.
func ParseID(v any) (uint64, bool) {
	switch id := v.(type) {
	case uint64:
		return id, id > 0
	case int64:
		return uint64(id), id > 0
	case int:
		return uint64(id), id > 0
	case float64:
		if id <= 0 || id != math.Trunc(id) || id > math.MaxUint64 {
			return 0, false
		}
		return uint64(id), true
	default:
		return 0, false
	}
}
