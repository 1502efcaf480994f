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

package channel

import (
	"context"
	"reflect"

	"go.arsenm.dev/wscall/internal/reflectutil"
)

// Handler handles calls made by the peer to a path.
//
// The context is canceled when the channel is torn down, and
// FromContext can be used on it to call back into the peer.
type Handler interface {
	ServeCall(ctx context.Context, arg any) (any, error)
}

// HandlerFunc is an adapter that allows using
// an ordinary function as a Handler
type HandlerFunc func(ctx context.Context, arg any) (any, error)

func (f HandlerFunc) ServeCall(ctx context.Context, arg any) (any, error) {
	return f(ctx, arg)
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// funcHandler calls an arbitrary function using reflection
type funcHandler struct {
	fn reflect.Value

	hasCtx  bool
	argType reflect.Type

	hasResult bool
	hasErr    bool
}

// Func creates a Handler from a function of the form
//
//	func([context.Context][, T]) ([R][, error])
//
// The argument sent by the peer is converted to T, so
// structs can be decoded from objects using their json tags.
func Func(fn any) (Handler, error) {
	// Get reflect value of fn
	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func || fnVal.IsNil() {
		return nil, ErrInvalidHandler
	}
	// Get function type
	fnType := fnVal.Type()

	if fnType.IsVariadic() {
		return nil, ErrInvalidHandler
	}

	out := &funcHandler{fn: fnVal}

	switch fnType.NumIn() {
	case 0:
	case 1: // Either a context or an argument
		if fnType.In(0) == ctxType {
			out.hasCtx = true
		} else {
			out.argType = fnType.In(0)
		}
	case 2: // The first parameter must be the context
		if fnType.In(0) != ctxType {
			return nil, ErrInvalidHandler
		}
		out.hasCtx = true
		out.argType = fnType.In(1)
	default:
		return nil, ErrInvalidHandler
	}

	switch fnType.NumOut() {
	case 0:
	case 1: // Either an error or a result
		if fnType.Out(0) == errType {
			out.hasErr = true
		} else {
			out.hasResult = true
		}
	case 2: // The second return value must be an error
		if fnType.Out(1) != errType {
			return nil, ErrInvalidHandler
		}
		out.hasResult = true
		out.hasErr = true
	default:
		return nil, ErrInvalidHandler
	}

	return out, nil
}

func (fh *funcHandler) ServeCall(ctx context.Context, arg any) (any, error) {
	args := make([]reflect.Value, 0, 2)

	if fh.hasCtx {
		args = append(args, reflect.ValueOf(&ctx).Elem())
	}

	if fh.argType != nil {
		var argVal reflect.Value
		if arg == nil {
			// No argument provided, use the zero value
			argVal = reflect.Zero(fh.argType)
		} else {
			// Convert argument to the function's argument type
			val, err := reflectutil.Convert(reflect.ValueOf(arg), fh.argType)
			if err != nil {
				return nil, err
			}
			argVal = val
		}
		args = append(args, argVal)
	}

	out := fh.fn.Call(args)

	var (
		res any
		err error
	)
	if fh.hasResult {
		res = out[0].Interface()
	}
	if fh.hasErr {
		// Get the last return value as an error
		if errVal := out[len(out)-1].Interface(); errVal != nil {
			err = errVal.(error)
		}
	}
	return res, err
}
