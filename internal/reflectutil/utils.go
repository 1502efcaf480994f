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

package reflectutil

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

var (
	ErrNotPointer  = errors.New("destination must be a non-nil pointer")
	ErrNumberRange = errors.New("number out of range")
)

// Assign stores src in the value dst points to,
// converting it to the destination type if needed
func Assign(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Ptr || dstVal.IsNil() {
		return ErrNotPointer
	}
	elem := dstVal.Elem()

	// A nil source resets the destination
	if src == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}

	val, err := Convert(reflect.ValueOf(src), elem.Type())
	if err != nil {
		return err
	}
	elem.Set(val)
	return nil
}

// Convert attempts to convert the given value to the given type
func Convert(in reflect.Value, toType reflect.Type) (reflect.Value, error) {
	// Get input type
	inType := in.Type()

	// If input is already the desired type, return
	if inType == toType {
		return in, nil
	}

	// If the output is an interface the input satisfies, use it as is
	if toType.Kind() == reflect.Interface && inType.Implements(toType) {
		out := reflect.New(toType).Elem()
		out.Set(in)
		return out, nil
	}

	// If the output type is a pointer to the input type
	if reflect.PtrTo(inType) == toType {
		inPtrVal := reflect.New(inType)
		inPtrVal.Elem().Set(in)
		return inPtrVal, nil
	}

	// If input is a pointer pointing to the output type
	if inType.Kind() == reflect.Ptr && inType.Elem() == toType {
		return reflect.Indirect(in), nil
	}

	// Numbers decode as float64 or int64, so allow conversions
	// between numeric kinds as long as the value fits
	if isNumber(inType.Kind()) && isNumber(toType.Kind()) {
		return convertNumber(in, toType)
	}

	// Allow conversions between values of the same kind
	if inType.Kind() == toType.Kind() && in.CanConvert(toType) {
		return in.Convert(toType), nil
	}

	// Create new value of desired type
	to := reflect.New(toType)

	// Use mapstructure for everything else, such as maps to
	// structs and []any to typed slices. Struct fields are matched
	// using their json tags, so the same types can be used for
	// encoding and decoding.
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		TagName: "json",
		Result:  to.Interface(),
	})
	if err != nil {
		return reflect.Value{}, err
	}

	if err = dec.Decode(in.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %s to %s: %w", inType, toType, err)
	}

	return to.Elem(), nil
}

// convertNumber converts between numeric kinds, failing instead
// of truncating fractions or wrapping values that don't fit
func convertNumber(in reflect.Value, toType reflect.Type) (reflect.Value, error) {
	out := reflect.New(toType).Elem()
	fail := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("%w: %v does not fit in %s", ErrNumberRange, in.Interface(), toType)
	}

	switch {
	case out.CanFloat():
		var f float64
		switch {
		case in.CanInt():
			f = float64(in.Int())
		case in.CanUint():
			f = float64(in.Uint())
		default:
			f = in.Float()
		}
		if out.OverflowFloat(f) {
			return fail()
		}
		out.SetFloat(f)
	case out.CanInt():
		var i int64
		switch {
		case in.CanInt():
			i = in.Int()
		case in.CanUint():
			u := in.Uint()
			if u > math.MaxInt64 {
				return fail()
			}
			i = int64(u)
		default:
			f := in.Float()
			// -2^63 is exact as a float64, 2^63 is the first value past MaxInt64
			if f != math.Trunc(f) || f < math.MinInt64 || f >= 1<<63 {
				return fail()
			}
			i = int64(f)
		}
		if out.OverflowInt(i) {
			return fail()
		}
		out.SetInt(i)
	default:
		var u uint64
		switch {
		case in.CanInt():
			i := in.Int()
			if i < 0 {
				return fail()
			}
			u = uint64(i)
		case in.CanUint():
			u = in.Uint()
		default:
			f := in.Float()
			if f != math.Trunc(f) || f < 0 || f >= 1<<64 {
				return fail()
			}
			u = uint64(f)
		}
		if out.OverflowUint(u) {
			return fail()
		}
		out.SetUint(u)
	}

	return out, nil
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
