package reflectutil

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	Name    string        `json:"name"`
	License string        `json:"license"`
	Timeout time.Duration `json:"timeout"`
}

func TestAssignNumbers(t *testing.T) {
	var i int
	require.NoError(t, Assign(&i, float64(42)))
	assert.Equal(t, 42, i)

	var u8 uint8
	require.NoError(t, Assign(&u8, int64(7)))
	assert.Equal(t, uint8(7), u8)

	var f float32
	require.NoError(t, Assign(&f, 1.5))
	assert.Equal(t, float32(1.5), f)
}

func TestAssignNumberRange(t *testing.T) {
	var i int
	assert.ErrorIs(t, Assign(&i, 1.5), ErrNumberRange)
	assert.ErrorIs(t, Assign(&i, math.Inf(1)), ErrNumberRange)
	assert.ErrorIs(t, Assign(&i, math.NaN()), ErrNumberRange)

	var i8 int8
	assert.ErrorIs(t, Assign(&i8, int64(300)), ErrNumberRange)
	assert.ErrorIs(t, Assign(&i8, -129.0), ErrNumberRange)
	require.NoError(t, Assign(&i8, -128.0))
	assert.Equal(t, int8(-128), i8)

	var u8 uint8
	assert.ErrorIs(t, Assign(&u8, -1.0), ErrNumberRange)
	assert.ErrorIs(t, Assign(&u8, int64(-1)), ErrNumberRange)
	assert.ErrorIs(t, Assign(&u8, uint64(256)), ErrNumberRange)
	require.NoError(t, Assign(&u8, 255.0))
	assert.Equal(t, uint8(255), u8)

	var i64 int64
	assert.ErrorIs(t, Assign(&i64, uint64(math.MaxUint64)), ErrNumberRange)
	assert.ErrorIs(t, Assign(&i64, 1e19), ErrNumberRange)

	var f32 float32
	assert.ErrorIs(t, Assign(&f32, 1e300), ErrNumberRange)
	require.NoError(t, Assign(&f32, int64(3)))
	assert.Equal(t, float32(3), f32)
}

func TestAssignStruct(t *testing.T) {
	var u user
	err := Assign(&u, map[string]any{
		"name":    "Fred",
		"license": "Y",
		"timeout": "5s",
	})
	require.NoError(t, err)
	assert.Equal(t, user{Name: "Fred", License: "Y", Timeout: 5 * time.Second}, u)
}

func TestAssignSlices(t *testing.T) {
	var arr [2]int
	require.NoError(t, Assign(&arr, []any{5.0, 6.0}))
	assert.Equal(t, [2]int{5, 6}, arr)

	var strs []string
	require.NoError(t, Assign(&strs, []any{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, strs)
}

func TestAssignNil(t *testing.T) {
	s := "set"
	require.NoError(t, Assign(&s, nil))
	assert.Empty(t, s)
}

func TestAssignAny(t *testing.T) {
	var v any
	require.NoError(t, Assign(&v, map[string]any{"a": 1.0}))
	assert.Equal(t, map[string]any{"a": 1.0}, v)
}

func TestAssignNotPointer(t *testing.T) {
	var i int
	assert.ErrorIs(t, Assign(i, 1), ErrNotPointer)
	assert.ErrorIs(t, Assign((*int)(nil), 1), ErrNotPointer)
}

func TestAssignMismatch(t *testing.T) {
	var u user
	assert.Error(t, Assign(&u, "not a user"))
}

func TestConvertPointers(t *testing.T) {
	s := "value"

	out, err := Convert(reflect.ValueOf(s), reflect.TypeOf(&s))
	require.NoError(t, err)
	assert.Equal(t, "value", *out.Interface().(*string))

	out, err = Convert(reflect.ValueOf(&s), reflect.TypeOf(s))
	require.NoError(t, err)
	assert.Equal(t, "value", out.Interface())
}

func TestConvertNamedString(t *testing.T) {
	type path string

	out, err := Convert(reflect.ValueOf("/user"), reflect.TypeOf(path("")))
	require.NoError(t, err)
	assert.Equal(t, path("/user"), out.Interface())
}
