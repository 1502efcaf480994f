package codec_test

import (
	"testing"

	"go.arsenm.dev/wscall/codec"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	ID   uint64 `json:"id" msgpack:"id"`
	Path string `json:"path" msgpack:"path"`
	Arg  any    `json:"arg" msgpack:"arg"`
}

func TestDecodeGeneric(t *testing.T) {
	for _, cdc := range []codec.Codec{codec.JSON, codec.Msgpack} {
		t.Run(cdc.(interface{ String() string }).String(), func(t *testing.T) {
			data, err := cdc.Marshal(envelope{
				ID:   3,
				Path: "/user",
				Arg:  map[string]any{"name": "Fred", "age": 40},
			})
			require.NoError(t, err)

			var msg map[string]any
			require.NoError(t, cdc.Unmarshal(data, &msg))

			assert.EqualValues(t, 3, msg["id"])
			assert.Equal(t, "/user", msg["path"])

			arg, ok := msg["arg"].(map[string]any)
			require.True(t, ok, "nested maps must decode as map[string]any, got %T", msg["arg"])
			assert.Equal(t, "Fred", arg["name"])
			assert.EqualValues(t, 40, arg["age"])
		})
	}
}

func TestJSONIsText(t *testing.T) {
	data, err := codec.JSON.Marshal(envelope{ID: 1, Path: "/x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"path":"/x","arg":null}`, string(data))
	assert.False(t, codec.JSON.Binary())
	assert.True(t, codec.Msgpack.Binary())
}

func TestJSONMalformed(t *testing.T) {
	var msg map[string]any
	assert.Error(t, codec.JSON.Unmarshal([]byte("{nope"), &msg))
}

func TestByName(t *testing.T) {
	cdc, err := codec.ByName("")
	require.NoError(t, err)
	assert.Equal(t, codec.JSON, cdc)

	cdc, err = codec.ByName("MsgPack")
	require.NoError(t, err)
	assert.Equal(t, codec.Msgpack, cdc)

	_, err = codec.ByName("gob")
	assert.Error(t, err)
}
