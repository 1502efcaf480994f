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

package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec is able to encode and decode whole frames.
// Each call to Marshal produces exactly one message
// for the transport.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// Binary reports whether the frames produced by this
	// codec must be sent as binary messages rather than text.
	Binary() bool
}

// Default is the default Codec. JSON is the wire
// format other implementations expect.
var Default Codec = JSON

// JSON encodes frames as UTF-8 JSON text
var JSON Codec = jsonCodec{}

// Msgpack encodes frames as msgpack. It can only be
// used when both peers are configured for it.
var Msgpack Codec = msgpackCodec{}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) String() string { return "json" }

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	// Decode every integer as int64 and every float as float64 so
	// that decoded values look like their JSON counterparts
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}

func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) String() string { return "msgpack" }

// ByName returns the codec with the given name
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
