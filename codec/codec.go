// Package codec defines the serialization contract used by stores that
// persist records as opaque bytes.
package codec

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes store records to bytes and back.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier (e.g. "json", "msgpack").
	Name() string
}

// Codec name constants.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

// Get returns a codec by name. Defaults to msgpack, the compact wire
// format used by the Redis store.
func Get(name string) Codec {
	switch name {
	case NameJSON:
		return JSON{}
	case NameMsgpack, "":
		return Msgpack{}
	default:
		return Msgpack{}
	}
}

// JSON encodes records as JSON. Human-readable; useful when inspecting
// store contents directly.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return NameJSON }

// Msgpack encodes records as MessagePack.
type Msgpack struct{}

func (Msgpack) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (Msgpack) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (Msgpack) Name() string                       { return NameMsgpack }
