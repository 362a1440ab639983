// Package store persists snapshots and baselines.
package store

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes persisted values
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec writes indented, human-readable JSON
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// MsgpackCodec writes compact MessagePack
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// CodecFor selects the codec by the storage.binary flag
func CodecFor(binary bool) Codec {
	if binary {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}
