package store

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/docket/internal/ir"
)

// Codec encodes rows for storage.
type Codec interface {
	// Name is stored with every row written by this codec.
	Name() string
	Marshal(obj ir.Object) ([]byte, error)
	Unmarshal(data []byte) (ir.Object, error)
}

// Codec names.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// CodecByName resolves a codec name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (must be %q or %q)", name, CodecJSON, CodecMsgpack)
	}
}

// JSONCodec stores rows as canonical JSON. Temporal values become RFC 3339
// text and are restored by the schema's cast on read.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

// Marshal converts an Object to canonical JSON.
func (JSONCodec) Marshal(obj ir.Object) ([]byte, error) {
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal json row: %w", err)
	}
	return data, nil
}

// Unmarshal parses a JSON row. Numbers go through json.Number to keep
// their precision.
func (JSONCodec) Unmarshal(data []byte) (ir.Object, error) {
	if len(data) == 0 {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("unmarshal json row: %w", err)
	}
	return obj, nil
}

// MsgpackCodec stores rows as MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

// Marshal converts an Object to MessagePack.
func (MsgpackCodec) Marshal(obj ir.Object) ([]byte, error) {
	data, err := msgpack.Marshal(ir.ToAny(obj))
	if err != nil {
		return nil, fmt.Errorf("marshal msgpack row: %w", err)
	}
	return data, nil
}

// Unmarshal parses a MessagePack row.
func (MsgpackCodec) Unmarshal(data []byte) (ir.Object, error) {
	if len(data) == 0 {
		return ir.Object{}, nil
	}
	var raw map[string]any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal msgpack row: %w", err)
	}
	normalized, err := normalizeMsgpack(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal msgpack row: %w", err)
	}
	obj, _ := normalized.(map[string]any)
	return ir.ObjectFrom(obj)
}

// normalizeMsgpack rewrites the map shapes the decoder may produce into
// string-keyed maps ir.FromAny accepts.
func normalizeMsgpack(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalizeMsgpack(elem)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string map key %v", k)
			}
			n, err := normalizeMsgpack(elem)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := normalizeMsgpack(elem)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}
