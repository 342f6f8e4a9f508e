package store

import (
	"fmt"

	"github.com/roach88/exproxy/internal/ir"
)

// marshalValue converts a slot value to canonical JSON TEXT for storage.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// marshalObject converts an object (event fields, immutables, results) to
// canonical JSON TEXT. A nil object is stored as "{}".
func marshalObject(obj ir.Object) (string, error) {
	if obj == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(compact(obj))
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses a stored slot value.
func unmarshalValue(data string) (ir.Value, error) {
	v, err := ir.ParseValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// unmarshalObject parses stored object TEXT. Empty text yields an empty object.
func unmarshalObject(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := obj.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return obj, nil
}

// compact drops top-level null entries, which canonical JSON cannot carry;
// absent and null read back the same way.
func compact(obj ir.Object) ir.Object {
	out := make(ir.Object, len(obj))
	for k, v := range obj {
		switch v.(type) {
		case nil, ir.Null:
			continue
		}
		out[k] = v
	}
	return out
}
