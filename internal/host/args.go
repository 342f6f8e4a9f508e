package host

import (
	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/revert"
)

// Argument decoding helpers. Every malformed or missing argument fails with
// INVALID_ARGUMENT naming the argument.

func missing(name string) error {
	return revert.New(revert.CodeInvalidArgument, "missing argument %q", name)
}

func malformed(name string, err error) error {
	return revert.Wrap(revert.CodeInvalidArgument, err, "malformed argument %q", name)
}

func wrongType(name, want string, got ir.Value) error {
	return revert.New(revert.CodeInvalidArgument, "argument %q: want %s, got %T", name, want, got)
}

// ArgAddress decodes a required address argument.
func ArgAddress(args ir.Object, name string) (ir.Address, error) {
	v, ok := args[name]
	if !ok {
		return ir.ZeroAddress, missing(name)
	}
	s, ok := v.(ir.String)
	if !ok {
		return ir.ZeroAddress, wrongType(name, "address", v)
	}
	a, err := ir.ParseAddress(string(s))
	if err != nil {
		return ir.ZeroAddress, malformed(name, err)
	}
	return a, nil
}

// ArgOptionalAddress decodes an address argument, defaulting to zero.
func ArgOptionalAddress(args ir.Object, name string) (ir.Address, error) {
	if _, ok := args[name]; !ok {
		return ir.ZeroAddress, nil
	}
	return ArgAddress(args, name)
}

// ArgSelector decodes a required bytes4 argument.
func ArgSelector(args ir.Object, name string) (ir.Selector, error) {
	v, ok := args[name]
	if !ok {
		return ir.Selector{}, missing(name)
	}
	s, ok := v.(ir.String)
	if !ok {
		return ir.Selector{}, wrongType(name, "bytes4", v)
	}
	sel, err := ir.ParseSelector(string(s))
	if err != nil {
		return ir.Selector{}, malformed(name, err)
	}
	return sel, nil
}

// ArgInt decodes a required integer argument.
func ArgInt(args ir.Object, name string) (int64, error) {
	v, ok := args[name]
	if !ok {
		return 0, missing(name)
	}
	n, ok := v.(ir.Int)
	if !ok {
		return 0, wrongType(name, "int", v)
	}
	return int64(n), nil
}

// ArgAmount decodes a required non-negative integer argument.
func ArgAmount(args ir.Object, name string) (int64, error) {
	n, err := ArgInt(args, name)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, revert.New(revert.CodeInvalidArgument, "argument %q must not be negative", name)
	}
	return n, nil
}

// ArgOptionalInt decodes an integer argument, defaulting to def.
func ArgOptionalInt(args ir.Object, name string, def int64) (int64, error) {
	if _, ok := args[name]; !ok {
		return def, nil
	}
	return ArgInt(args, name)
}

// ArgString decodes a required string argument.
func ArgString(args ir.Object, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", missing(name)
	}
	s, ok := v.(ir.String)
	if !ok {
		return "", wrongType(name, "string", v)
	}
	return string(s), nil
}

// ArgObject decodes an object argument; missing yields an empty object.
func ArgObject(args ir.Object, name string) (ir.Object, error) {
	v, ok := args[name]
	if !ok {
		return ir.Object{}, nil
	}
	switch o := v.(type) {
	case ir.Object:
		return o, nil
	case ir.Null:
		return ir.Object{}, nil
	default:
		return nil, wrongType(name, "object", v)
	}
}

// ArgArray decodes an array argument; missing yields an empty array.
func ArgArray(args ir.Object, name string) (ir.Array, error) {
	v, ok := args[name]
	if !ok {
		return ir.Array{}, nil
	}
	switch a := v.(type) {
	case ir.Array:
		return a, nil
	case ir.Null:
		return ir.Array{}, nil
	default:
		return nil, wrongType(name, "array", v)
	}
}
