package datapoint

import (
	"encoding/hex"
	"fmt"
	"slices"
)

// Type is the one-byte datapoint type tag carried on the wire.
type Type uint8

const (
	// TypeRaw is an uninterpreted byte string.
	TypeRaw Type = 0
	// TypeBool is a single byte compared against zero.
	TypeBool Type = 1
	// TypeValue is a big-endian signed 32-bit integer.
	TypeValue Type = 2
	// TypeString is a UTF-8 string.
	TypeString Type = 3
	// TypeEnum is an index into the product's symbol table.
	TypeEnum Type = 4
	// TypeBitmap is a bit set, carried as raw bytes.
	TypeBitmap Type = 5
)

// String returns the type tag name.
func (t Type) String() string {
	switch t {
	case TypeRaw:
		return "RAW"
	case TypeBool:
		return "BOOL"
	case TypeValue:
		return "VALUE"
	case TypeString:
		return "STRING"
	case TypeEnum:
		return "ENUM"
	case TypeBitmap:
		return "BITMAP"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether t is a known wire type tag.
func (t Type) IsValid() bool {
	return t <= TypeBitmap
}

// Value is a typed datapoint value: a tagged variant over the wire types
// plus the schema-level program type. The zero Value is invalid; construct
// values with the New* functions.
type Value struct {
	typ    Type
	prog   bool
	opaque bool

	raw   []byte
	b     bool
	i     int32
	s     string
	enum  uint32
	steps []ProgramStep
}

// NewRaw returns a raw byte-string value.
func NewRaw(data []byte) Value {
	return Value{typ: TypeRaw, raw: slices.Clone(data)}
}

// NewOpaque returns a raw value for a datapoint the schema does not know.
// It round-trips unmodified and reports IsOpaque.
func NewOpaque(data []byte) Value {
	v := NewRaw(data)
	v.opaque = true
	return v
}

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	return Value{typ: TypeBool, b: b}
}

// NewInt returns a 32-bit integer value.
func NewInt(i int32) Value {
	return Value{typ: TypeValue, i: i}
}

// NewString returns a string value.
func NewString(s string) Value {
	return Value{typ: TypeString, s: s}
}

// NewEnum returns an enum value holding the symbol table index.
func NewEnum(index uint32) Value {
	return Value{typ: TypeEnum, enum: index}
}

// NewBitmap returns a bitmap value.
func NewBitmap(data []byte) Value {
	return Value{typ: TypeBitmap, raw: slices.Clone(data)}
}

// NewProgram returns a program value: a sequence of position/duration steps.
// On the wire a program travels as a raw datapoint.
func NewProgram(steps []ProgramStep) Value {
	return Value{typ: TypeRaw, prog: true, steps: slices.Clone(steps)}
}

// Type returns the wire type tag of the value.
func (v Value) Type() Type {
	return v.typ
}

// IsProgram reports whether the value holds decoded program steps.
func (v Value) IsProgram() bool {
	return v.prog
}

// IsOpaque reports whether the value belongs to a datapoint unknown to the
// schema and was passed through uninterpreted.
func (v Value) IsOpaque() bool {
	return v.opaque
}

// Raw returns the byte string of a raw or bitmap value.
func (v Value) Raw() ([]byte, bool) {
	if v.typ != TypeRaw && v.typ != TypeBitmap {
		return nil, false
	}
	return v.raw, true
}

// Bool returns the boolean of a bool value.
func (v Value) Bool() (bool, bool) {
	return v.b, v.typ == TypeBool
}

// Int returns the integer of a value-typed datapoint.
func (v Value) Int() (int32, bool) {
	return v.i, v.typ == TypeValue
}

// Str returns the string of a string value.
func (v Value) Str() (string, bool) {
	return v.s, v.typ == TypeString
}

// Enum returns the symbol table index of an enum value.
func (v Value) Enum() (uint32, bool) {
	return v.enum, v.typ == TypeEnum
}

// Program returns the steps of a program value.
func (v Value) Program() ([]ProgramStep, bool) {
	if !v.prog {
		return nil, false
	}
	return v.steps, true
}

// Equal reports whether two values have the same tag and payload.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ || v.prog != other.prog {
		return false
	}
	switch {
	case v.prog:
		return slices.Equal(v.steps, other.steps)
	case v.typ == TypeRaw || v.typ == TypeBitmap:
		return slices.Equal(v.raw, other.raw)
	case v.typ == TypeBool:
		return v.b == other.b
	case v.typ == TypeValue:
		return v.i == other.i
	case v.typ == TypeString:
		return v.s == other.s
	case v.typ == TypeEnum:
		return v.enum == other.enum
	default:
		return false
	}
}

// String renders the value for logs.
func (v Value) String() string {
	switch {
	case v.prog:
		return RenderProgramText(v.steps)
	case v.typ == TypeRaw || v.typ == TypeBitmap:
		return hex.EncodeToString(v.raw)
	case v.typ == TypeBool:
		return fmt.Sprintf("%t", v.b)
	case v.typ == TypeValue:
		return fmt.Sprintf("%d", v.i)
	case v.typ == TypeString:
		return v.s
	case v.typ == TypeEnum:
		return fmt.Sprintf("enum(%d)", v.enum)
	default:
		return "invalid"
	}
}
