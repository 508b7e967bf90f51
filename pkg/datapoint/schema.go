package datapoint

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Schema errors.
var (
	// ErrSchemaMismatch indicates a value or payload inconsistent with the
	// schema's declared type for that datapoint. Fatal to the one call,
	// never silently coerced.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrUnknownEnumValue indicates an enum index outside the symbol table.
	ErrUnknownEnumValue = errors.New("unknown enum value")

	// ErrUnknownDatapoint indicates an encode request for a datapoint the
	// schema does not declare. Decoding unknown datapoints succeeds with an
	// opaque value; writing one requires a declaration.
	ErrUnknownDatapoint = errors.New("unknown datapoint")
)

// Kind is the schema-declared type of a datapoint. It extends the wire
// type tags with the program kind, which travels as a raw datapoint.
type Kind uint8

const (
	// KindRaw declares an uninterpreted byte string.
	KindRaw Kind = iota
	// KindBool declares a boolean.
	KindBool
	// KindValue declares a 32-bit integer.
	KindValue
	// KindString declares a UTF-8 string.
	KindString
	// KindEnum declares an index into the datapoint's symbol table.
	KindEnum
	// KindBitmap declares a bit set.
	KindBitmap
	// KindProgram declares an actuator program (raw on the wire).
	KindProgram
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindBool:
		return "bool"
	case KindValue:
		return "value"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindBitmap:
		return "bitmap"
	case KindProgram:
		return "program"
	default:
		return "unknown"
	}
}

// wireType returns the type tag records of this kind carry on the wire.
func (k Kind) wireType() Type {
	switch k {
	case KindBool:
		return TypeBool
	case KindValue:
		return TypeValue
	case KindString:
		return TypeString
	case KindEnum:
		return TypeEnum
	case KindBitmap:
		return TypeBitmap
	default:
		return TypeRaw
	}
}

// Def declares one datapoint of a product.
type Def struct {
	// ID is the datapoint ID.
	ID uint8

	// Name is the human-readable datapoint name.
	Name string

	// Kind is the declared type.
	Kind Kind

	// Values is the symbol table for enum datapoints.
	Values []string
}

// Schema is the per-product datapoint schema: the mapping from datapoint ID
// to declared type and, for enums, the symbol table. Schemas are immutable
// after construction.
type Schema struct {
	productID string
	category  string
	defs      map[uint8]Def
}

// NewSchema builds a schema from datapoint declarations.
func NewSchema(productID, category string, defs []Def) *Schema {
	m := make(map[uint8]Def, len(defs))
	for _, def := range defs {
		m[def.ID] = def
	}
	return &Schema{productID: productID, category: category, defs: m}
}

// ProductID returns the product this schema describes.
func (s *Schema) ProductID() string {
	return s.productID
}

// Category returns the vendor category code (e.g. "szjqr").
func (s *Schema) Category() string {
	return s.category
}

// Lookup returns the declaration for a datapoint ID.
func (s *Schema) Lookup(id uint8) (Def, bool) {
	def, ok := s.defs[id]
	return def, ok
}

// IDs returns the declared datapoint IDs.
func (s *Schema) IDs() []uint8 {
	ids := make([]uint8, 0, len(s.defs))
	for id := range s.defs {
		ids = append(ids, id)
	}
	return ids
}

// Decode maps a raw datapoint payload to a typed value. The schema's
// declared type is the single source of truth; the wire tag and byte length
// must be consistent with it or the decode fails. Datapoints unknown to the
// schema decode to opaque raw values.
func (s *Schema) Decode(id uint8, wireType Type, raw []byte) (Value, error) {
	def, ok := s.defs[id]
	if !ok {
		return NewOpaque(raw), nil
	}

	if wireType != def.Kind.wireType() {
		return Value{}, fmt.Errorf("%w: dp %d (%s) declared %s, wire tag %s",
			ErrSchemaMismatch, id, def.Name, def.Kind, wireType)
	}

	switch def.Kind {
	case KindRaw, KindBitmap:
		if def.Kind == KindBitmap {
			return NewBitmap(raw), nil
		}
		return NewRaw(raw), nil

	case KindBool:
		if len(raw) != 1 {
			return Value{}, fmt.Errorf("%w: dp %d (%s) bool payload is %d bytes",
				ErrSchemaMismatch, id, def.Name, len(raw))
		}
		return NewBool(raw[0] != 0), nil

	case KindValue:
		if len(raw) != 4 {
			return Value{}, fmt.Errorf("%w: dp %d (%s) value payload is %d bytes",
				ErrSchemaMismatch, id, def.Name, len(raw))
		}
		return NewInt(int32(binary.BigEndian.Uint32(raw))), nil

	case KindString:
		return NewString(string(raw)), nil

	case KindEnum:
		index, err := decodeEnumIndex(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: dp %d (%s): %v", ErrSchemaMismatch, id, def.Name, err)
		}
		if int(index) >= len(def.Values) {
			return Value{}, fmt.Errorf("%w: dp %d (%s) index %d, symbol table has %d entries",
				ErrUnknownEnumValue, id, def.Name, index, len(def.Values))
		}
		return NewEnum(index), nil

	case KindProgram:
		_, steps, err := DecodeProgram(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: dp %d (%s): %v", ErrSchemaMismatch, id, def.Name, err)
		}
		v := NewProgram(steps)
		v.raw = append([]byte(nil), raw...) // preserve the device header for re-encode
		return v, nil

	default:
		return Value{}, fmt.Errorf("%w: dp %d has unknown kind %d", ErrSchemaMismatch, id, def.Kind)
	}
}

// Encode maps a typed value back to its wire tag and payload. A value whose
// tag does not match the schema's declared type is rejected.
func (s *Schema) Encode(id uint8, v Value) (Type, []byte, error) {
	def, ok := s.defs[id]
	if !ok {
		// Opaque values round-trip to unknown datapoints; anything typed
		// needs a declaration.
		if v.IsOpaque() {
			raw, _ := v.Raw()
			return TypeRaw, raw, nil
		}
		return 0, nil, fmt.Errorf("%w: dp %d", ErrUnknownDatapoint, id)
	}

	mismatch := func() error {
		return fmt.Errorf("%w: dp %d (%s) declared %s, value is %s",
			ErrSchemaMismatch, id, def.Name, def.Kind, v.Type())
	}

	switch def.Kind {
	case KindRaw, KindBitmap:
		raw, ok := v.Raw()
		if !ok || v.IsProgram() {
			return 0, nil, mismatch()
		}
		return def.Kind.wireType(), raw, nil

	case KindBool:
		b, ok := v.Bool()
		if !ok {
			return 0, nil, mismatch()
		}
		if b {
			return TypeBool, []byte{1}, nil
		}
		return TypeBool, []byte{0}, nil

	case KindValue:
		i, ok := v.Int()
		if !ok {
			return 0, nil, mismatch()
		}
		raw := make([]byte, 4)
		binary.BigEndian.PutUint32(raw, uint32(i))
		return TypeValue, raw, nil

	case KindString:
		str, ok := v.Str()
		if !ok {
			return 0, nil, mismatch()
		}
		return TypeString, []byte(str), nil

	case KindEnum:
		index, ok := v.Enum()
		if !ok {
			return 0, nil, mismatch()
		}
		if int(index) >= len(def.Values) {
			return 0, nil, fmt.Errorf("%w: dp %d (%s) index %d, symbol table has %d entries",
				ErrUnknownEnumValue, id, def.Name, index, len(def.Values))
		}
		return TypeEnum, encodeEnumIndex(index), nil

	case KindProgram:
		steps, ok := v.Program()
		if !ok {
			return 0, nil, mismatch()
		}
		header := v.raw // device header captured at decode time, nil for fresh values
		if len(header) >= ProgramHeaderSize {
			header = header[:ProgramHeaderSize]
		}
		raw, err := EncodeProgram(header, steps)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: dp %d (%s): %v", ErrSchemaMismatch, id, def.Name, err)
		}
		return TypeRaw, raw, nil

	default:
		return 0, nil, fmt.Errorf("%w: dp %d has unknown kind %d", ErrSchemaMismatch, id, def.Kind)
	}
}

// decodeEnumIndex reads a 1, 2 or 4 byte big-endian enum index.
func decodeEnumIndex(raw []byte) (uint32, error) {
	switch len(raw) {
	case 1:
		return uint32(raw[0]), nil
	case 2:
		return uint32(binary.BigEndian.Uint16(raw)), nil
	case 4:
		return binary.BigEndian.Uint32(raw), nil
	default:
		return 0, fmt.Errorf("enum payload is %d bytes", len(raw))
	}
}

// encodeEnumIndex writes an enum index in the narrowest width that holds it.
func encodeEnumIndex(index uint32) []byte {
	switch {
	case index > 0xFFFF:
		raw := make([]byte, 4)
		binary.BigEndian.PutUint32(raw, index)
		return raw
	case index > 0xFF:
		raw := make([]byte, 2)
		binary.BigEndian.PutUint16(raw, uint16(index))
		return raw
	default:
		return []byte{byte(index)}
	}
}
