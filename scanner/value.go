// Package scanner implements the typed memory scan engine: the value model,
// the predicate algebra, the two-phase scan lifecycle and the writer.
package scanner

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tag identifies which native numeric type a Value carries.
type Tag int

const (
	U8 Tag = iota
	I8
	U16
	I16
	U32
	I32
	U64
	I64
	F32
	F64
)

func (t Tag) String() string {
	switch t {
	case U8:
		return "u8"
	case I8:
		return "i8"
	case U16:
		return "u16"
	case I16:
		return "i16"
	case U32:
		return "u32"
	case I32:
		return "i32"
	case U64:
		return "u64"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// Width returns the byte-width of the native encoding for t.
func (t Tag) Width() int {
	switch t {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32, F32:
		return 4
	case U64, I64, F64:
		return 8
	default:
		return 0
	}
}

// ParseTag resolves a tag suffix (as used after the "_" in a value or
// predicate literal) to its Tag, for callers such as the REPL's list command
// that take a bare tag as a filter.
func ParseTag(s string) (Tag, error) {
	tag, ok := tagFromString(s)
	if !ok {
		return 0, &ErrParse{Text: s, Reason: "unknown tag " + s}
	}
	return tag, nil
}

func tagFromString(s string) (Tag, bool) {
	switch s {
	case "u8":
		return U8, true
	case "i8":
		return I8, true
	case "u16":
		return U16, true
	case "i16":
		return I16, true
	case "u32":
		return U32, true
	case "i32":
		return I32, true
	case "u64":
		return U64, true
	case "i64":
		return I64, true
	case "f32":
		return F32, true
	case "f64":
		return F64, true
	default:
		return 0, false
	}
}

// Value is a tagged union over the supported numeric types.
type Value struct {
	tag Tag
	u   uint64 // U8/U16/U32/U64 and the bit pattern for F32/F64
	i   int64  // I8/I16/I32/I64
}

// Tag returns the value's type tag.
func (v Value) Tag() Tag { return v.tag }

// NewU8, NewI8, ... construct a Value of the matching tag.
func NewU8(x uint8) Value   { return Value{tag: U8, u: uint64(x)} }
func NewI8(x int8) Value    { return Value{tag: I8, i: int64(x)} }
func NewU16(x uint16) Value { return Value{tag: U16, u: uint64(x)} }
func NewI16(x int16) Value  { return Value{tag: I16, i: int64(x)} }
func NewU32(x uint32) Value { return Value{tag: U32, u: uint64(x)} }
func NewI32(x int32) Value  { return Value{tag: I32, i: int64(x)} }
func NewU64(x uint64) Value { return Value{tag: U64, u: x} }
func NewI64(x int64) Value  { return Value{tag: I64, i: x} }
func NewF32(x float32) Value {
	return Value{tag: F32, u: uint64(math.Float32bits(x))}
}
func NewF64(x float64) Value {
	return Value{tag: F64, u: math.Float64bits(x)}
}

// DefaultFor produces the type-appropriate zero for tag, used as the placeholder
// "previous value" on the initial scan pass.
func DefaultFor(tag Tag) Value {
	switch tag {
	case U8:
		return NewU8(0)
	case I8:
		return NewI8(0)
	case U16:
		return NewU16(0)
	case I16:
		return NewI16(0)
	case U32:
		return NewU32(0)
	case I32:
		return NewI32(0)
	case U64:
		return NewU64(0)
	case I64:
		return NewI64(0)
	case F32:
		return NewF32(0)
	case F64:
		return NewF64(0)
	default:
		return Value{}
	}
}

// ErrParse is returned by Parse on a malformed value, tag or numeric literal.
type ErrParse struct {
	Text   string
	Reason string
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("cannot parse value %q: %s", e.Text, e.Reason)
}

// ErrTypeMismatch is returned whenever two Values of different tags are
// compared or combined with Add/Sub.
type ErrTypeMismatch struct {
	A, B Tag
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("type mismatch: %s vs %s", e.A, e.B)
}

// Parse parses the grammar "<number>[_<tag>]". The tag defaults to i32 when
// omitted. An empty numeric part before the tag is taken as 0, so "_f32"
// parses to F32(0). Integer tags accept "0x"/"0"/"0b"-prefixed literals as
// well as plain decimal (e.g. "0xFF_i16"); float tags are always decimal.
func Parse(text string) (Value, error) {
	numPart, tagPart, hasTag := strings.Cut(text, "_")
	tag := I32
	if hasTag {
		t, ok := tagFromString(tagPart)
		if !ok {
			return Value{}, &ErrParse{Text: text, Reason: "unknown tag " + tagPart}
		}
		tag = t
	}
	if numPart == "" {
		numPart = "0"
	}
	return parseNumber(numPart, tag, text)
}

func parseNumber(numPart string, tag Tag, original string) (Value, error) {
	switch tag {
	case U8, U16, U32, U64:
		n, err := strconv.ParseUint(numPart, 0, tag.Width()*8)
		if err != nil {
			return Value{}, &ErrParse{Text: original, Reason: err.Error()}
		}
		switch tag {
		case U8:
			return NewU8(uint8(n)), nil
		case U16:
			return NewU16(uint16(n)), nil
		case U32:
			return NewU32(uint32(n)), nil
		default:
			return NewU64(n), nil
		}
	case I8, I16, I32, I64:
		n, err := strconv.ParseInt(numPart, 0, tag.Width()*8)
		if err != nil {
			return Value{}, &ErrParse{Text: original, Reason: err.Error()}
		}
		switch tag {
		case I8:
			return NewI8(int8(n)), nil
		case I16:
			return NewI16(int16(n)), nil
		case I32:
			return NewI32(int32(n)), nil
		default:
			return NewI64(n), nil
		}
	case F32:
		f, err := strconv.ParseFloat(numPart, 32)
		if err != nil {
			return Value{}, &ErrParse{Text: original, Reason: err.Error()}
		}
		if math.IsNaN(f) {
			return Value{}, &ErrParse{Text: original, Reason: "NaN is not a valid pattern value"}
		}
		return NewF32(float32(f)), nil
	case F64:
		f, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return Value{}, &ErrParse{Text: original, Reason: err.Error()}
		}
		if math.IsNaN(f) {
			return Value{}, &ErrParse{Text: original, Reason: "NaN is not a valid pattern value"}
		}
		return NewF64(f), nil
	default:
		return Value{}, &ErrParse{Text: original, Reason: "unreachable tag"}
	}
}

// Display renders the numeric value only, with no tag suffix.
func (v Value) Display() string {
	switch v.tag {
	case U8, U16, U32, U64:
		return strconv.FormatUint(v.u, 10)
	case I8, I16, I32, I64:
		return strconv.FormatInt(v.i, 10)
	case F32:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(v.u))), 'g', -1, 32)
	case F64:
		return strconv.FormatFloat(math.Float64frombits(v.u), 'g', -1, 64)
	default:
		return "<invalid>"
	}
}

func (v Value) String() string { return v.Display() }

// EncodeNative encodes v into exactly v.Tag().Width() native-endian bytes.
func (v Value) EncodeNative() []byte {
	buf := make([]byte, v.tag.Width())
	switch v.tag {
	case U8:
		buf[0] = byte(v.u)
	case I8:
		buf[0] = byte(v.i)
	case U16:
		nativeEndian.PutUint16(buf, uint16(v.u))
	case I16:
		nativeEndian.PutUint16(buf, uint16(int16(v.i)))
	case U32:
		nativeEndian.PutUint32(buf, uint32(v.u))
	case I32:
		nativeEndian.PutUint32(buf, uint32(int32(v.i)))
	case U64:
		nativeEndian.PutUint64(buf, v.u)
	case I64:
		nativeEndian.PutUint64(buf, uint64(v.i))
	case F32:
		nativeEndian.PutUint32(buf, uint32(v.u))
	case F64:
		nativeEndian.PutUint64(buf, v.u)
	}
	return buf
}

// DecodeNative decodes a width(tag)-byte native-endian window into a Value.
// It tolerates an unaligned source: on strict-alignment hosts the caller's
// buffer is ordinary heap memory, never a raw pointer cast, so no copy is
// required here beyond what binary.* already does internally.
func DecodeNative(b []byte, tag Tag) Value {
	switch tag {
	case U8:
		return NewU8(b[0])
	case I8:
		return NewI8(int8(b[0]))
	case U16:
		return NewU16(nativeEndian.Uint16(b))
	case I16:
		return NewI16(int16(nativeEndian.Uint16(b)))
	case U32:
		return NewU32(nativeEndian.Uint32(b))
	case I32:
		return NewI32(int32(nativeEndian.Uint32(b)))
	case U64:
		return NewU64(nativeEndian.Uint64(b))
	case I64:
		return NewI64(int64(nativeEndian.Uint64(b)))
	case F32:
		return Value{tag: F32, u: uint64(nativeEndian.Uint32(b))}
	case F64:
		return Value{tag: F64, u: nativeEndian.Uint64(b)}
	default:
		return Value{}
	}
}

// Add returns a+b. Tags must match.
func Add(a, b Value) (Value, error) {
	if a.tag != b.tag {
		return Value{}, &ErrTypeMismatch{a.tag, b.tag}
	}
	switch a.tag {
	case U8, U16, U32, U64:
		return rewrap(a.tag, a.u+b.u), nil
	case I8, I16, I32, I64:
		return rewrapSigned(a.tag, a.i+b.i), nil
	case F32:
		return NewF32(toF32(a) + toF32(b)), nil
	case F64:
		return NewF64(toF64(a) + toF64(b)), nil
	default:
		return Value{}, fmt.Errorf("unreachable tag")
	}
}

// Sub returns a-b. Tags must match.
func Sub(a, b Value) (Value, error) {
	if a.tag != b.tag {
		return Value{}, &ErrTypeMismatch{a.tag, b.tag}
	}
	switch a.tag {
	case U8, U16, U32, U64:
		return rewrap(a.tag, a.u-b.u), nil
	case I8, I16, I32, I64:
		return rewrapSigned(a.tag, a.i-b.i), nil
	case F32:
		return NewF32(toF32(a) - toF32(b)), nil
	case F64:
		return NewF64(toF64(a) - toF64(b)), nil
	default:
		return Value{}, fmt.Errorf("unreachable tag")
	}
}

// Compare returns -1, 0, 1 for a<b, a==b, a>b. Tags must match. Float
// comparisons follow IEEE-754 partial order; NaN operands (which can only
// arise from target memory, never from a parsed pattern) compare unordered
// and Compare reports that via ok=false.
func Compare(a, b Value) (cmp int, ok bool, err error) {
	if a.tag != b.tag {
		return 0, false, &ErrTypeMismatch{a.tag, b.tag}
	}
	switch a.tag {
	case U8, U16, U32, U64:
		switch {
		case a.u < b.u:
			return -1, true, nil
		case a.u > b.u:
			return 1, true, nil
		default:
			return 0, true, nil
		}
	case I8, I16, I32, I64:
		switch {
		case a.i < b.i:
			return -1, true, nil
		case a.i > b.i:
			return 1, true, nil
		default:
			return 0, true, nil
		}
	case F32:
		x, y := toF32(a), toF32(b)
		if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) {
			return 0, false, nil
		}
		switch {
		case x < y:
			return -1, true, nil
		case x > y:
			return 1, true, nil
		default:
			return 0, true, nil
		}
	case F64:
		x, y := toF64(a), toF64(b)
		if math.IsNaN(x) || math.IsNaN(y) {
			return 0, false, nil
		}
		switch {
		case x < y:
			return -1, true, nil
		case x > y:
			return 1, true, nil
		default:
			return 0, true, nil
		}
	default:
		return 0, false, fmt.Errorf("unreachable tag")
	}
}

// Equal reports whether a and b compare equal under Compare. For floats this
// is IEEE-754 equality rather than bit equality: NaN is never equal to
// itself, and +0 equals -0. Mismatched tags fail with ErrTypeMismatch.
func Equal(a, b Value) (bool, error) {
	c, ok, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return c == 0, nil
}

func toF32(v Value) float32 { return math.Float32frombits(uint32(v.u)) }
func toF64(v Value) float64 { return math.Float64frombits(v.u) }

func rewrap(tag Tag, x uint64) Value {
	switch tag {
	case U8:
		return NewU8(uint8(x))
	case U16:
		return NewU16(uint16(x))
	case U32:
		return NewU32(uint32(x))
	default:
		return NewU64(x)
	}
}

func rewrapSigned(tag Tag, x int64) Value {
	switch tag {
	case I8:
		return NewI8(int8(x))
	case I16:
		return NewI16(int16(x))
	case I32:
		return NewI32(int32(x))
	default:
		return NewI64(x)
	}
}

// nativeEndian is the host's byte order, resolved once in endian.go.
var nativeEndian binary.ByteOrder
