package scanner

import "testing"

func TestParseDefaultsToI32(t *testing.T) {
	v, err := Parse("42")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.Tag() != I32 {
		t.Fatalf("tag: got=%s, want=i32", v.Tag())
	}
	if v.Display() != "42" {
		t.Fatalf("display: got=%s, want=42", v.Display())
	}
}

func TestParseEmptyNumericPart(t *testing.T) {
	v, err := Parse("_f32")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.Tag() != F32 {
		t.Fatalf("tag: got=%s, want=f32", v.Tag())
	}
	if v.Display() != "0" {
		t.Fatalf("display: got=%s, want=0", v.Display())
	}
}

func TestParseUnknownTag(t *testing.T) {
	if _, err := Parse("1_i128"); err == nil {
		t.Fatalf("expected a parse error for an unknown tag")
	}
}

func TestParseHexLiteral(t *testing.T) {
	v, err := Parse("0xFF_i16")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.Tag() != I16 {
		t.Fatalf("tag: got=%s, want=i16", v.Tag())
	}
	if v.Display() != "255" {
		t.Fatalf("display: got=%s, want=255", v.Display())
	}
}

func TestParseOverflow(t *testing.T) {
	if _, err := Parse("1000_i8"); err == nil {
		t.Fatalf("expected a parse error for an out-of-range i8")
	}
}

func TestParseRejectsNaN(t *testing.T) {
	if _, err := Parse("NaN_f32"); err == nil {
		t.Fatalf("expected a parse error for a NaN pattern value")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Value{
		NewU8(250), NewI8(-5), NewU16(60000), NewI16(-1234),
		NewU32(4000000000), NewI32(-123456), NewU64(1 << 40),
		NewI64(-(1 << 40)), NewF32(3.5), NewF64(-2.25),
	}
	for _, v := range cases {
		encoded := v.EncodeNative()
		if len(encoded) != v.Tag().Width() {
			t.Fatalf("%s: encoded length=%d, want=%d", v.Tag(), len(encoded), v.Tag().Width())
		}
		decoded := DecodeNative(encoded, v.Tag())
		eq, err := Equal(v, decoded)
		if err != nil {
			t.Fatalf("%s: Equal: %v", v.Tag(), err)
		}
		if !eq {
			t.Fatalf("%s: round trip mismatch: got=%s, want=%s", v.Tag(), decoded.Display(), v.Display())
		}
	}
}

func TestAddSubWrappingIntegers(t *testing.T) {
	max := NewU8(255)
	one := NewU8(1)
	sum, err := Add(max, one)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum.Display() != "0" {
		t.Fatalf("wrapping add: got=%s, want=0", sum.Display())
	}
}

func TestAddTypeMismatch(t *testing.T) {
	_, err := Add(NewI32(1), NewI16(1))
	if err == nil {
		t.Fatalf("expected a TypeMismatch error")
	}
	if _, ok := err.(*ErrTypeMismatch); !ok {
		t.Fatalf("got=%T, want=*ErrTypeMismatch", err)
	}
}

func TestFloatCompareIEEEOrder(t *testing.T) {
	a := NewF64(1.5)
	b := NewF64(2.5)
	c, ok, err := Compare(a, b)
	if err != nil || !ok {
		t.Fatalf("Compare: c=%d ok=%v err=%v", c, ok, err)
	}
	if c >= 0 {
		t.Fatalf("1.5 should compare less than 2.5, got=%d", c)
	}
}

func TestDefaultForZeroesEachTag(t *testing.T) {
	for _, tag := range []Tag{U8, I8, U16, I16, U32, I32, U64, I64, F32, F64} {
		v := DefaultFor(tag)
		if v.Display() != "0" {
			t.Fatalf("%s: default=%s, want=0", tag, v.Display())
		}
	}
}
