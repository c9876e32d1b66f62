package protocol

import (
	"fmt"
	"math"

	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

// Kind is the Go-side category of a field value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUint
	KindInt
	KindFloat
	KindBool
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	default:
		return "invalid"
	}
}

// Value is one decoded field value. Only the member matching Kind is set.
type Value struct {
	Kind  Kind
	Uint  uint64
	Int   int64
	Float float64
	Bool  bool
	Text  string
}

func Uint(v uint64) Value { return Value{Kind: KindUint, Uint: v} }
func Int(v int64) Value { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func Bool(v bool) Value { return Value{Kind: KindBool, Bool: v} }
func Text(v string) Value { return Value{Kind: KindText, Text: v} }
func Uint32(v uint32) Value { return Uint(uint64(v)) }

func (v Value) String() string {
	switch v.Kind {
	case KindUint:
		return fmt.Sprintf("%d", v.Uint)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindText:
		return fmt.Sprintf("%q", v.Text)
	default:
		return "<invalid>"
	}
}

// canonical converts v into the kind a wire type decodes to, checking range.
func canonical(v Value, f schema.FieldSpec) (Value, error) {
	t := f.Type
	switch {
	case t.IsUnsigned():
		u, err := asUint(v, f)
		if err != nil {
			return Value{}, err
		}
		if bits := t.Width() * 8; bits < 64 && u > (uint64(1)<<bits)-1 {
			return Value{}, fmt.Errorf("%w: field %s=%d exceeds %s", ErrFieldRange, f.Name, u, t)
		}
		return Uint(u), nil
	case t.IsSigned():
		i, err := asInt(v, f)
		if err != nil {
			return Value{}, err
		}
		if bits := t.Width() * 8; bits < 64 {
			lo, hi := -(int64(1) << (bits - 1)), (int64(1)<<(bits-1))-1
			if i < lo || i > hi {
				return Value{}, fmt.Errorf("%w: field %s=%d exceeds %s", ErrFieldRange, f.Name, i, t)
			}
		}
		return Int(i), nil
	case t.IsFloat():
		if v.Kind != KindFloat {
			return Value{}, fmt.Errorf("%w: field %s wants %s, got %s", ErrFieldType, f.Name, t, v.Kind)
		}
		if t == schema.TypeF32 && !math.IsNaN(v.Float) && !math.IsInf(v.Float, 0) && math.Abs(v.Float) > math.MaxFloat32 {
			return Value{}, fmt.Errorf("%w: field %s=%g exceeds f32", ErrFieldRange, f.Name, v.Float)
		}
		return v, nil
	case t == schema.TypeBool:
		if v.Kind != KindBool {
			return Value{}, fmt.Errorf("%w: field %s wants bool, got %s", ErrFieldType, f.Name, v.Kind)
		}
		return v, nil
	case t == schema.TypeString:
		if v.Kind != KindText {
			return Value{}, fmt.Errorf("%w: field %s wants string, got %s", ErrFieldType, f.Name, v.Kind)
		}
		return v, nil
	default:
		return Value{}, fmt.Errorf("%w: field %s has unsupported type %s", ErrFieldType, f.Name, t)
	}
}

func asUint(v Value, f schema.FieldSpec) (uint64, error) {
	switch v.Kind {
	case KindUint:
		return v.Uint, nil
	case KindInt:
		if v.Int < 0 {
			return 0, fmt.Errorf("%w: field %s=%d is negative for %s", ErrFieldRange, f.Name, v.Int, f.Type)
		}
		return uint64(v.Int), nil
	default:
		return 0, fmt.Errorf("%w: field %s wants %s, got %s", ErrFieldType, f.Name, f.Type, v.Kind)
	}
}

func asInt(v Value, f schema.FieldSpec) (int64, error) {
	switch v.Kind {
	case KindInt:
		return v.Int, nil
	case KindUint:
		if v.Uint > math.MaxInt64 {
			return 0, fmt.Errorf("%w: field %s=%d exceeds %s", ErrFieldRange, f.Name, v.Uint, f.Type)
		}
		return int64(v.Uint), nil
	default:
		return 0, fmt.Errorf("%w: field %s wants %s, got %s", ErrFieldType, f.Name, f.Type, v.Kind)
	}
}
