package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/colonyctl/internal/protocol/frame"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

// Codec encodes and decodes messages against one registry.
// Layout: header (sender u32, event u32), fixed fields at their declared
// offsets, then an optional trailing string with no length prefix.
type Codec struct {
	reg *schema.Registry
}

func NewCodec(reg *schema.Registry) *Codec {
	if reg == nil {
		reg = schema.Default()
	}
	return &Codec{reg: reg}
}

func (c *Codec) Registry() *schema.Registry {
	return c.reg
}

// Encode writes msg per its event specification.
func (c *Codec) Encode(msg Message) ([]byte, error) {
	spec, ok := c.reg.Lookup(msg.EventID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, msg.EventID)
	}
	for name := range msg.Fields {
		if _, declared := spec.Field(name); !declared {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrFieldType, spec, name)
		}
	}

	values := make([]Value, len(spec.Structure))
	size := spec.ExpectedMinSize
	for i, f := range spec.Structure {
		raw, ok := msg.Fields[f.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, spec.Name, f.Name)
		}
		v, err := canonical(raw, f)
		if err != nil {
			return nil, err
		}
		values[i] = v
		if f.Size == 0 {
			size += len(v.Text)
		}
	}

	buf := make([]byte, size)
	if err := frame.PutHeader(buf, frame.Header{SenderID: msg.SenderID, EventID: uint32(spec.ID)}); err != nil {
		return nil, err
	}
	for i, f := range spec.Structure {
		putValue(buf, f, values[i])
	}
	return buf, nil
}

// Decode reads raw into a message. It either returns a fully populated
// message or an error, never a partial result.
func (c *Codec) Decode(raw []byte) (Message, error) {
	head, err := frame.DecodeHeader(raw)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrUndersized, len(raw), frame.HeaderLen)
	}
	spec, ok := c.reg.Lookup(schema.EventID(head.EventID))
	if !ok {
		log.Debug().Uint32("event", head.EventID).Msg("protocol.Decode unknown event")
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownEvent, head.EventID)
	}
	if len(raw) < spec.ExpectedMinSize {
		return Message{}, fmt.Errorf("%w: %s got %d bytes, want >= %d", ErrUndersized, spec, len(raw), spec.ExpectedMinSize)
	}

	fields := make(Fields, len(spec.Structure))
	for _, f := range spec.Structure {
		fields[f.Name] = readValue(raw, f)
	}
	return Message{SenderID: head.SenderID, EventID: spec.ID, Fields: fields}, nil
}

func putValue(buf []byte, f schema.FieldSpec, v Value) {
	at := buf[f.Offset:]
	switch f.Type {
	case schema.TypeU8:
		at[0] = byte(v.Uint)
	case schema.TypeU16:
		binary.BigEndian.PutUint16(at, uint16(v.Uint))
	case schema.TypeU32:
		binary.BigEndian.PutUint32(at, uint32(v.Uint))
	case schema.TypeU64:
		binary.BigEndian.PutUint64(at, v.Uint)
	case schema.TypeI8:
		at[0] = byte(int8(v.Int))
	case schema.TypeI16:
		binary.BigEndian.PutUint16(at, uint16(int16(v.Int)))
	case schema.TypeI32:
		binary.BigEndian.PutUint32(at, uint32(int32(v.Int)))
	case schema.TypeI64:
		binary.BigEndian.PutUint64(at, uint64(v.Int))
	case schema.TypeF32:
		binary.BigEndian.PutUint32(at, math.Float32bits(float32(v.Float)))
	case schema.TypeF64:
		binary.BigEndian.PutUint64(at, math.Float64bits(v.Float))
	case schema.TypeBool:
		if v.Bool {
			at[0] = 1
		} else {
			at[0] = 0
		}
	case schema.TypeString:
		copy(at, v.Text)
	}
}

func readValue(raw []byte, f schema.FieldSpec) Value {
	at := raw[f.Offset:]
	switch f.Type {
	case schema.TypeU8:
		return Uint(uint64(at[0]))
	case schema.TypeU16:
		return Uint(uint64(binary.BigEndian.Uint16(at)))
	case schema.TypeU32:
		return Uint(uint64(binary.BigEndian.Uint32(at)))
	case schema.TypeU64:
		return Uint(binary.BigEndian.Uint64(at))
	case schema.TypeI8:
		return Int(int64(int8(at[0])))
	case schema.TypeI16:
		return Int(int64(int16(binary.BigEndian.Uint16(at))))
	case schema.TypeI32:
		return Int(int64(int32(binary.BigEndian.Uint32(at))))
	case schema.TypeI64:
		return Int(int64(binary.BigEndian.Uint64(at)))
	case schema.TypeF32:
		return Float(float64(math.Float32frombits(binary.BigEndian.Uint32(at))))
	case schema.TypeF64:
		return Float(math.Float64frombits(binary.BigEndian.Uint64(at)))
	case schema.TypeBool:
		return Bool(at[0] != 0)
	case schema.TypeString:
		return Text(string(at))
	default:
		return Value{}
	}
}
