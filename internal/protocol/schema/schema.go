package schema

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/colonyctl/internal/protocol/frame"
)

// EventID identifies one message kind on the wire.
type EventID uint32

// WireType tags how a field is laid out on the wire.
type WireType uint8

// Wire type IDs. Multi-byte numbers are big-endian.
const (
	TypeU8 WireType = iota + 1
	TypeU16
	TypeU32
	TypeU64
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeF32
	TypeF64
	TypeBool
	TypeString
)

var wireTypeNames = map[WireType]string{
	TypeU8:     "u8",
	TypeU16:    "u16",
	TypeU32:    "u32",
	TypeU64:    "u64",
	TypeI8:     "i8",
	TypeI16:    "i16",
	TypeI32:    "i32",
	TypeI64:    "i64",
	TypeF32:    "f32",
	TypeF64:    "f64",
	TypeBool:   "bool",
	TypeString: "string",
}

func (t WireType) String() string {
	if name, ok := wireTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("wiretype(%d)", uint8(t))
}

// Width is the canonical byte width of t. Strings are variable (0).
func (t WireType) Width() int {
	switch t {
	case TypeU8, TypeI8, TypeBool:
		return 1
	case TypeU16, TypeI16:
		return 2
	case TypeU32, TypeI32, TypeF32:
		return 4
	case TypeU64, TypeI64, TypeF64:
		return 8
	default:
		return 0
	}
}

func (t WireType) IsUnsigned() bool { return t >= TypeU8 && t <= TypeU64 }
func (t WireType) IsSigned() bool { return t >= TypeI8 && t <= TypeI64 }
func (t WireType) IsFloat() bool { return t == TypeF32 || t == TypeF64 }

// Role is the origin category of a sender.
type Role uint8

const (
	RoleServer Role = iota
	RoleOwner
	RoleGuest

	roleCount
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleOwner:
		return "owner"
	case RoleGuest:
		return "guest"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "server":
		return RoleServer, nil
	case "owner":
		return RoleOwner, nil
	case "guest":
		return RoleGuest, nil
	default:
		return 0, fmt.Errorf("schema: unknown role %q", raw)
	}
}

// Permissions maps each origin role to whether it may send an event.
type Permissions [roleCount]bool

// Allow builds a permission set granting exactly roles.
func Allow(roles ...Role) Permissions {
	var p Permissions
	for _, r := range roles {
		if r < roleCount {
			p[r] = true
		}
	}
	return p
}

func (p Permissions) Allows(r Role) bool {
	if r >= roleCount {
		return false
	}
	return p[r]
}

func (p Permissions) String() string {
	parts := make([]string, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		if p[r] {
			parts = append(parts, r.String())
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// FieldSpec places one named field in the message body.
// Size 0 means "remainder of buffer" and is only valid for the trailing string.
type FieldSpec struct {
	Name   string
	Offset int
	Size   int
	Type   WireType
}

// EventSpecification is the registered schema for one event.
type EventSpecification struct {
	ID              EventID
	Name            string
	Permissions     Permissions
	ExpectedMinSize int
	Structure       []FieldSpec
}

// IsPermitted reports whether role may originate events of spec.
func IsPermitted(spec EventSpecification, role Role) bool {
	return spec.Permissions.Allows(role)
}

// Field returns the descriptor named name.
func (s EventSpecification) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Structure {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Trailing returns the variable-length field, if the event declares one.
func (s EventSpecification) Trailing() (FieldSpec, bool) {
	if n := len(s.Structure); n > 0 && s.Structure[n-1].Size == 0 {
		return s.Structure[n-1], true
	}
	return FieldSpec{}, false
}

func (s EventSpecification) String() string {
	return fmt.Sprintf("%s(%d)", s.Name, s.ID)
}

type ValidationError struct {
	EventID EventID
	Field   string
	Reason  string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: event=%d: %s", e.EventID, e.Reason)
	}
	return fmt.Sprintf("schema: event=%d field=%s: %s", e.EventID, e.Field, e.Reason)
}

// Validate checks the layout rules: fields start right after the header,
// are contiguous and non-overlapping, match their type width, and at most one
// zero-size string closes the structure.
func (s EventSpecification) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ValidationError{EventID: s.ID, Reason: "missing name"}
	}
	next := frame.HeaderLen
	seen := make(map[string]struct{}, len(s.Structure))
	for i, f := range s.Structure {
		if strings.TrimSpace(f.Name) == "" {
			return ValidationError{EventID: s.ID, Field: fmt.Sprintf("#%d", i), Reason: "missing field name"}
		}
		if _, dup := seen[f.Name]; dup {
			return ValidationError{EventID: s.ID, Field: f.Name, Reason: "duplicate field name"}
		}
		seen[f.Name] = struct{}{}
		if _, ok := wireTypeNames[f.Type]; !ok {
			return ValidationError{EventID: s.ID, Field: f.Name, Reason: "unknown wire type"}
		}
		if f.Offset != next {
			return ValidationError{EventID: s.ID, Field: f.Name, Reason: fmt.Sprintf("offset %d, want %d", f.Offset, next)}
		}
		if f.Size == 0 {
			if f.Type != TypeString {
				return ValidationError{EventID: s.ID, Field: f.Name, Reason: "variable size requires string type"}
			}
			if i != len(s.Structure)-1 {
				return ValidationError{EventID: s.ID, Field: f.Name, Reason: "variable field must be last"}
			}
			continue
		}
		if f.Type == TypeString {
			return ValidationError{EventID: s.ID, Field: f.Name, Reason: "fixed-size strings are not supported"}
		}
		if f.Size != f.Type.Width() {
			return ValidationError{EventID: s.ID, Field: f.Name, Reason: fmt.Sprintf("size %d, %s is %d bytes", f.Size, f.Type, f.Type.Width())}
		}
		next += f.Size
	}
	if s.ExpectedMinSize != next {
		return ValidationError{EventID: s.ID, Reason: fmt.Sprintf("expected min size %d, layout needs %d", s.ExpectedMinSize, next)}
	}
	return nil
}

// Registry is an immutable event-id to specification lookup.
type Registry struct {
	byID   map[EventID]EventSpecification
	byName map[string]EventID
	ids    []EventID
}

// NewRegistry validates specs and freezes them into a lookup table.
func NewRegistry(specs ...EventSpecification) (*Registry, error) {
	r := &Registry{
		byID:   make(map[EventID]EventSpecification, len(specs)),
		byName: make(map[string]EventID, len(specs)),
		ids:    make([]EventID, 0, len(specs)),
	}
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[spec.ID]; dup {
			return nil, ValidationError{EventID: spec.ID, Reason: "duplicate event id"}
		}
		if _, dup := r.byName[spec.Name]; dup {
			return nil, ValidationError{EventID: spec.ID, Reason: fmt.Sprintf("duplicate event name %q", spec.Name)}
		}
		spec.Structure = slices.Clone(spec.Structure)
		r.byID[spec.ID] = spec
		r.byName[spec.Name] = spec.ID
		r.ids = append(r.ids, spec.ID)
	}
	slices.Sort(r.ids)
	log.Debug().Int("events", len(r.ids)).Msg("schema.NewRegistry ok")
	return r, nil
}

// MustRegistry is NewRegistry for static tables.
func MustRegistry(specs ...EventSpecification) *Registry {
	r, err := NewRegistry(specs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(id EventID) (EventSpecification, bool) {
	spec, ok := r.byID[id]
	if !ok {
		return EventSpecification{}, false
	}
	spec.Structure = slices.Clone(spec.Structure)
	return spec, true
}

func (r *Registry) ByName(name string) (EventSpecification, bool) {
	id, ok := r.byName[name]
	if !ok {
		return EventSpecification{}, false
	}
	return r.Lookup(id)
}

// All returns every specification ordered by id.
func (r *Registry) All() []EventSpecification {
	out := make([]EventSpecification, 0, len(r.ids))
	for _, id := range r.ids {
		spec, _ := r.Lookup(id)
		out = append(out, spec)
	}
	return out
}

func (r *Registry) Len() int { return len(r.ids) }

var defaultRegistry = sync.OnceValue(func() *Registry {
	return MustRegistry(catalogue...)
})

// Default returns the canonical colony protocol registry.
func Default() *Registry {
	return defaultRegistry()
}
