package protocol

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

// ServerSenderID is the reserved sender id of the authoritative peer.
const ServerSenderID uint32 = 0xFFFFFFFF

// Fields holds named field values for one message.
type Fields map[string]Value

// Message is one decoded event. Treat it as immutable once built.
type Message struct {
	SenderID uint32
	EventID  schema.EventID
	Fields   Fields
}

func NewMessage(senderID uint32, id schema.EventID, fields Fields) Message {
	return Message{SenderID: senderID, EventID: id, Fields: maps.Clone(fields)}
}

func (m Message) Get(name string) (Value, bool) {
	v, ok := m.Fields[name]
	return v, ok
}

func (m Message) Uint32(name string) uint32 {
	return uint32(m.Fields[name].Uint)
}

func (m Message) Uint(name string) uint64 {
	return m.Fields[name].Uint
}

func (m Message) Int(name string) int64 {
	return m.Fields[name].Int
}

func (m Message) Float(name string) float64 {
	return m.Fields[name].Float
}

func (m Message) Bool(name string) bool {
	return m.Fields[name].Bool
}

func (m Message) Text(name string) string {
	return m.Fields[name].Text
}

func (m Message) String() string {
	names := slices.Sorted(maps.Keys(m.Fields))
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, m.Fields[name]))
	}
	return fmt.Sprintf("sender=%d event=%d {%s}", m.SenderID, m.EventID, strings.Join(parts, " "))
}
