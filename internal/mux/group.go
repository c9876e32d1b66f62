package mux

import (
	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

// Group owns a set of subscriptions acquired together and released together.
type Group struct {
	m       *Multiplexer
	handles []Handle
	closed  bool
}

func (m *Multiplexer) NewGroup() *Group {
	return &Group{m: m}
}

// Subscribe registers fn and ties its lifetime to the group. Subscribing on a
// closed group is a no-op returning the zero handle.
func (g *Group) Subscribe(id schema.EventID, fn Handler) Handle {
	if g.closed {
		return 0
	}
	h := g.m.Subscribe(id, fn)
	g.handles = append(g.handles, h)
	return h
}

func (g *Group) Len() int {
	return len(g.handles)
}

// Close releases every handle. Safe to call more than once.
func (g *Group) Close() {
	if g.closed {
		return
	}
	g.closed = true
	g.m.Unsubscribe(g.handles...)
	g.handles = nil
}
