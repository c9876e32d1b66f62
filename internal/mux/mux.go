package mux

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/frame"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

// Handler receives one decoded message. A returned error or a panic is
// reported as protocol.ErrHandlerAborted and isolated to that handler.
type Handler func(protocol.Message) error

// Handle identifies one subscription.
type Handle uint64

// Identity is the local participant as supplied by the identity provider.
type Identity struct {
	ID   uint32
	IGN  string
	Role schema.Role
}

// Outbound ships encoded buffers to remote peers.
type Outbound interface {
	Send(raw []byte) error
}

type OutboundFunc func(raw []byte) error

func (f OutboundFunc) Send(raw []byte) error { return f(raw) }

// Diagnostic describes one dropped message or failed handler.
type Diagnostic struct {
	Kind     protocol.ErrorKind
	EventID  schema.EventID
	Role     schema.Role
	SenderID uint32
	Err      error
}

// Sink receives diagnostics. Report must not call back into the multiplexer.
type Sink interface {
	Report(Diagnostic)
}

type SinkFunc func(Diagnostic)

func (f SinkFunc) Report(d Diagnostic) { f(d) }

type logSink struct{}

func (logSink) Report(d Diagnostic) {
	log.Warn().
		Str("kind", string(d.Kind)).
		Uint32("event", uint32(d.EventID)).
		Str("role", d.Role.String()).
		Err(d.Err).
		Msg("mux dropped")
}

type Option func(*Multiplexer)

func WithOutbound(out Outbound) Option {
	return func(m *Multiplexer) {
		m.outbound = out
	}
}

func WithSink(sink Sink) Option {
	return func(m *Multiplexer) {
		if sink != nil {
			m.sink = sink
		}
	}
}

type subscription struct {
	handle Handle
	event  schema.EventID
	fn     Handler
	active bool
}

// Multiplexer routes decoded messages to subscribers.
type Multiplexer struct {
	codec    *protocol.Codec
	identity Identity
	outbound Outbound
	sink     Sink

	next     Handle
	subs     map[schema.EventID][]*subscription
	byHandle map[Handle]*subscription
}

func New(reg *schema.Registry, identity Identity, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		codec:    protocol.NewCodec(reg),
		identity: identity,
		sink:     logSink{},
		subs:     make(map[schema.EventID][]*subscription),
		byHandle: make(map[Handle]*subscription),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Multiplexer) Codec() *protocol.Codec {
	return m.codec
}

func (m *Multiplexer) Identity() Identity {
	return m.identity
}

// Subscribe registers fn for id. Handlers of the same id fire in
// registration order.
func (m *Multiplexer) Subscribe(id schema.EventID, fn Handler) Handle {
	m.next++
	s := &subscription{handle: m.next, event: id, fn: fn, active: true}
	m.subs[id] = append(m.subs[id], s)
	m.byHandle[s.handle] = s
	return s.handle
}

// Unsubscribe removes handles. Unknown or already removed handles are ignored.
// Removal is visible to a dispatch pass already in progress.
func (m *Multiplexer) Unsubscribe(handles ...Handle) {
	for _, h := range handles {
		s, ok := m.byHandle[h]
		if !ok {
			continue
		}
		s.active = false
		delete(m.byHandle, h)
		// replace rather than edit in place so running snapshots stay intact
		m.subs[s.event] = slices.DeleteFunc(slices.Clone(m.subs[s.event]), func(x *subscription) bool {
			return x == s
		})
		if len(m.subs[s.event]) == 0 {
			delete(m.subs, s.event)
		}
	}
}

// Len returns the number of live subscriptions.
func (m *Multiplexer) Len() int {
	return len(m.byHandle)
}

// EmitLocal sends a message from the local participant: permission check for
// the local role, encode, outbound send, then local dispatch of the decoded
// frame.
func (m *Multiplexer) EmitLocal(id schema.EventID, fields protocol.Fields) error {
	spec, ok := m.codec.Registry().Lookup(id)
	if !ok {
		err := fmt.Errorf("%w: %d", protocol.ErrUnknownEvent, id)
		m.report(id, m.identity.Role, m.identity.ID, err)
		return err
	}
	if !schema.IsPermitted(spec, m.identity.Role) {
		err := fmt.Errorf("%w: %s may not send %s", protocol.ErrPermissionDenied, m.identity.Role, spec)
		m.report(id, m.identity.Role, m.identity.ID, err)
		return err
	}
	raw, err := m.codec.Encode(protocol.NewMessage(m.identity.ID, id, fields))
	if err != nil {
		m.report(id, m.identity.Role, m.identity.ID, err)
		return err
	}
	// local subscribers see exactly what remote peers decode
	msg, err := m.codec.Decode(raw)
	if err != nil {
		m.report(id, m.identity.Role, m.identity.ID, err)
		return err
	}
	log.Debug().Str("event", spec.Name).Uint32("sender", msg.SenderID).Msg("mux.EmitLocal")

	var sendErr error
	if m.outbound != nil {
		if sendErr = m.outbound.Send(raw); sendErr != nil {
			sendErr = fmt.Errorf("mux: outbound send %s: %w", spec, sendErr)
			log.Warn().Err(sendErr).Msg("mux.EmitLocal outbound failed")
		}
	}
	return errors.Join(sendErr, m.dispatch(msg, m.identity.Role))
}

// DispatchInbound decodes raw, checks that role may originate it, and invokes
// its subscribers. Rejected messages are dropped and reported to the sink.
func (m *Multiplexer) DispatchInbound(raw []byte, role schema.Role) error {
	msg, err := m.codec.Decode(raw)
	if err != nil {
		id, _ := frame.PeekEventID(raw)
		m.report(schema.EventID(id), role, peekSender(raw), err)
		return err
	}
	spec, _ := m.codec.Registry().Lookup(msg.EventID)
	if !schema.IsPermitted(spec, role) {
		err := fmt.Errorf("%w: %s may not send %s", protocol.ErrPermissionDenied, role, spec)
		m.report(msg.EventID, role, msg.SenderID, err)
		return err
	}
	return m.dispatch(msg, role)
}

// dispatch invokes every subscriber for msg. The invocation list is fixed
// before the first handler runs; handlers removed mid-pass are skipped.
func (m *Multiplexer) dispatch(msg protocol.Message, role schema.Role) error {
	snapshot := slices.Clone(m.subs[msg.EventID])
	var errs []error
	for _, s := range snapshot {
		if !s.active {
			continue
		}
		if err := invoke(s, msg); err != nil {
			m.report(msg.EventID, role, msg.SenderID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invoke(s *subscription, msg protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handle=%d event=%d: panic: %v", protocol.ErrHandlerAborted, s.handle, s.event, r)
		}
	}()
	if herr := s.fn(msg); herr != nil {
		return fmt.Errorf("%w: handle=%d event=%d: %w", protocol.ErrHandlerAborted, s.handle, s.event, herr)
	}
	return nil
}

func (m *Multiplexer) report(id schema.EventID, role schema.Role, sender uint32, err error) {
	m.sink.Report(Diagnostic{
		Kind:     protocol.KindOf(err),
		EventID:  id,
		Role:     role,
		SenderID: sender,
		Err:      err,
	})
}

func peekSender(raw []byte) uint32 {
	h, err := frame.DecodeHeader(raw)
	if err != nil {
		return 0
	}
	return h.SenderID
}
