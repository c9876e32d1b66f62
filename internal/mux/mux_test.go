package mux

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
	"github.com/danmuck/colonyctl/internal/testutil/testlog"
)

type recordingSink struct {
	diags []Diagnostic
}

func (r *recordingSink) Report(d Diagnostic) { r.diags = append(r.diags, d) }

func newTestMux(t *testing.T, role schema.Role, opts ...Option) (*Multiplexer, *recordingSink) {
	t.Helper()
	testlog.Start(t)
	sink := &recordingSink{}
	opts = append(opts, WithSink(sink))
	return New(schema.Default(), Identity{ID: 7, IGN: "Nova", Role: role}, opts...), sink
}

func encode(t *testing.T, m *Multiplexer, sender uint32, id schema.EventID, fields protocol.Fields) []byte {
	t.Helper()
	raw, err := m.Codec().Encode(protocol.NewMessage(sender, id, fields))
	require.NoError(t, err)
	return raw
}

func TestDispatchIsolatesFailingHandler(t *testing.T) {
	m, sink := newTestMux(t, schema.RoleOwner)
	var calls []string
	m.Subscribe(schema.PlayerJoined, func(protocol.Message) error { calls = append(calls, "A"); return nil })
	m.Subscribe(schema.PlayerJoined, func(protocol.Message) error { calls = append(calls, "B"); return errors.New("boom") })
	m.Subscribe(schema.PlayerJoined, func(protocol.Message) error { calls = append(calls, "C"); return nil })

	raw := encode(t, m, protocol.ServerSenderID, schema.PlayerJoined, protocol.PlayerInfo{ID: 7, IGN: "Nova"}.Fields())
	err := m.DispatchInbound(raw, schema.RoleServer)

	assert.Equal(t, []string{"A", "B", "C"}, calls)
	assert.ErrorIs(t, err, protocol.ErrHandlerAborted)
	require.Len(t, sink.diags, 1)
	assert.Equal(t, protocol.KindHandlerAborted, sink.diags[0].Kind)
}

func TestDispatchRecoversPanickingHandler(t *testing.T) {
	m, sink := newTestMux(t, schema.RoleOwner)
	var after int
	m.Subscribe(schema.MinigameBegins, func(protocol.Message) error { panic("render crashed") })
	m.Subscribe(schema.MinigameBegins, func(protocol.Message) error { after++; return nil })

	err := m.DispatchInbound(encode(t, m, protocol.ServerSenderID, schema.MinigameBegins, nil), schema.RoleServer)
	assert.ErrorIs(t, err, protocol.ErrHandlerAborted)
	assert.Equal(t, 1, after)
	require.Len(t, sink.diags, 1)
	assert.Contains(t, sink.diags[0].Err.Error(), "render crashed")

	// the multiplexer keeps serving afterwards
	require.Error(t, m.DispatchInbound(encode(t, m, protocol.ServerSenderID, schema.MinigameBegins, nil), schema.RoleServer))
	assert.Equal(t, 2, after)
}

func TestDispatchInboundEnforcesPermissions(t *testing.T) {
	m, sink := newTestMux(t, schema.RoleOwner)
	roles := []schema.Role{schema.RoleServer, schema.RoleOwner, schema.RoleGuest}
	for _, spec := range schema.Default().All() {
		fields := protocol.Fields{}
		for _, f := range spec.Structure {
			switch {
			case f.Type == schema.TypeString:
				fields[f.Name] = protocol.Text("x")
			case f.Type == schema.TypeBool:
				fields[f.Name] = protocol.Bool(true)
			case f.Type.IsFloat():
				fields[f.Name] = protocol.Float(1)
			case f.Type.IsSigned():
				fields[f.Name] = protocol.Int(1)
			default:
				fields[f.Name] = protocol.Uint(1)
			}
		}
		raw := encode(t, m, 1, spec.ID, fields)
		for _, role := range roles {
			invoked := 0
			h := m.Subscribe(spec.ID, func(protocol.Message) error { invoked++; return nil })
			before := len(sink.diags)
			err := m.DispatchInbound(raw, role)
			if spec.Permissions.Allows(role) {
				require.NoError(t, err, "%s from %s", spec, role)
				assert.Equal(t, 1, invoked, "%s from %s", spec, role)
			} else {
				assert.ErrorIs(t, err, protocol.ErrPermissionDenied, "%s from %s", spec, role)
				assert.Equal(t, 0, invoked, "%s from %s", spec, role)
				require.Len(t, sink.diags, before+1)
				assert.Equal(t, protocol.KindPermissionDenied, sink.diags[before].Kind)
			}
			m.Unsubscribe(h)
		}
	}
}

func TestDispatchInboundDropsMalformed(t *testing.T) {
	m, sink := newTestMux(t, schema.RoleOwner)
	invoked := 0
	m.Subscribe(schema.PlayerJoined, func(protocol.Message) error { invoked++; return nil })

	err := m.DispatchInbound([]byte{0, 0, 0, 1, 0, 0, 0, byte(schema.PlayerJoined), 0}, schema.RoleServer)
	assert.ErrorIs(t, err, protocol.ErrUndersized)
	err = m.DispatchInbound([]byte{0, 0, 0, 1, 0, 0, 0, 200}, schema.RoleServer)
	assert.ErrorIs(t, err, protocol.ErrUnknownEvent)

	assert.Equal(t, 0, invoked)
	require.Len(t, sink.diags, 2)
	assert.Equal(t, protocol.KindUndersized, sink.diags[0].Kind)
	assert.Equal(t, schema.PlayerJoined, sink.diags[0].EventID)
	assert.Equal(t, protocol.KindUnknownEvent, sink.diags[1].Kind)
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	m, _ := newTestMux(t, schema.RoleOwner)
	var calls []string
	var hB, hC Handle
	m.Subscribe(schema.SequenceReset, func(protocol.Message) error {
		calls = append(calls, "A")
		m.Unsubscribe(hC)
		return nil
	})
	hB = m.Subscribe(schema.SequenceReset, func(protocol.Message) error {
		calls = append(calls, "B")
		m.Unsubscribe(hB, hB)
		return nil
	})
	hC = m.Subscribe(schema.SequenceReset, func(protocol.Message) error {
		calls = append(calls, "C")
		return nil
	})

	raw := encode(t, m, protocol.ServerSenderID, schema.SequenceReset, nil)
	require.NoError(t, m.DispatchInbound(raw, schema.RoleServer))
	assert.Equal(t, []string{"A", "B"}, calls)

	calls = nil
	require.NoError(t, m.DispatchInbound(raw, schema.RoleServer))
	assert.Equal(t, []string{"A"}, calls)
	assert.Equal(t, 1, m.Len())

	m.Unsubscribe(hB, hC, Handle(999))
	assert.Equal(t, 1, m.Len())
}

func TestSubscribeDuringDispatchWaitsForNextPass(t *testing.T) {
	m, _ := newTestMux(t, schema.RoleOwner)
	late := 0
	m.Subscribe(schema.SequenceReset, func(protocol.Message) error {
		m.Subscribe(schema.SequenceReset, func(protocol.Message) error { late++; return nil })
		return nil
	})
	raw := encode(t, m, protocol.ServerSenderID, schema.SequenceReset, nil)
	require.NoError(t, m.DispatchInbound(raw, schema.RoleServer))
	assert.Equal(t, 0, late)
	require.NoError(t, m.DispatchInbound(raw, schema.RoleServer))
	assert.Equal(t, 1, late)
}

func TestEmitLocalSendsAndDispatches(t *testing.T) {
	var sent [][]byte
	out := OutboundFunc(func(raw []byte) error { sent = append(sent, raw); return nil })
	m, _ := newTestMux(t, schema.RoleGuest, WithOutbound(out))

	var got []protocol.Message
	m.Subscribe(schema.PlayerJoinActivity, func(msg protocol.Message) error { got = append(got, msg); return nil })

	require.NoError(t, m.EmitLocal(schema.PlayerJoinActivity, protocol.PlayerInfo{ID: 7, IGN: "Nova"}.Fields()))
	require.Len(t, got, 1)
	assert.Equal(t, uint32(7), got[0].SenderID)
	assert.Equal(t, protocol.PlayerInfo{ID: 7, IGN: "Nova"}, protocol.PlayerInfoFrom(got[0]))
	require.Len(t, sent, 1)

	decoded, err := m.Codec().Decode(sent[0])
	require.NoError(t, err)
	assert.Equal(t, got[0], decoded)
}

func TestEmitLocalDispatchesCanonicalValues(t *testing.T) {
	var sent [][]byte
	out := OutboundFunc(func(raw []byte) error { sent = append(sent, raw); return nil })
	m, _ := newTestMux(t, schema.RoleOwner, WithOutbound(out))

	var local protocol.Message
	m.Subscribe(schema.DifficultyConfirmedForMinigame, func(msg protocol.Message) error { local = msg; return nil })
	var shot protocol.Message
	m.Subscribe(schema.AsteroidsPlayerShoot, func(msg protocol.Message) error { shot = msg; return nil })

	require.NoError(t, m.EmitLocal(schema.DifficultyConfirmedForMinigame, protocol.Fields{
		schema.FieldMinigameID:     protocol.Int(5),
		schema.FieldDifficultyID:   protocol.Int(2),
		schema.FieldDifficultyName: protocol.Text("Hard"),
	}))
	assert.Equal(t, protocol.KindUint, local.Fields[schema.FieldMinigameID].Kind)
	assert.Equal(t, uint32(5), local.Uint32(schema.FieldMinigameID))
	assert.Equal(t, protocol.Difficulty{MinigameID: 5, DifficultyID: 2, DifficultyName: "Hard"}, protocol.DifficultyFrom(local))

	require.NoError(t, m.EmitLocal(schema.AsteroidsPlayerShoot, protocol.Fields{
		schema.FieldPlayerID: protocol.Uint32(7),
		schema.FieldX:        protocol.Float(1.5),
		schema.FieldY:        protocol.Float(-2.25),
		schema.FieldHit:      protocol.Bool(true),
	}))
	assert.True(t, shot.Bool(schema.FieldHit))

	require.Len(t, sent, 2)
	remote, err := m.Codec().Decode(sent[0])
	require.NoError(t, err)
	assert.Equal(t, remote, local)
	remote, err = m.Codec().Decode(sent[1])
	require.NoError(t, err)
	assert.Equal(t, remote, shot)
}

func TestEmitLocalRejectsDeniedAndInvalid(t *testing.T) {
	sent := 0
	out := OutboundFunc(func([]byte) error { sent++; return nil })
	m, sink := newTestMux(t, schema.RoleGuest, WithOutbound(out))
	invoked := 0
	m.Subscribe(schema.DifficultyConfirmedForMinigame, func(protocol.Message) error { invoked++; return nil })

	err := m.EmitLocal(schema.DifficultyConfirmedForMinigame, protocol.Difficulty{MinigameID: 1}.Fields())
	assert.ErrorIs(t, err, protocol.ErrPermissionDenied)

	err = m.EmitLocal(schema.PlayerMove, protocol.Fields{
		schema.FieldPlayerID:         protocol.Int(-1),
		schema.FieldColonyLocationID: protocol.Uint(1),
	})
	assert.ErrorIs(t, err, protocol.ErrFieldRange)

	err = m.EmitLocal(schema.EventID(500), nil)
	assert.ErrorIs(t, err, protocol.ErrUnknownEvent)

	assert.Equal(t, 0, invoked)
	assert.Equal(t, 0, sent)
	require.Len(t, sink.diags, 3)
	assert.Equal(t, protocol.KindPermissionDenied, sink.diags[0].Kind)
	assert.Equal(t, protocol.KindFieldRange, sink.diags[1].Kind)
	assert.Equal(t, protocol.KindUnknownEvent, sink.diags[2].Kind)
}

func TestEmitLocalOutboundFailureStillDispatches(t *testing.T) {
	out := OutboundFunc(func([]byte) error { return errors.New("socket closed") })
	m, _ := newTestMux(t, schema.RoleOwner, WithOutbound(out))
	invoked := 0
	m.Subscribe(schema.SequenceReset, func(protocol.Message) error { invoked++; return nil })

	err := m.EmitLocal(schema.SequenceReset, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket closed")
	assert.Equal(t, 1, invoked)
}

func TestGroupReleasesEverything(t *testing.T) {
	m, _ := newTestMux(t, schema.RoleOwner)
	other := m.Subscribe(schema.PlayerLeft, func(protocol.Message) error { return nil })

	g := m.NewGroup()
	g.Subscribe(schema.PlayerJoined, func(protocol.Message) error { return nil })
	g.Subscribe(schema.PlayerLeft, func(protocol.Message) error { return nil })
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 3, m.Len())

	g.Close()
	g.Close()
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, Handle(0), g.Subscribe(schema.PlayerJoined, func(protocol.Message) error { return nil }))
	assert.Equal(t, 1, m.Len())

	m.Unsubscribe(other)
	assert.Equal(t, 0, m.Len())
}
