package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/colonyctl/internal/mux"
	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
	"github.com/danmuck/colonyctl/internal/testutil/testlog"
)

type harness struct {
	t *testing.T
	m *mux.Multiplexer
}

func newHarness(t *testing.T) (*harness, *Tracker) {
	t.Helper()
	testlog.Start(t)
	m := mux.New(schema.Default(), mux.Identity{ID: 1, IGN: "Host", Role: schema.RoleOwner})
	return &harness{t: t, m: m}, New(m, 1)
}

func (h *harness) server(id schema.EventID, fields protocol.Fields) {
	h.t.Helper()
	raw, err := h.m.Codec().Encode(protocol.NewMessage(protocol.ServerSenderID, id, fields))
	require.NoError(h.t, err)
	require.NoError(h.t, h.m.DispatchInbound(raw, schema.RoleServer))
}

func (h *harness) guest(sender uint32, id schema.EventID, fields protocol.Fields) {
	h.t.Helper()
	raw, err := h.m.Codec().Encode(protocol.NewMessage(sender, id, fields))
	require.NoError(h.t, err)
	require.NoError(h.t, h.m.DispatchInbound(raw, schema.RoleGuest))
}

func TestJoinOptInLeave(t *testing.T) {
	h, tr := newHarness(t)
	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 7, IGN: "Nova"}.Fields())
	h.guest(7, schema.PlayerJoinActivity, protocol.PlayerInfo{ID: 7, IGN: "Nova"}.Fields())

	all := tr.Participants()
	require.Len(t, all, 1)
	assert.Equal(t, Participant{ID: 7, IGN: "Nova", Role: schema.RoleGuest, Participation: OptIn}, all[0])
	assert.Equal(t, 1, tr.Count(OptIn))

	h.server(schema.PlayerLeft, protocol.PlayerInfo{ID: 7, IGN: "Nova"}.Fields())
	assert.Empty(t, tr.Participants())
	_, ok := tr.Participant(7)
	assert.False(t, ok)
}

func TestOwnerRoleAndJoinOrder(t *testing.T) {
	h, tr := newHarness(t)
	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 9, IGN: "Vega"}.Fields())
	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 1, IGN: "Host"}.Fields())
	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 4, IGN: "Lyra"}.Fields())
	// duplicate delivery only refreshes the name
	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 9, IGN: "Vega II"}.Fields())

	all := tr.Participants()
	require.Len(t, all, 3)
	assert.Equal(t, []uint32{9, 1, 4}, []uint32{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "Vega II", all[0].IGN)
	assert.Equal(t, schema.RoleOwner, all[1].Role)
	assert.Equal(t, schema.RoleGuest, all[2].Role)

	h.server(schema.PlayerLeft, protocol.PlayerInfo{ID: 1, IGN: "Host"}.Fields())
	all = tr.Participants()
	assert.Equal(t, []uint32{9, 4}, []uint32{all[0].ID, all[1].ID})
}

func TestDeclineAndResetIdempotence(t *testing.T) {
	h, tr := newHarness(t)
	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 7, IGN: "Nova"}.Fields())
	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 8, IGN: "Orion"}.Fields())
	h.guest(7, schema.PlayerJoinActivity, protocol.PlayerInfo{ID: 7, IGN: "Nova"}.Fields())
	h.guest(8, schema.PlayerDeclineActivity, protocol.PlayerInfo{ID: 8, IGN: "Orion"}.Fields())

	assert.Equal(t, 1, tr.Count(OptIn))
	assert.Equal(t, 1, tr.Count(OptOut))
	require.Len(t, tr.Participating(), 1)
	assert.Equal(t, uint32(7), tr.Participating()[0].ID)

	h.server(schema.SequenceReset, nil)
	once := tr.Participants()
	h.server(schema.SequenceReset, nil)
	twice := tr.Participants()

	assert.Equal(t, once, twice)
	assert.Equal(t, 2, tr.Count(Undecided))
}

func TestUntrackedAndMove(t *testing.T) {
	h, tr := newHarness(t)
	h.guest(42, schema.PlayerJoinActivity, protocol.PlayerInfo{ID: 42, IGN: "Ghost"}.Fields())
	h.server(schema.PlayerLeft, protocol.PlayerInfo{ID: 42, IGN: "Ghost"}.Fields())
	assert.Empty(t, tr.Participants())

	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 7, IGN: "Nova"}.Fields())
	h.guest(7, schema.PlayerMove, protocol.Move{PlayerID: 7, ColonyLocationID: 3}.Fields())
	p, ok := tr.Participant(7)
	require.True(t, ok)
	assert.Equal(t, uint32(3), p.LocationID)
}

func TestSnapshotsAreCopies(t *testing.T) {
	h, tr := newHarness(t)
	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 7, IGN: "Nova"}.Fields())
	snap := tr.Participants()
	snap[0].Participation = OptOut
	p, _ := tr.Participant(7)
	assert.Equal(t, Undecided, p.Participation)
}

func TestCloseStopsReducers(t *testing.T) {
	h, tr := newHarness(t)
	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 7, IGN: "Nova"}.Fields())
	tr.Close()
	assert.Equal(t, 0, h.m.Len())
	h.server(schema.PlayerJoined, protocol.PlayerInfo{ID: 8, IGN: "Orion"}.Fields())
	assert.Len(t, tr.Participants(), 1)
}
