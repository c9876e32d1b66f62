package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/colonyctl/internal/minigame"
	"github.com/danmuck/colonyctl/internal/mux"
	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
	"github.com/danmuck/colonyctl/internal/sequence"
	"github.com/danmuck/colonyctl/internal/testutil/testlog"
	"github.com/danmuck/colonyctl/internal/tracker"
)

const ownerID = 1

type offline struct {
	t        *testing.T
	m        *mux.Multiplexer
	tr       *tracker.Tracker
	seq      *sequence.Machine
	sim      *Simulator
	server   []schema.EventID
	returned int
	lobby    [][2]LobbyPhase
}

func newOffline(t *testing.T, opts ...Option) *offline {
	t.Helper()
	testlog.Start(t)
	o := &offline{t: t}
	o.m = mux.New(schema.Default(), mux.Identity{ID: ownerID, IGN: "Host", Role: schema.RoleOwner})
	o.tr = tracker.New(o.m, ownerID)
	o.seq = sequence.New(o.m)
	o.sim = New(o.m, append([]Option{
		WithReturnToColony(func() { o.returned++ }),
		WithLobbyObserver(func(from, to LobbyPhase) {
			o.lobby = append(o.lobby, [2]LobbyPhase{from, to})
		}),
	}, opts...)...)
	o.sim.deliver = func(raw []byte) error {
		msg, err := o.m.Codec().Decode(raw)
		require.NoError(t, err)
		require.Equal(t, protocol.ServerSenderID, msg.SenderID)
		o.server = append(o.server, msg.EventID)
		return o.m.DispatchInbound(raw, schema.RoleServer)
	}
	require.NoError(t, o.sim.Start())
	return o
}

func (o *offline) tick() {
	o.t.Helper()
	require.NoError(o.t, o.sim.Tick())
}

func (o *offline) confirm() {
	o.t.Helper()
	require.NoError(o.t, o.seq.ConfirmDifficulty(protocol.Difficulty{MinigameID: 5, DifficultyID: 2, DifficultyName: "Hard"}))
}

func (o *offline) accept() {
	o.t.Helper()
	base := time.Now()
	for i, k := range "alksdj" {
		_, err := o.seq.Input(k, base.Add(time.Duration(i)*10*time.Millisecond))
		require.NoError(o.t, err)
	}
	require.Equal(o.t, sequence.WaitingScreen, o.seq.CurrentPhase())
}

func TestStartAnnouncesLocalParticipant(t *testing.T) {
	o := newOffline(t)
	assert.Equal(t, []schema.EventID{schema.PlayerJoined}, o.server)
	p, ok := o.tr.Participant(ownerID)
	require.True(t, ok)
	assert.Equal(t, schema.RoleOwner, p.Role)
	assert.Equal(t, "Host", p.IGN)
}

func TestOfflineRoundTrip(t *testing.T) {
	o := newOffline(t)

	o.confirm()
	assert.Equal(t, RoamingColony, o.sim.Phase(), "queued until the next tick")
	o.tick()
	assert.Equal(t, AwaitingParticipants, o.sim.Phase())

	o.accept()
	o.tick()
	assert.Equal(t, DeclareIntent, o.sim.Phase())
	assert.Equal(t, schema.PlayersDeclareIntentForMinigame, o.server[len(o.server)-1])

	require.NoError(t, o.seq.Ready())
	o.tick()
	assert.Equal(t, InMinigame, o.sim.Phase())
	assert.Equal(t, schema.LoadMinigame, o.server[len(o.server)-1])
	assert.Equal(t, sequence.LoadingMinigame, o.seq.CurrentPhase())
	req, ok := o.seq.LoadRequest()
	require.True(t, ok)
	assert.Equal(t, protocol.LoadRequest{MinigameID: 5, DifficultyID: 2}, req)

	require.NoError(t, o.seq.LoadSucceeded())
	o.tick()
	assert.Equal(t, sequence.InMinigame, o.seq.CurrentPhase())

	require.NoError(t, o.m.EmitLocal(schema.MinigameWon, nil))
	assert.Equal(t, sequence.ResultVictory, o.seq.CurrentPhase())
	o.tick()
	assert.Equal(t, 1, o.returned)
	assert.Equal(t, RoamingColony, o.sim.Phase())

	assert.Equal(t, []schema.EventID{
		schema.PlayerJoined,
		schema.PlayersDeclareIntentForMinigame,
		schema.LoadMinigame,
		schema.MinigameBegins,
	}, o.server)
	assert.Equal(t, [][2]LobbyPhase{
		{RoamingColony, AwaitingParticipants},
		{AwaitingParticipants, DeclareIntent},
		{DeclareIntent, InMinigame},
		{InMinigame, RoamingColony},
	}, o.lobby)
}

func TestBatchDrainsBeforeEmitting(t *testing.T) {
	o := newOffline(t)
	o.confirm()
	o.accept()
	assert.Equal(t, 2, o.sim.Queued())

	o.tick()
	assert.Zero(t, o.sim.Queued())
	assert.Equal(t, DeclareIntent, o.sim.Phase())
	assert.Equal(t, []schema.EventID{schema.PlayerJoined, schema.PlayersDeclareIntentForMinigame}, o.server)
}

func TestDeclineResetsLobby(t *testing.T) {
	o := newOffline(t)
	o.confirm()
	o.tick()
	require.NoError(t, o.seq.Decline())
	o.tick()
	assert.Equal(t, RoamingColony, o.sim.Phase())

	o.confirm()
	require.NoError(t, o.seq.SkipActivity())
	o.tick()
	assert.Equal(t, RoamingColony, o.sim.Phase())
	assert.Zero(t, o.returned)
}

func TestSequenceResetForgetsDifficulty(t *testing.T) {
	o := newOffline(t)
	o.confirm()
	o.accept()
	o.tick()
	require.Equal(t, DeclareIntent, o.sim.Phase())

	require.NoError(t, o.m.EmitLocal(schema.SequenceReset, nil))
	o.tick()
	assert.Equal(t, RoamingColony, o.sim.Phase())
	assert.Zero(t, o.returned)

	require.NoError(t, o.seq.ConfirmDifficulty(protocol.Difficulty{MinigameID: 5, DifficultyID: 1, DifficultyName: "Easy"}))
	o.accept()
	o.tick()
	require.NoError(t, o.seq.Ready())
	o.tick()
	req, ok := o.seq.LoadRequest()
	require.True(t, ok)
	assert.Equal(t, protocol.LoadRequest{MinigameID: 5, DifficultyID: 1}, req)
}

func TestAsteroidFieldOutlasted(t *testing.T) {
	def := minigame.AsteroidsDefinition()
	def.Base = minigame.AsteroidsSettings{
		ColonyHP:        10,
		AsteroidHealth:  1,
		SpawnInterval:   DefaultTick,
		TimeUntilImpact: 10 * DefaultTick,
		Duration:        2 * DefaultTick,
		AsteroidTypes:   []uint8{2},
	}
	def.Difficulties = []minigame.Difficulty[minigame.AsteroidsOverrides]{{ID: 1, Name: "Drill"}}
	reg, err := minigame.NewRegistry(def)
	require.NoError(t, err)

	o := newOffline(t, WithMinigames(reg))
	require.NoError(t, o.seq.ConfirmDifficulty(protocol.Difficulty{MinigameID: uint32(minigame.Asteroids), DifficultyID: 1, DifficultyName: "Drill"}))
	o.accept()
	o.tick()
	require.NoError(t, o.seq.Ready())
	o.tick()
	require.NoError(t, o.seq.LoadSucceeded())
	o.tick()
	require.Equal(t, sequence.InMinigame, o.seq.CurrentPhase())
	assert.Equal(t, []schema.EventID{schema.MinigameBegins, schema.AsteroidsAsteroidSpawn}, o.server[len(o.server)-2:])

	o.tick()
	assert.Equal(t, []schema.EventID{schema.AsteroidsAsteroidSpawn, schema.MinigameWon}, o.server[len(o.server)-2:])
	assert.Equal(t, sequence.ResultVictory, o.seq.CurrentPhase())
	assert.Equal(t, RoamingColony, o.sim.Phase())
	assert.Equal(t, 1, o.returned)

	n := len(o.server)
	o.tick()
	assert.Len(t, o.server, n, "field stopped")
}

func TestLoadFailureAbortsSession(t *testing.T) {
	o := newOffline(t)
	o.confirm()
	o.accept()
	require.NoError(t, o.seq.Ready())
	o.tick()
	require.Equal(t, sequence.LoadingMinigame, o.seq.CurrentPhase())

	require.NoError(t, o.seq.LoadFailed("no such variant"))
	assert.Equal(t, sequence.ResultAbort, o.seq.CurrentPhase())
	o.tick()

	assert.Equal(t, schema.GenericMinigameUntimelyAbort, o.server[len(o.server)-1])
	assert.Equal(t, RoamingColony, o.sim.Phase())
	assert.Equal(t, 1, o.returned)
	assert.Equal(t, "no such variant", o.seq.AbortReason())
}

func TestEchoesIgnored(t *testing.T) {
	o := newOffline(t)
	raw, err := o.m.Codec().Encode(protocol.NewMessage(protocol.ServerSenderID, schema.MinigameLost, nil))
	require.NoError(t, err)
	require.NoError(t, o.m.DispatchInbound(raw, schema.RoleServer))
	assert.Zero(t, o.sim.Queued())
}

func TestShutdownReleasesEverything(t *testing.T) {
	o := newOffline(t)
	before := o.m.Len()
	o.confirm()
	require.Equal(t, 1, o.sim.Queued())

	require.NoError(t, o.sim.Shutdown())
	assert.Equal(t, schema.ServerClosing, o.server[len(o.server)-1])
	assert.Equal(t, before-len(clientEvents), o.m.Len())
	assert.Zero(t, o.sim.Queued())
	require.NoError(t, o.sim.Tick())
	require.NoError(t, o.sim.Shutdown())
}

func TestRunPostsTicks(t *testing.T) {
	o := newOffline(t)
	o.sim.tick = time.Millisecond
	o.confirm()

	ctx, cancel := context.WithCancel(context.Background())
	posted := make(chan func())
	done := make(chan error, 1)
	go func() {
		done <- o.sim.Run(ctx, func(fn func()) {
			select {
			case posted <- fn:
			case <-ctx.Done():
			}
		})
	}()

	select {
	case fn := <-posted:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("no tick posted")
	}
	assert.Equal(t, AwaitingParticipants, o.sim.Phase())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
