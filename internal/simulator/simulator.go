// Package simulator is a same-process stand-in for the authoritative peer. It
// consumes client-originated events, applies the lobby rules a real server
// would, and delivers server-originated events through the same wire path a
// remote server would use.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/colonyctl/internal/minigame"
	"github.com/danmuck/colonyctl/internal/mux"
	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

const DefaultTick = 100 * time.Millisecond

type LobbyPhase uint8

const (
	RoamingColony LobbyPhase = iota
	AwaitingParticipants
	DeclareIntent
	InMinigame
)

func (p LobbyPhase) String() string {
	switch p {
	case RoamingColony:
		return "RoamingColony"
	case AwaitingParticipants:
		return "AwaitingParticipants"
	case DeclareIntent:
		return "DeclareIntent"
	case InMinigame:
		return "InMinigame"
	default:
		return fmt.Sprintf("LobbyPhase(%d)", uint8(p))
	}
}

// Deliver hands an encoded server-originated buffer to the client side.
type Deliver func(raw []byte) error

type Option func(*Simulator)

func WithTick(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithDeliver replaces the default delivery, which dispatches inbound on the
// simulator's own multiplexer with the server role.
func WithDeliver(fn Deliver) Option {
	return func(s *Simulator) {
		if fn != nil {
			s.deliver = fn
		}
	}
}

// WithReturnToColony sets the callback invoked when a minigame ends.
func WithReturnToColony(fn func()) Option {
	return func(s *Simulator) {
		s.returnToColony = fn
	}
}

// WithMinigames lets the simulator play the authoritative side of variants
// that have one. Without it a minigame only ends on a client report.
func WithMinigames(reg *minigame.Registry) Option {
	return func(s *Simulator) {
		s.minigames = reg
	}
}

func WithLobbyObserver(fn func(from, to LobbyPhase)) Option {
	return func(s *Simulator) {
		s.observers = append(s.observers, fn)
	}
}

// Simulator is the local authoritative peer. Like the multiplexer it is not
// safe for concurrent use; Run posts ticks onto the caller's loop.
type Simulator struct {
	m              *mux.Multiplexer
	group          *mux.Group
	tick           time.Duration
	deliver        Deliver
	returnToColony func()
	observers      []func(from, to LobbyPhase)
	minigames      *minigame.Registry

	running    bool
	phase      LobbyPhase
	queue      []protocol.Message
	difficulty protocol.Difficulty
	field      *minigame.AsteroidsGame
}

func New(m *mux.Multiplexer, opts ...Option) *Simulator {
	s := &Simulator{m: m, tick: DefaultTick}
	s.deliver = func(raw []byte) error {
		return s.m.DispatchInbound(raw, schema.RoleServer)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var clientEvents = []schema.EventID{
	schema.DifficultyConfirmedForMinigame,
	schema.PlayerJoinActivity,
	schema.PlayerDeclineActivity,
	schema.PlayerAbortingMinigame,
	schema.PlayerReadyForMinigame,
	schema.PlayerLoadComplete,
	schema.PlayerLoadFailure,
	schema.MinigameWon,
	schema.MinigameLost,
	schema.GenericMinigameUntimelyAbort,
	schema.SequenceReset,
	schema.AsteroidsPlayerShoot,
}

// Start subscribes to client events and announces the local participant.
// Calling Start on a running simulator is a no-op.
func (s *Simulator) Start() error {
	if s.running {
		return nil
	}
	s.running = true
	s.group = s.m.NewGroup()
	for _, id := range clientEvents {
		s.group.Subscribe(id, s.enqueue)
	}
	self := s.m.Identity()
	log.Info().Uint32("id", self.ID).Str("ign", self.IGN).Msg("simulator started")
	return s.emit(schema.PlayerJoined, protocol.PlayerInfo{ID: self.ID, IGN: self.IGN}.Fields())
}

// Shutdown announces ServerClosing, releases every subscription and
// discards queued events.
func (s *Simulator) Shutdown() error {
	if !s.running {
		return nil
	}
	err := s.emit(schema.ServerClosing, nil)
	s.group.Close()
	s.group = nil
	s.queue = nil
	s.running = false
	s.reset()
	log.Info().Msg("simulator shut down")
	return err
}

func (s *Simulator) Phase() LobbyPhase {
	return s.phase
}

// Queued returns the number of events awaiting the next tick.
func (s *Simulator) Queued() int {
	return len(s.queue)
}

func (s *Simulator) enqueue(msg protocol.Message) error {
	if msg.SenderID == protocol.ServerSenderID {
		return nil
	}
	s.queue = append(s.queue, msg)
	return nil
}

// Tick drains the whole queue in FIFO order, advances a running asteroid
// field by one tick, then delivers the server events both produced.
func (s *Simulator) Tick() error {
	if !s.running {
		return nil
	}
	batch := s.queue
	s.queue = nil

	var out []protocol.Message
	for _, msg := range batch {
		out = append(out, s.apply(msg)...)
	}
	out = append(out, s.stepField()...)

	var errs []error
	for _, msg := range out {
		if err := s.emit(msg.EventID, msg.Fields); err != nil {
			errs = append(errs, err)
		}
	}
	if id, over := s.fieldOutcome(); over {
		s.backToColony(id)
	}
	return errors.Join(errs...)
}

// Run posts Tick onto the session loop every tick until ctx ends.
func (s *Simulator) Run(ctx context.Context, post func(func())) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			post(func() {
				if err := s.Tick(); err != nil {
					log.Warn().Err(err).Msg("simulator tick")
				}
			})
		}
	}
}

func server(id schema.EventID, fields protocol.Fields) protocol.Message {
	return protocol.NewMessage(protocol.ServerSenderID, id, fields)
}

// apply advances the lobby for one client event and returns the server
// events to deliver once the batch is drained.
func (s *Simulator) apply(msg protocol.Message) []protocol.Message {
	switch msg.EventID {
	case schema.MinigameWon, schema.MinigameLost, schema.GenericMinigameUntimelyAbort:
		s.backToColony(msg.EventID)
		return nil
	case schema.SequenceReset:
		log.Debug().Uint32("sender", msg.SenderID).Msg("simulator sequence reset")
		s.reset()
		return nil
	case schema.AsteroidsPlayerShoot:
		if s.field != nil && s.phase == InMinigame {
			s.field.RecordShot(msg.Float(schema.FieldX), msg.Float(schema.FieldY), msg.Bool(schema.FieldHit))
		}
		return nil
	}

	switch s.phase {
	case RoamingColony:
		if msg.EventID == schema.DifficultyConfirmedForMinigame {
			s.difficulty = protocol.DifficultyFrom(msg)
			s.setPhase(AwaitingParticipants)
			return nil
		}
	case AwaitingParticipants:
		switch msg.EventID {
		case schema.PlayerJoinActivity:
			s.setPhase(DeclareIntent)
			return []protocol.Message{server(schema.PlayersDeclareIntentForMinigame, nil)}
		case schema.PlayerAbortingMinigame, schema.PlayerDeclineActivity:
			s.setPhase(RoamingColony)
			return nil
		}
	case DeclareIntent:
		if msg.EventID == schema.PlayerReadyForMinigame {
			s.setPhase(InMinigame)
			req := protocol.LoadRequest{MinigameID: s.difficulty.MinigameID, DifficultyID: s.difficulty.DifficultyID}
			return []protocol.Message{server(schema.LoadMinigame, req.Fields())}
		}
	case InMinigame:
		switch msg.EventID {
		case schema.PlayerLoadComplete:
			s.startField()
			return []protocol.Message{server(schema.MinigameBegins, nil)}
		case schema.PlayerLoadFailure:
			f := protocol.FailureFrom(msg)
			s.backToColony(msg.EventID)
			return []protocol.Message{server(schema.GenericMinigameUntimelyAbort, f.Fields())}
		}
	}
	log.Debug().
		Uint32("event", uint32(msg.EventID)).
		Uint32("sender", msg.SenderID).
		Str("lobby", s.phase.String()).
		Msg("simulator ignoring event")
	return nil
}

// startField loads the asteroid field for the confirmed difficulty once the
// client reports the game loaded.
func (s *Simulator) startField() {
	if s.minigames == nil || s.field != nil {
		return
	}
	g, err := s.minigames.Load(s.difficulty.MinigameID, s.difficulty.DifficultyID)
	if err != nil {
		log.Debug().Err(err).Msg("simulator has no authoritative game")
		return
	}
	if field, ok := g.(*minigame.AsteroidsGame); ok {
		s.field = field
		log.Debug().Str("difficulty", field.Difficulty().Name).Msg("simulator asteroid field started")
	}
}

// stepField advances the asteroid field by one tick. Once the colony falls or
// outlasts the field the outcome follows the field events; Tick returns to
// the colony after delivering them.
func (s *Simulator) stepField() []protocol.Message {
	if s.field == nil || s.phase != InMinigame {
		return nil
	}
	var out []protocol.Message
	for _, e := range s.field.Step(s.tick) {
		out = append(out, server(e.Event, e.Fields))
	}
	if id, over := s.fieldOutcome(); over {
		out = append(out, server(id, nil))
	}
	return out
}

func (s *Simulator) fieldOutcome() (schema.EventID, bool) {
	switch {
	case s.field == nil:
		return 0, false
	case s.field.Lost():
		return schema.MinigameLost, true
	case s.field.Won():
		return schema.MinigameWon, true
	}
	return 0, false
}

func (s *Simulator) backToColony(cause schema.EventID) {
	log.Debug().Uint32("event", uint32(cause)).Msg("simulator returning to colony")
	if s.returnToColony != nil {
		s.returnToColony()
	}
	s.reset()
}

func (s *Simulator) reset() {
	s.difficulty = protocol.Difficulty{}
	s.field = nil
	s.setPhase(RoamingColony)
}

func (s *Simulator) setPhase(to LobbyPhase) {
	from := s.phase
	if from == to {
		return
	}
	s.phase = to
	log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("simulator lobby")
	for _, fn := range s.observers {
		fn(from, to)
	}
}

func (s *Simulator) emit(id schema.EventID, fields protocol.Fields) error {
	raw, err := s.m.Codec().Encode(server(id, fields))
	if err != nil {
		return fmt.Errorf("simulator: encode %d: %w", id, err)
	}
	return s.deliver(raw)
}
