package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/colonyctl/internal/minigame"
	"github.com/danmuck/colonyctl/internal/mux"
	"github.com/danmuck/colonyctl/internal/observability"
	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
	"github.com/danmuck/colonyctl/internal/sequence"
	"github.com/danmuck/colonyctl/internal/simulator"
	"github.com/danmuck/colonyctl/internal/tracker"
)

var ErrNoGame = errors.New("session: no minigame running")

type Option func(*options)

type options struct {
	registry  *schema.Registry
	minigames *minigame.Registry
	metrics   *observability.Metrics
	sink      mux.Sink
	outbound  mux.Outbound
}

func WithRegistry(reg *schema.Registry) Option {
	return func(o *options) { o.registry = reg }
}

func WithMinigames(reg *minigame.Registry) Option {
	return func(o *options) { o.minigames = reg }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithSink(sink mux.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithOutbound ships online frames to a transport. Without it an online
// session buffers frames in its Outbox.
func WithOutbound(out mux.Outbound) Option {
	return func(o *options) { o.outbound = out }
}

// Session is one colony session.
type Session struct {
	cfg       Config
	loop      *Loop
	mux       *mux.Multiplexer
	tracker   *tracker.Tracker
	machine   *sequence.Machine
	sim       *simulator.Simulator
	minigames *minigame.Registry
	outbox    *Outbox
	group     *mux.Group

	game         minigame.Game
	serverClosed bool
	closed       bool
}

func New(cfg Config, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = schema.Default()
	}
	if o.minigames == nil {
		o.minigames = minigame.Builtin()
	}
	if o.sink == nil && o.metrics != nil {
		o.sink = observability.NewDiagnosticsSink(o.metrics, o.registry)
	}
	if cfg.Identity.Role == schema.RoleServer {
		return nil, fmt.Errorf("session: local participant cannot take the %s role", schema.RoleServer)
	}

	s := &Session{
		cfg:       cfg,
		loop:      NewLoop(cfg.LoopBuffer),
		minigames: o.minigames,
	}

	muxOpts := []mux.Option{mux.WithSink(o.sink)}
	if !cfg.Offline {
		out := o.outbound
		if out == nil {
			s.outbox = NewOutbox()
			out = s.outbox
		}
		muxOpts = append(muxOpts, mux.WithOutbound(out))
	}
	s.mux = mux.New(o.registry, cfg.Identity, muxOpts...)

	s.tracker = tracker.New(s.mux, cfg.OwnerID)
	s.machine = sequence.New(s.mux, sequence.WithHandPlacement(cfg.HandPlacement))
	s.group = s.mux.NewGroup()
	s.group.Subscribe(schema.LoadMinigame, s.onLoadMinigame)
	s.group.Subscribe(schema.ServerClosing, s.onServerClosing)
	s.group.Subscribe(schema.DebugInfo, s.onDebugInfo)
	s.group.Subscribe(schema.AsteroidsAsteroidSpawn, s.onAsteroidSpawn)
	s.group.Subscribe(schema.AsteroidsAsteroidImpact, s.onAsteroidImpact)
	s.group.Subscribe(schema.AsteroidsPlayerShoot, s.onPlayerShoot)
	for _, id := range []schema.EventID{
		schema.MinigameWon,
		schema.MinigameLost,
		schema.GenericMinigameUntimelyAbort,
		schema.SequenceReset,
	} {
		s.group.Subscribe(id, s.onMinigameEnded)
	}

	if o.metrics != nil {
		metrics := o.metrics
		s.machine.OnPhaseChange(func(from, to sequence.Phase) {
			metrics.RecordTransition(from.String(), to.String())
		})
	}

	if cfg.Offline {
		simOpts := []simulator.Option{
			simulator.WithTick(cfg.Tick),
			simulator.WithReturnToColony(s.onReturnToColony),
			simulator.WithMinigames(o.minigames),
		}
		if o.metrics != nil {
			metrics := o.metrics
			simOpts = append(simOpts, simulator.WithLobbyObserver(func(from, to simulator.LobbyPhase) {
				metrics.RecordLobbyTransition(from.String(), to.String())
			}))
		}
		s.sim = simulator.New(s.mux, simOpts...)
	}
	log.Info().
		Uint32("id", cfg.Identity.ID).
		Str("ign", cfg.Identity.IGN).
		Str("role", cfg.Identity.Role.String()).
		Bool("offline", cfg.Offline).
		Msg("session created")
	return s, nil
}

func (s *Session) Loop() *Loop { return s.loop }
func (s *Session) Mux() *mux.Multiplexer { return s.mux }
func (s *Session) Tracker() *tracker.Tracker { return s.tracker }
func (s *Session) Machine() *sequence.Machine { return s.machine }
func (s *Session) Simulator() *simulator.Simulator { return s.sim }

// Outbox is nil for offline sessions and for sessions given WithOutbound.
func (s *Session) Outbox() *Outbox { return s.outbox }

// Game returns the running minigame, if any.
func (s *Session) Game() (minigame.Game, bool) {
	return s.game, s.game != nil
}

func (s *Session) ServerClosed() bool { return s.serverClosed }

// Start brings up the local simulator of an offline session. Call it on the
// loop, or before Run.
func (s *Session) Start() error {
	if s.sim == nil {
		return nil
	}
	return s.sim.Start()
}

// Run starts the session and serves the loop until ctx ends. Offline
// sessions also drive the simulator tick. Start runs before the loop does, so
// Run must not be called while another goroutine serves the loop.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return fmt.Errorf("session start: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop.Run(ctx)
	})
	if s.sim != nil {
		g.Go(func() error {
			return s.sim.Run(ctx, func(fn func()) { s.loop.Post(fn) })
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Deliver hands an inbound frame from the transport to the loop.
func (s *Session) Deliver(raw []byte, role schema.Role) bool {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return s.loop.Post(func() {
		_ = s.mux.DispatchInbound(buf, role)
	})
}

// ReportOutcome announces the end of the running minigame. The game must
// have begun.
func (s *Session) ReportOutcome(won bool) error {
	if p := s.machine.CurrentPhase(); p != sequence.InMinigame {
		return fmt.Errorf("%w: report outcome in %s", sequence.ErrWrongPhase, p)
	}
	if s.game == nil {
		return ErrNoGame
	}
	id := schema.MinigameLost
	if won {
		id = schema.MinigameWon
	}
	if err := s.mux.EmitLocal(id, nil); err != nil {
		return err
	}
	s.game = nil
	return nil
}

// Shoot fires the local participant's shot into the running asteroid field and
// reports whether it hit.
func (s *Session) Shoot(x, y float64) (bool, error) {
	if p := s.machine.CurrentPhase(); p != sequence.InMinigame {
		return false, fmt.Errorf("%w: shoot in %s", sequence.ErrWrongPhase, p)
	}
	field, ok := s.game.(*minigame.AsteroidsGame)
	if !ok {
		return false, fmt.Errorf("%w: no asteroid field", ErrNoGame)
	}
	fields := field.Shoot(s.mux.Identity().ID, x, y)
	if err := s.mux.EmitLocal(schema.AsteroidsPlayerShoot, fields); err != nil {
		return false, err
	}
	return fields[schema.FieldHit].Bool, nil
}

// Close shuts the simulator down and releases every subscription. It must
// run on the loop, or after Run has returned.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.sim != nil {
		err = s.sim.Shutdown()
	}
	s.group.Close()
	s.machine.Close()
	s.tracker.Close()
	s.game = nil
	log.Info().Int("subscriptions", s.mux.Len()).Msg("session closed")
	return err
}

func (s *Session) onLoadMinigame(msg protocol.Message) error {
	if s.machine.CurrentPhase() != sequence.LoadingMinigame {
		return nil
	}
	req := protocol.LoadRequestFrom(msg)
	g, err := s.minigames.Load(req.MinigameID, req.DifficultyID)
	if err != nil {
		log.Warn().Err(err).Uint32("minigame", req.MinigameID).Uint32("difficulty", req.DifficultyID).Msg("session load failed")
		return s.machine.LoadFailed(err.Error())
	}
	s.game = g
	log.Info().Str("minigame", g.Variant().String()).Str("difficulty", g.Difficulty().Name).Msg("session loaded minigame")
	return s.machine.LoadSucceeded()
}

func (s *Session) onServerClosing(protocol.Message) error {
	s.serverClosed = true
	log.Info().Msg("server closing")
	return nil
}

func (s *Session) onDebugInfo(msg protocol.Message) error {
	log.Debug().
		Uint32("code", msg.Uint32(schema.FieldCode)).
		Str("message", msg.Text(schema.FieldMessage)).
		Msg("server debug info")
	return nil
}

func (s *Session) asteroids() (*minigame.AsteroidsGame, bool) {
	field, ok := s.game.(*minigame.AsteroidsGame)
	return field, ok && s.machine.CurrentPhase() == sequence.InMinigame
}

func (s *Session) onAsteroidSpawn(msg protocol.Message) error {
	if field, ok := s.asteroids(); ok {
		field.Track(msg)
	}
	return nil
}

func (s *Session) onAsteroidImpact(msg protocol.Message) error {
	if field, ok := s.asteroids(); ok {
		field.ApplyImpact(msg)
	}
	return nil
}

// onPlayerShoot mirrors other participants' shots; local shots were applied
// by Shoot.
func (s *Session) onPlayerShoot(msg protocol.Message) error {
	if msg.SenderID == s.mux.Identity().ID {
		return nil
	}
	if field, ok := s.asteroids(); ok {
		field.RecordShot(msg.Float(schema.FieldX), msg.Float(schema.FieldY), msg.Bool(schema.FieldHit))
	}
	return nil
}

// onMinigameEnded unloads the game once the sequence has left the minigame.
func (s *Session) onMinigameEnded(protocol.Message) error {
	if !s.machine.CurrentPhase().InProgress() {
		s.onReturnToColony()
	}
	return nil
}

func (s *Session) onReturnToColony() {
	if s.game != nil {
		log.Debug().Str("minigame", s.game.Variant().String()).Msg("session unloading minigame")
	}
	s.game = nil
}
