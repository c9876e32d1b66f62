package sequence

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/colonyctl/internal/mux"
	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

var ErrWrongPhase = errors.New("sequence: operation not valid in current phase")

type Phase uint8

const (
	Roaming Phase = iota
	HandPlacementCheck
	WaitingScreen
	LoadingMinigame
	InMinigame
	ResultVictory
	ResultDefeat
	ResultAbort
)

func (p Phase) String() string {
	switch p {
	case Roaming:
		return "ROAMING"
	case HandPlacementCheck:
		return "HAND_PLACEMENT_CHECK"
	case WaitingScreen:
		return "WAITING_SCREEN"
	case LoadingMinigame:
		return "LOADING_MINIGAME"
	case InMinigame:
		return "IN_MINIGAME"
	case ResultVictory:
		return "RESULT_VICTORY"
	case ResultDefeat:
		return "RESULT_DEFEAT"
	case ResultAbort:
		return "RESULT_ABORT"
	default:
		return fmt.Sprintf("PHASE(%d)", uint8(p))
	}
}

func (p Phase) IsResult() bool {
	return p == ResultVictory || p == ResultDefeat || p == ResultAbort
}

// InProgress reports whether a minigame sequence is underway.
func (p Phase) InProgress() bool {
	return p != Roaming && !p.IsResult()
}

// View tells the rendering collaborator what to show for the current phase.
type View struct {
	Phase     Phase
	Component string
	Pending   *protocol.Difficulty
	Chord     string
	Done      int
	Total     int
	Reason    string
}

var components = map[Phase]string{
	Roaming:            "colony",
	HandPlacementCheck: "hand-placement",
	WaitingScreen:      "waiting-screen",
	LoadingMinigame:    "loading",
	InMinigame:         "minigame",
	ResultVictory:      "victory",
	ResultDefeat:       "defeat",
	ResultAbort:        "abort",
}

type PhaseChangeFunc func(from, to Phase)

type Option func(*Machine)

func WithHandPlacement(cfg HandPlacementConfig) Option {
	return func(s *Machine) {
		s.checker = NewChecker(cfg)
	}
}

// WithClock overrides the time source Tick falls back to when given a zero
// time.
func WithClock(now func() time.Time) Option {
	return func(s *Machine) {
		if now != nil {
			s.now = now
		}
	}
}

// Machine is the session sequencing state machine.
type Machine struct {
	m         *mux.Multiplexer
	group     *mux.Group
	checker   *Checker
	now       func() time.Time
	phase     Phase
	pending   *protocol.Difficulty
	load      *protocol.LoadRequest
	reason    string
	observers []PhaseChangeFunc
}

func New(m *mux.Multiplexer, opts ...Option) *Machine {
	s := &Machine{
		m:       m,
		group:   m.NewGroup(),
		checker: NewChecker(DefaultHandPlacement()),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.group.Subscribe(schema.DifficultyConfirmedForMinigame, s.onDifficultyConfirmed)
	s.group.Subscribe(schema.LoadMinigame, s.onLoadMinigame)
	s.group.Subscribe(schema.MinigameBegins, s.onMinigameBegins)
	s.group.Subscribe(schema.MinigameWon, s.onWon)
	s.group.Subscribe(schema.MinigameLost, s.onLost)
	s.group.Subscribe(schema.PlayerLoadFailure, s.onLoadFailure)
	s.group.Subscribe(schema.GenericMinigameUntimelyAbort, s.onUntimelyAbort)
	s.group.Subscribe(schema.SequenceReset, s.onReset)
	return s
}

// Close releases the machine's subscriptions.
func (s *Machine) Close() {
	s.group.Close()
}

// OnPhaseChange registers an observer called after every transition.
func (s *Machine) OnPhaseChange(fn PhaseChangeFunc) {
	s.observers = append(s.observers, fn)
}

func (s *Machine) CurrentPhase() Phase {
	return s.phase
}

// Pending returns the confirmed difficulty awaiting play, if any.
func (s *Machine) Pending() (protocol.Difficulty, bool) {
	if s.pending == nil {
		return protocol.Difficulty{}, false
	}
	return *s.pending, true
}

// LoadRequest returns the request received with LoadMinigame, if any.
func (s *Machine) LoadRequest() (protocol.LoadRequest, bool) {
	if s.load == nil {
		return protocol.LoadRequest{}, false
	}
	return *s.load, true
}

func (s *Machine) AbortReason() string {
	return s.reason
}

func (s *Machine) View() View {
	v := View{
		Phase:     s.phase,
		Component: components[s.phase],
		Reason:    s.reason,
	}
	if s.pending != nil {
		d := *s.pending
		v.Pending = &d
	}
	if s.phase == HandPlacementCheck {
		v.Done, v.Total = s.checker.Progress()
		if chord, ok := s.checker.Current(); ok {
			v.Chord = chord.String()
		}
	}
	return v
}

func (s *Machine) transition(to Phase, cause string) {
	from := s.phase
	if from == to {
		return
	}
	s.phase = to
	log.Debug().Str("from", from.String()).Str("to", to.String()).Str("cause", cause).Msg("sequence transition")
	for _, fn := range s.observers {
		fn(from, to)
	}
}

func (s *Machine) ignore(msg protocol.Message) error {
	log.Debug().
		Uint32("event", uint32(msg.EventID)).
		Uint32("sender", msg.SenderID).
		Str("phase", s.phase.String()).
		Msg("sequence ignoring event")
	return nil
}

func (s *Machine) clear() {
	s.pending = nil
	s.load = nil
	s.reason = ""
	s.checker.Reset()
}

func (s *Machine) onDifficultyConfirmed(msg protocol.Message) error {
	if s.phase != Roaming {
		return s.ignore(msg)
	}
	d := protocol.DifficultyFrom(msg)
	s.clear()
	s.pending = &d
	s.transition(HandPlacementCheck, "difficulty confirmed")
	return nil
}

func (s *Machine) onLoadMinigame(msg protocol.Message) error {
	if s.phase != WaitingScreen {
		return s.ignore(msg)
	}
	req := protocol.LoadRequestFrom(msg)
	s.load = &req
	s.transition(LoadingMinigame, "load minigame")
	return nil
}

// onMinigameBegins follows the authority from any in-progress phase; a
// participant still on the hand-placement check is pulled into the game.
func (s *Machine) onMinigameBegins(msg protocol.Message) error {
	if !s.phase.InProgress() || s.phase == InMinigame {
		return s.ignore(msg)
	}
	s.transition(InMinigame, "minigame begins")
	return nil
}

func (s *Machine) onWon(msg protocol.Message) error {
	if s.phase != InMinigame {
		return s.ignore(msg)
	}
	s.transition(ResultVictory, "minigame won")
	return nil
}

func (s *Machine) onLost(msg protocol.Message) error {
	if s.phase != InMinigame {
		return s.ignore(msg)
	}
	s.transition(ResultDefeat, "minigame lost")
	return nil
}

func (s *Machine) onLoadFailure(msg protocol.Message) error {
	if s.phase != WaitingScreen && s.phase != LoadingMinigame {
		return s.ignore(msg)
	}
	s.abort(protocol.FailureFrom(msg), "load failure")
	return nil
}

func (s *Machine) onUntimelyAbort(msg protocol.Message) error {
	if !s.phase.InProgress() {
		return s.ignore(msg)
	}
	s.abort(protocol.FailureFrom(msg), "untimely abort")
	return nil
}

func (s *Machine) abort(f protocol.Failure, cause string) {
	s.reason = f.Reason
	if s.reason == "" {
		s.reason = cause
	}
	s.transition(ResultAbort, cause)
}

func (s *Machine) onReset(protocol.Message) error {
	s.clear()
	s.transition(Roaming, "sequence reset")
	return nil
}

func (s *Machine) self() protocol.PlayerInfo {
	id := s.m.Identity()
	return protocol.PlayerInfo{ID: id.ID, IGN: id.IGN}
}

func (s *Machine) require(p Phase, op string) error {
	if s.phase != p {
		return fmt.Errorf("%w: %s in %s", ErrWrongPhase, op, s.phase)
	}
	return nil
}

// ConfirmDifficulty proposes d to the session. Only the owner may originate
// it; the machine advances when the confirmation is dispatched back.
func (s *Machine) ConfirmDifficulty(d protocol.Difficulty) error {
	if err := s.require(Roaming, "confirm difficulty"); err != nil {
		return err
	}
	return s.m.EmitLocal(schema.DifficultyConfirmedForMinigame, d.Fields())
}

// Input feeds one hand-placement keystroke. Completing every chord emits
// PlayerJoinActivity and moves to WAITING_SCREEN; typing the decline phrase
// behaves like Decline.
func (s *Machine) Input(key rune, at time.Time) (Outcome, error) {
	if err := s.require(HandPlacementCheck, "input"); err != nil {
		return Rejected, err
	}
	out := s.checker.Input(key, at)
	switch out {
	case Accepted:
		s.transition(WaitingScreen, "hand placement passed")
		return out, s.m.EmitLocal(schema.PlayerJoinActivity, s.self().Fields())
	case Declined:
		return out, s.Decline()
	case Rejected, TimedOut:
		log.Debug().Str("outcome", out.String()).Msg("sequence hand placement reset")
	}
	return out, nil
}

// Decline abandons the hand-placement check without opting out of the
// activity: it emits PlayerAbortingMinigame and returns to ROAMING.
func (s *Machine) Decline() error {
	if err := s.require(HandPlacementCheck, "decline"); err != nil {
		return err
	}
	s.clear()
	s.transition(Roaming, "hand placement declined")
	return s.m.EmitLocal(schema.PlayerAbortingMinigame, s.self().Fields())
}

// SkipActivity opts the local participant out of the proposed activity.
func (s *Machine) SkipActivity() error {
	if err := s.require(HandPlacementCheck, "skip activity"); err != nil {
		return err
	}
	s.clear()
	s.transition(Roaming, "activity skipped")
	return s.m.EmitLocal(schema.PlayerDeclineActivity, s.self().Fields())
}

// Ready signals the local participant is ready on the waiting screen.
func (s *Machine) Ready() error {
	if err := s.require(WaitingScreen, "ready"); err != nil {
		return err
	}
	return s.m.EmitLocal(schema.PlayerReadyForMinigame, s.self().Fields())
}

// LoadSucceeded emits PlayerLoadComplete. The phase stays LOADING_MINIGAME
// until MinigameBegins arrives.
func (s *Machine) LoadSucceeded() error {
	if err := s.require(LoadingMinigame, "load succeeded"); err != nil {
		return err
	}
	return s.m.EmitLocal(schema.PlayerLoadComplete, protocol.LoadComplete(s.self().ID))
}

// LoadFailed emits PlayerLoadFailure with reason. The local dispatch of that
// event moves the machine to RESULT_ABORT.
func (s *Machine) LoadFailed(reason string) error {
	if err := s.require(LoadingMinigame, "load failed"); err != nil {
		return err
	}
	return s.m.EmitLocal(schema.PlayerLoadFailure, protocol.Failure{ID: s.self().ID, Reason: reason}.Fields())
}

// GoBackToColony dismisses a result screen.
func (s *Machine) GoBackToColony() error {
	if !s.phase.IsResult() {
		return fmt.Errorf("%w: go back to colony in %s", ErrWrongPhase, s.phase)
	}
	s.clear()
	s.transition(Roaming, "dismissed")
	return nil
}

// Tick clears stale hand-placement progress. It reports whether anything was
// cleared so the view can shake.
func (s *Machine) Tick(at time.Time) bool {
	if s.phase != HandPlacementCheck {
		return false
	}
	if at.IsZero() {
		at = s.now()
	}
	return s.checker.Expire(at)
}
