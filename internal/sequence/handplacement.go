package sequence

import (
	"fmt"
	"time"
	"unicode"
)

const (
	DefaultHandPlacementTimeout = 200 * time.Millisecond
	DefaultDeclinePhrase        = "no"
)

// Chord is a pair of keys that must both be pressed, in either order.
type Chord struct {
	A rune
	B rune
}

func (c Chord) has(key rune) bool {
	return key == c.A || key == c.B
}

func (c Chord) other(key rune) rune {
	if key == c.A {
		return c.B
	}
	return c.A
}

func (c Chord) String() string {
	return fmt.Sprintf("%c+%c", c.A, c.B)
}

// HandPlacementConfig configures the chord check.
type HandPlacementConfig struct {
	Chords        []Chord
	Timeout       time.Duration
	DeclinePhrase string
}

func DefaultHandPlacement() HandPlacementConfig {
	return HandPlacementConfig{
		Chords:        []Chord{{'a', 'l'}, {'s', 'k'}, {'d', 'j'}},
		Timeout:       DefaultHandPlacementTimeout,
		DeclinePhrase: DefaultDeclinePhrase,
	}
}

func (c HandPlacementConfig) withDefaults() HandPlacementConfig {
	def := DefaultHandPlacement()
	if len(c.Chords) == 0 {
		c.Chords = def.Chords
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.DeclinePhrase == "" {
		c.DeclinePhrase = def.DeclinePhrase
	}
	return c
}

type Outcome uint8

const (
	// Pending means the key was consumed without completing a chord.
	Pending Outcome = iota
	// Progress means a chord completed and more remain.
	Progress
	Accepted
	Rejected
	TimedOut
	Declined
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Progress:
		return "progress"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case TimedOut:
		return "timed_out"
	case Declined:
		return "declined"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Checker is the local chord-reproduction sub-machine. It emits nothing on
// its own; callers act on the returned Outcome.
type Checker struct {
	cfg     HandPlacementConfig
	phrase  []rune
	index   int
	held    rune
	decline int
	last    time.Time
}

func NewChecker(cfg HandPlacementConfig) *Checker {
	cfg = cfg.withDefaults()
	phrase := []rune(cfg.DeclinePhrase)
	for i, r := range phrase {
		phrase[i] = unicode.ToLower(r)
	}
	return &Checker{cfg: cfg, phrase: phrase}
}

// Reset clears chord progress, any half-held chord and decline progress.
func (c *Checker) Reset() {
	c.index = 0
	c.held = 0
	c.decline = 0
	c.last = time.Time{}
}

// Progress reports completed chords out of the configured total.
func (c *Checker) Progress() (done, total int) {
	return c.index, len(c.cfg.Chords)
}

// Current is the chord expected next.
func (c *Checker) Current() (Chord, bool) {
	if c.index >= len(c.cfg.Chords) {
		return Chord{}, false
	}
	return c.cfg.Chords[c.index], true
}

func (c *Checker) dirty() bool {
	return c.index > 0 || c.held != 0 || c.decline > 0
}

// Expire resets stale progress once the window since the last accepted
// keystroke has elapsed. It reports whether anything was cleared.
func (c *Checker) Expire(at time.Time) bool {
	if !c.dirty() || c.last.IsZero() || at.Sub(c.last) <= c.cfg.Timeout {
		return false
	}
	c.Reset()
	return true
}

// Input feeds one keystroke observed at the given time. A keystroke arriving
// after the window has elapsed clears every buffer and is discarded.
func (c *Checker) Input(key rune, at time.Time) Outcome {
	if c.Expire(at) {
		return TimedOut
	}
	key = unicode.ToLower(key)

	if c.advanceDecline(key) {
		c.last = at
		if c.decline == len(c.phrase) {
			c.Reset()
			return Declined
		}
		return Pending
	}

	chord, ok := c.Current()
	if !ok {
		return Accepted
	}
	switch {
	case c.held == 0 && chord.has(key):
		c.held = key
		c.last = at
		return Pending
	case c.held != 0 && key == c.held:
		// key repeat
		return Pending
	case c.held != 0 && key == chord.other(c.held):
		c.held = 0
		c.index++
		c.last = at
		if c.index == len(c.cfg.Chords) {
			return Accepted
		}
		return Progress
	default:
		c.Reset()
		return Rejected
	}
}

// advanceDecline reports whether key continues the decline phrase.
func (c *Checker) advanceDecline(key rune) bool {
	if len(c.phrase) == 0 {
		return false
	}
	if key == c.phrase[c.decline] {
		c.decline++
		return true
	}
	if c.decline > 0 && key == c.phrase[0] {
		c.decline = 1
		return true
	}
	c.decline = 0
	return false
}
