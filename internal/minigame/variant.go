// Package minigame is the closed registry of known minigames. Each variant
// carries typed base settings, per-difficulty overrides and an initializer;
// the session resolves a LoadMinigame request through it.
package minigame

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/tiendc/go-deepcopy"
)

var (
	ErrUnknownVariant    = errors.New("minigame: unknown variant")
	ErrUnknownDifficulty = errors.New("minigame: unknown difficulty")
	ErrInvalidSettings   = errors.New("minigame: invalid settings")
	ErrDuplicateVariant  = errors.New("minigame: duplicate variant")
)

// ID identifies a minigame on the wire (the minigameID field).
type ID uint32

const (
	Asteroids     ID = 1
	TrainingRange ID = 2
)

func (id ID) String() string {
	switch id {
	case Asteroids:
		return "asteroids"
	case TrainingRange:
		return "training_range"
	default:
		return fmt.Sprintf("minigame(%d)", uint32(id))
	}
}

// Known reports whether id belongs to the closed variant set.
func (id ID) Known() bool {
	return id == Asteroids || id == TrainingRange
}

// Settings is the typed configuration of one variant.
type Settings interface {
	Variant() ID
	Validate() error
}

// Game is an initialized minigame.
type Game interface {
	Variant() ID
	Difficulty() DifficultyInfo
}

type DifficultyInfo struct {
	ID   uint32
	Name string
}

// Difficulty pairs a difficulty with the overrides it applies to the base.
type Difficulty[O any] struct {
	ID        uint32
	Name      string
	Overrides O
}

// Definition describes one variant. Merge must let every set override win
// over the base value of the same field.
type Definition[S Settings, O any] struct {
	ID           ID
	Name         string
	Base         S
	Difficulties []Difficulty[O]
	Merge        func(S, O) S
	Init         func(S, DifficultyInfo) (Game, error)
}

// Variant is satisfied by Definition for any settings type.
type Variant interface {
	Info() Info
	resolve(difficultyID uint32) (Settings, DifficultyInfo, error)
	initialize(Settings, DifficultyInfo) (Game, error)
}

type Info struct {
	ID           ID
	Name         string
	Difficulties []DifficultyInfo
}

func (d Definition[S, O]) Info() Info {
	return Info{
		ID:   d.ID,
		Name: d.Name,
		Difficulties: lo.Map(d.Difficulties, func(x Difficulty[O], _ int) DifficultyInfo {
			return DifficultyInfo{ID: x.ID, Name: x.Name}
		}),
	}
}

func (d Definition[S, O]) resolve(difficultyID uint32) (Settings, DifficultyInfo, error) {
	diff, ok := lo.Find(d.Difficulties, func(x Difficulty[O]) bool {
		return x.ID == difficultyID
	})
	if !ok {
		return nil, DifficultyInfo{}, fmt.Errorf("%w: %s has no difficulty %d", ErrUnknownDifficulty, d.Name, difficultyID)
	}
	var base S
	if err := deepcopy.Copy(&base, &d.Base); err != nil {
		return nil, DifficultyInfo{}, fmt.Errorf("minigame: copy %s base settings: %w", d.Name, err)
	}
	merged := d.Merge(base, diff.Overrides)
	if err := merged.Validate(); err != nil {
		return nil, DifficultyInfo{}, fmt.Errorf("%s difficulty %d: %w", d.Name, difficultyID, err)
	}
	return merged, DifficultyInfo{ID: diff.ID, Name: diff.Name}, nil
}

func (d Definition[S, O]) initialize(s Settings, info DifficultyInfo) (Game, error) {
	typed, ok := s.(S)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not %s settings", ErrInvalidSettings, s, d.Name)
	}
	if d.Init == nil {
		return nil, fmt.Errorf("minigame: %s has no initializer", d.Name)
	}
	return d.Init(typed, info)
}

// Resolved is a variant's settings for one difficulty.
type Resolved struct {
	Variant    ID
	Difficulty DifficultyInfo
	Settings   Settings
}

// Registry is an immutable lookup of variants by id.
type Registry struct {
	variants map[ID]Variant
}

// NewRegistry rejects variants outside the closed set and duplicate ids.
func NewRegistry(variants ...Variant) (*Registry, error) {
	r := &Registry{variants: make(map[ID]Variant, len(variants))}
	for _, v := range variants {
		info := v.Info()
		if !info.ID.Known() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, info.ID)
		}
		if _, dup := r.variants[info.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVariant, info.ID)
		}
		ids := lo.Map(info.Difficulties, func(d DifficultyInfo, _ int) uint32 { return d.ID })
		if len(lo.Uniq(ids)) != len(ids) {
			return nil, fmt.Errorf("%w: %s repeats a difficulty id", ErrInvalidSettings, info.ID)
		}
		r.variants[info.ID] = v
	}
	return r, nil
}

// Builtin returns the registry with the default definitions.
func Builtin() *Registry {
	r, err := NewRegistry(AsteroidsDefinition(), TrainingRangeDefinition())
	if err != nil {
		panic(err)
	}
	return r
}

// Variants lists every registered variant ordered by id.
func (r *Registry) Variants() []Info {
	infos := lo.Map(lo.Values(r.variants), func(v Variant, _ int) Info { return v.Info() })
	slices.SortFunc(infos, func(a, b Info) int { return int(a.ID) - int(b.ID) })
	return infos
}

func (r *Registry) Resolve(minigameID, difficultyID uint32) (Resolved, error) {
	v, ok := r.variants[ID(minigameID)]
	if !ok {
		return Resolved{}, fmt.Errorf("%w: %d", ErrUnknownVariant, minigameID)
	}
	s, info, err := v.resolve(difficultyID)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Variant: ID(minigameID), Difficulty: info, Settings: s}, nil
}

// Load resolves settings and runs the variant's initializer.
func (r *Registry) Load(minigameID, difficultyID uint32) (Game, error) {
	res, err := r.Resolve(minigameID, difficultyID)
	if err != nil {
		return nil, err
	}
	return r.variants[res.Variant].initialize(res.Settings, res.Difficulty)
}
