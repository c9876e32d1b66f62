package minigame

import (
	"fmt"
	"time"

	"github.com/aarondl/opt/omit"
)

type TrainingRangeSettings struct {
	Targets       int
	TimeLimit     time.Duration
	MovingTargets bool
	TargetSpeeds  []float64
}

func (TrainingRangeSettings) Variant() ID { return TrainingRange }

func (s TrainingRangeSettings) Validate() error {
	if s.Targets <= 0 {
		return fmt.Errorf("%w: targets must be positive", ErrInvalidSettings)
	}
	if s.TimeLimit <= 0 {
		return fmt.Errorf("%w: time limit must be positive", ErrInvalidSettings)
	}
	if s.MovingTargets && len(s.TargetSpeeds) == 0 {
		return fmt.Errorf("%w: moving targets need at least one speed", ErrInvalidSettings)
	}
	return nil
}

type TrainingRangeOverrides struct {
	Targets       omit.Val[int]
	TimeLimit     omit.Val[time.Duration]
	MovingTargets omit.Val[bool]
	TargetSpeeds  omit.Val[[]float64]
}

func MergeTrainingRange(s TrainingRangeSettings, o TrainingRangeOverrides) TrainingRangeSettings {
	set(&s.Targets, o.Targets)
	set(&s.TimeLimit, o.TimeLimit)
	set(&s.MovingTargets, o.MovingTargets)
	set(&s.TargetSpeeds, o.TargetSpeeds)
	return s
}

func DefaultTrainingRangeSettings() TrainingRangeSettings {
	return TrainingRangeSettings{
		Targets:   10,
		TimeLimit: 60 * time.Second,
	}
}

func TrainingRangeDefinition() Definition[TrainingRangeSettings, TrainingRangeOverrides] {
	return Definition[TrainingRangeSettings, TrainingRangeOverrides]{
		ID:   TrainingRange,
		Name: TrainingRange.String(),
		Base: DefaultTrainingRangeSettings(),
		Difficulties: []Difficulty[TrainingRangeOverrides]{
			{ID: 1, Name: "Easy"},
			{ID: 2, Name: "Hard", Overrides: TrainingRangeOverrides{
				Targets:       omit.From(20),
				MovingTargets: omit.From(true),
				TargetSpeeds:  omit.From([]float64{1.5, 2.5}),
			}},
		},
		Merge: MergeTrainingRange,
		Init:  NewTrainingRangeGame,
	}
}

// TrainingRangeGame carries the resolved settings of a loaded range.
type TrainingRangeGame struct {
	settings   TrainingRangeSettings
	difficulty DifficultyInfo
}

func NewTrainingRangeGame(s TrainingRangeSettings, info DifficultyInfo) (Game, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &TrainingRangeGame{settings: s, difficulty: info}, nil
}

func (*TrainingRangeGame) Variant() ID { return TrainingRange }

func (g *TrainingRangeGame) Difficulty() DifficultyInfo { return g.difficulty }

func (g *TrainingRangeGame) Settings() TrainingRangeSettings { return g.settings }
