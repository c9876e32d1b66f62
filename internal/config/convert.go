package config

import (
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/samber/lo"

	"github.com/danmuck/colonyctl/internal/minigame"
)

// Registry builds the minigame registry from the built-in definitions with
// the catalogue applied on top.
func (c Catalogue) Registry() (*minigame.Registry, error) {
	asteroids := minigame.AsteroidsDefinition()
	if c.Asteroids != nil {
		asteroids.Base = minigame.MergeAsteroids(asteroids.Base, c.Asteroids.Base.Overrides())
		if len(c.Asteroids.Difficulties) > 0 {
			asteroids.Difficulties = lo.Map(c.Asteroids.Difficulties, func(d AsteroidsDifficulty, _ int) minigame.Difficulty[minigame.AsteroidsOverrides] {
				return minigame.Difficulty[minigame.AsteroidsOverrides]{ID: d.ID, Name: d.Name, Overrides: d.Set.Overrides()}
			})
		}
	}
	training := minigame.TrainingRangeDefinition()
	if c.TrainingRange != nil {
		training.Base = minigame.MergeTrainingRange(training.Base, c.TrainingRange.Base.Overrides())
		if len(c.TrainingRange.Difficulties) > 0 {
			training.Difficulties = lo.Map(c.TrainingRange.Difficulties, func(d TrainingRangeDifficulty, _ int) minigame.Difficulty[minigame.TrainingRangeOverrides] {
				return minigame.Difficulty[minigame.TrainingRangeOverrides]{ID: d.ID, Name: d.Name, Overrides: d.Set.Overrides()}
			})
		}
	}
	return minigame.NewRegistry(asteroids, training)
}

func (f AsteroidsFields) Overrides() minigame.AsteroidsOverrides {
	o := minigame.AsteroidsOverrides{
		ColonyHP:        omit.FromPtr(f.ColonyHP),
		AsteroidHealth:  omit.FromPtr(f.AsteroidHealth),
		SpawnInterval:   duration(f.SpawnInterval),
		TimeUntilImpact: duration(f.TimeUntilImpact),
		Duration:        duration(f.Duration),
	}
	if f.AsteroidTypes != nil {
		o.AsteroidTypes = omit.From(lo.Map(f.AsteroidTypes, func(v int, _ int) uint8 { return uint8(v) }))
	}
	return o
}

func (f TrainingRangeFields) Overrides() minigame.TrainingRangeOverrides {
	o := minigame.TrainingRangeOverrides{
		Targets:       omit.FromPtr(f.Targets),
		TimeLimit:     duration(f.TimeLimit),
		MovingTargets: omit.FromPtr(f.MovingTargets),
	}
	if f.TargetSpeeds != nil {
		o.TargetSpeeds = omit.From(f.TargetSpeeds)
	}
	return o
}

func duration(d *Duration) omit.Val[time.Duration] {
	if d == nil {
		return omit.Val[time.Duration]{}
	}
	return omit.From(d.Duration)
}
