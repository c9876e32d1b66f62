// Package config loads the minigame catalogue file. A catalogue adjusts the
// built-in base settings of each variant and may replace its difficulty list.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration decodes TOML strings such as "1500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Catalogue struct {
	Asteroids     *AsteroidsConfig     `toml:"asteroids"`
	TrainingRange *TrainingRangeConfig `toml:"training_range"`
}

type AsteroidsConfig struct {
	Base         AsteroidsFields       `toml:"base"`
	Difficulties []AsteroidsDifficulty `toml:"difficulty"`
}

type AsteroidsDifficulty struct {
	ID   uint32          `toml:"id"`
	Name string          `toml:"name"`
	Set  AsteroidsFields `toml:"set"`
}

// AsteroidsFields are optional; absent keys leave the value below untouched.
type AsteroidsFields struct {
	ColonyHP        *int32    `toml:"colony_hp"`
	AsteroidHealth  *uint8    `toml:"asteroid_health"`
	SpawnInterval   *Duration `toml:"spawn_interval"`
	TimeUntilImpact *Duration `toml:"time_until_impact"`
	Duration        *Duration `toml:"duration"`
	AsteroidTypes   []int     `toml:"asteroid_types"`
}

type TrainingRangeConfig struct {
	Base         TrainingRangeFields       `toml:"base"`
	Difficulties []TrainingRangeDifficulty `toml:"difficulty"`
}

type TrainingRangeDifficulty struct {
	ID   uint32              `toml:"id"`
	Name string              `toml:"name"`
	Set  TrainingRangeFields `toml:"set"`
}

type TrainingRangeFields struct {
	Targets       *int      `toml:"targets"`
	TimeLimit     *Duration `toml:"time_limit"`
	MovingTargets *bool     `toml:"moving_targets"`
	TargetSpeeds  []float64 `toml:"target_speeds"`
}

func LoadCatalogue(path string) (Catalogue, error) {
	var cat Catalogue
	if err := loadToml(path, &cat); err != nil {
		return Catalogue{}, err
	}
	if err := ValidateCatalogue(cat); err != nil {
		return Catalogue{}, fmt.Errorf("catalogue invalid (%s): %w", path, err)
	}
	return cat, nil
}

func ParseCatalogue(data []byte) (Catalogue, error) {
	var cat Catalogue
	if err := toml.Unmarshal(data, &cat); err != nil {
		return Catalogue{}, fmt.Errorf("catalogue parse failed: %w", err)
	}
	if err := ValidateCatalogue(cat); err != nil {
		return Catalogue{}, fmt.Errorf("catalogue invalid: %w", err)
	}
	return cat, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateCatalogue(cat Catalogue) error {
	if cat.Asteroids != nil {
		for i, d := range cat.Asteroids.Difficulties {
			if err := validateDifficulty(d.ID, d.Name); err != nil {
				return fmt.Errorf("asteroids difficulty[%d] invalid: %w", i, err)
			}
			for _, kind := range d.Set.AsteroidTypes {
				if kind < 0 || kind > 255 {
					return fmt.Errorf("asteroids difficulty[%d] invalid: asteroid type %d out of range", i, kind)
				}
			}
		}
		for _, kind := range cat.Asteroids.Base.AsteroidTypes {
			if kind < 0 || kind > 255 {
				return fmt.Errorf("asteroids base invalid: asteroid type %d out of range", kind)
			}
		}
	}
	if cat.TrainingRange != nil {
		for i, d := range cat.TrainingRange.Difficulties {
			if err := validateDifficulty(d.ID, d.Name); err != nil {
				return fmt.Errorf("training_range difficulty[%d] invalid: %w", i, err)
			}
		}
	}
	return nil
}

func validateDifficulty(id uint32, name string) error {
	if id == 0 {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
