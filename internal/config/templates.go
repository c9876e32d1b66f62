package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "catalogue", "catalog":
		return catalogueTemplate, nil
	case "runtime", "colonyctl":
		return runtimeTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const catalogueTemplate = `[asteroids.base]
colony_hp = 100
asteroid_health = 3
spawn_interval = "1500ms"
time_until_impact = "8s"
duration = "90s"
asteroid_types = [0, 1, 2]

[[asteroids.difficulty]]
id = 1
name = "Easy"
[asteroids.difficulty.set]
colony_hp = 150
spawn_interval = "2s"

[[asteroids.difficulty]]
id = 2
name = "Hard"
[asteroids.difficulty.set]
asteroid_health = 5
spawn_interval = "1s"
time_until_impact = "6s"

[training_range.base]
targets = 10
time_limit = "60s"

[[training_range.difficulty]]
id = 1
name = "Easy"

[[training_range.difficulty]]
id = 2
name = "Hard"
[training_range.difficulty.set]
targets = 20
moving_targets = true
target_speeds = [1.5, 2.5]
`

const runtimeTemplate = `offline = true
owner_id = 1
catalogue = ""
metrics_addr = ""

[identity]
id = 1
ign = "Host"
role = "owner"

[simulator]
tick = "100ms"

[hand_placement]
chords = ["a+l", "s+k", "d+j"]
timeout = "200ms"
decline_phrase = "no"

[log]
level = "info"
`
