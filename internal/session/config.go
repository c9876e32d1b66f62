package session

import (
	"time"

	"github.com/danmuck/colonyctl/internal/mux"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
	"github.com/danmuck/colonyctl/internal/sequence"
	"github.com/danmuck/colonyctl/internal/simulator"
)

// Config defines one session.
type Config struct {
	Identity      mux.Identity
	OwnerID       uint32
	Offline       bool
	Tick          time.Duration
	LoopBuffer    int
	HandPlacement sequence.HandPlacementConfig
}

// DefaultConfig is a single-player offline session hosted by the local owner.
func DefaultConfig() Config {
	return Config{
		Identity: mux.Identity{
			ID:   1,
			IGN:  "Host",
			Role: schema.RoleOwner,
		},
		OwnerID:       1,
		Offline:       true,
		Tick:          simulator.DefaultTick,
		LoopBuffer:    64,
		HandPlacement: sequence.DefaultHandPlacement(),
	}
}
