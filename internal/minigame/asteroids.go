package minigame

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/aarondl/opt/omit"

	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

type AsteroidsSettings struct {
	ColonyHP        int32
	AsteroidHealth  uint8
	SpawnInterval   time.Duration
	TimeUntilImpact time.Duration
	Duration        time.Duration
	AsteroidTypes   []uint8
}

func (AsteroidsSettings) Variant() ID { return Asteroids }

func (s AsteroidsSettings) Validate() error {
	switch {
	case s.ColonyHP <= 0:
		return fmt.Errorf("%w: colony hp must be positive", ErrInvalidSettings)
	case s.AsteroidHealth == 0:
		return fmt.Errorf("%w: asteroid health must be positive", ErrInvalidSettings)
	case s.SpawnInterval <= 0:
		return fmt.Errorf("%w: spawn interval must be positive", ErrInvalidSettings)
	case s.TimeUntilImpact <= 0 || s.TimeUntilImpact.Milliseconds() > math.MaxUint16:
		return fmt.Errorf("%w: time until impact out of range: %s", ErrInvalidSettings, s.TimeUntilImpact)
	case s.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidSettings)
	case len(s.AsteroidTypes) == 0:
		return fmt.Errorf("%w: no asteroid types", ErrInvalidSettings)
	}
	return nil
}

// AsteroidsOverrides holds the per-difficulty changes to AsteroidsSettings.
type AsteroidsOverrides struct {
	ColonyHP        omit.Val[int32]
	AsteroidHealth  omit.Val[uint8]
	SpawnInterval   omit.Val[time.Duration]
	TimeUntilImpact omit.Val[time.Duration]
	Duration        omit.Val[time.Duration]
	AsteroidTypes   omit.Val[[]uint8]
}

func MergeAsteroids(s AsteroidsSettings, o AsteroidsOverrides) AsteroidsSettings {
	set(&s.ColonyHP, o.ColonyHP)
	set(&s.AsteroidHealth, o.AsteroidHealth)
	set(&s.SpawnInterval, o.SpawnInterval)
	set(&s.TimeUntilImpact, o.TimeUntilImpact)
	set(&s.Duration, o.Duration)
	set(&s.AsteroidTypes, o.AsteroidTypes)
	return s
}

func DefaultAsteroidsSettings() AsteroidsSettings {
	return AsteroidsSettings{
		ColonyHP:        100,
		AsteroidHealth:  3,
		SpawnInterval:   1500 * time.Millisecond,
		TimeUntilImpact: 8 * time.Second,
		Duration:        90 * time.Second,
		AsteroidTypes:   []uint8{0, 1, 2},
	}
}

func AsteroidsDefinition() Definition[AsteroidsSettings, AsteroidsOverrides] {
	return Definition[AsteroidsSettings, AsteroidsOverrides]{
		ID:   Asteroids,
		Name: Asteroids.String(),
		Base: DefaultAsteroidsSettings(),
		Difficulties: []Difficulty[AsteroidsOverrides]{
			{ID: 1, Name: "Easy", Overrides: AsteroidsOverrides{
				ColonyHP:        omit.From[int32](150),
				SpawnInterval:   omit.From(2 * time.Second),
				TimeUntilImpact: omit.From(10 * time.Second),
			}},
			{ID: 2, Name: "Hard", Overrides: AsteroidsOverrides{
				AsteroidHealth:  omit.From[uint8](5),
				SpawnInterval:   omit.From(time.Second),
				TimeUntilImpact: omit.From(6 * time.Second),
			}},
			{ID: 3, Name: "Brutal", Overrides: AsteroidsOverrides{
				ColonyHP:       omit.From[int32](60),
				AsteroidHealth: omit.From[uint8](6),
				SpawnInterval:  omit.From(600 * time.Millisecond),
				AsteroidTypes:  omit.From([]uint8{1, 2, 3}),
			}},
		},
		Merge: MergeAsteroids,
		Init:  NewAsteroidsGame,
	}
}

// HitRadius is how far from an asteroid's center a shot still hits it.
const HitRadius = 5.0

type asteroid struct {
	x, y     float64
	health   uint8
	impactAt time.Duration
}

// Emission is one server event produced by stepping a game.
type Emission struct {
	Event  schema.EventID
	Fields protocol.Fields
}

// AsteroidsGame tracks the colony and the asteroids spawned against it. The
// authoritative side drives it with Step, Spawn, Shoot and Impact; a client
// mirrors it with Track, RecordShot and ApplyImpact. Payload-returning methods
// produce the asteroids wire events.
type AsteroidsGame struct {
	settings   AsteroidsSettings
	difficulty DifficultyInfo
	colonyHP   int32
	nextID     uint32
	elapsed    time.Duration
	nextSpawn  time.Duration
	live       map[uint32]*asteroid
}

func NewAsteroidsGame(s AsteroidsSettings, info DifficultyInfo) (Game, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &AsteroidsGame{
		settings:   s,
		difficulty: info,
		colonyHP:   s.ColonyHP,
		nextSpawn:  s.SpawnInterval,
		live:       make(map[uint32]*asteroid),
	}, nil
}

func (*AsteroidsGame) Variant() ID { return Asteroids }

func (g *AsteroidsGame) Difficulty() DifficultyInfo { return g.difficulty }

func (g *AsteroidsGame) Settings() AsteroidsSettings { return g.settings }

func (g *AsteroidsGame) ColonyHP() int32 { return g.colonyHP }

// Live returns the number of asteroids still in flight.
func (g *AsteroidsGame) Live() int { return len(g.live) }

// Lost reports whether the colony has been destroyed.
func (g *AsteroidsGame) Lost() bool { return g.colonyHP <= 0 }

// Won reports whether the colony outlasted the configured duration.
func (g *AsteroidsGame) Won() bool { return !g.Lost() && g.elapsed >= g.settings.Duration }

// Step advances the game clock by d and returns the spawns and impacts that
// fell due, spawns first. Impacts are charged in asteroid id order.
func (g *AsteroidsGame) Step(d time.Duration) []Emission {
	g.elapsed += d
	var out []Emission
	for g.nextSpawn <= g.elapsed && g.nextSpawn <= g.settings.Duration {
		x, y := g.spawnPoint()
		out = append(out, Emission{Event: schema.AsteroidsAsteroidSpawn, Fields: g.Spawn(x, y)})
		g.nextSpawn += g.settings.SpawnInterval
	}
	for _, id := range slices.Sorted(maps.Keys(g.live)) {
		if g.live[id].impactAt > g.elapsed {
			continue
		}
		if fields, ok := g.Impact(id); ok {
			out = append(out, Emission{Event: schema.AsteroidsAsteroidImpact, Fields: fields})
		}
	}
	return out
}

// spawnPoint spreads asteroids across the top edge.
func (g *AsteroidsGame) spawnPoint() (float32, float32) {
	return float32(int((g.nextID+1)*37%41) - 20), 50
}

// Spawn places a new asteroid and returns its AsteroidsAsteroidSpawn payload.
// The asteroid type cycles through the configured types.
func (g *AsteroidsGame) Spawn(x, y float32) protocol.Fields {
	g.nextID++
	id := g.nextID
	g.live[id] = &asteroid{
		x:        float64(x),
		y:        float64(y),
		health:   g.settings.AsteroidHealth,
		impactAt: g.elapsed + g.settings.TimeUntilImpact,
	}
	kind := g.settings.AsteroidTypes[int(id-1)%len(g.settings.AsteroidTypes)]
	return protocol.Fields{
		schema.FieldAsteroidID:      protocol.Uint32(id),
		schema.FieldX:               protocol.Float(float64(x)),
		schema.FieldY:               protocol.Float(float64(y)),
		schema.FieldHealth:          protocol.Uint(uint64(g.settings.AsteroidHealth)),
		schema.FieldTimeUntilImpact: protocol.Uint(uint64(g.settings.TimeUntilImpact.Milliseconds())),
		schema.FieldType:            protocol.Uint(uint64(kind)),
	}
}

// Track mirrors an AsteroidsAsteroidSpawn received from the authority.
func (g *AsteroidsGame) Track(msg protocol.Message) {
	id := msg.Uint32(schema.FieldAsteroidID)
	g.live[id] = &asteroid{
		x:        msg.Float(schema.FieldX),
		y:        msg.Float(schema.FieldY),
		health:   uint8(msg.Uint(schema.FieldHealth)),
		impactAt: g.elapsed + time.Duration(msg.Uint(schema.FieldTimeUntilImpact))*time.Millisecond,
	}
	g.nextID = max(g.nextID, id)
}

// Shoot fires at (x, y) on behalf of playerID and returns the
// AsteroidsPlayerShoot payload. The nearest live asteroid within HitRadius
// takes the hit.
func (g *AsteroidsGame) Shoot(playerID uint32, x, y float64) protocol.Fields {
	id, hit := g.nearest(x, y)
	if hit {
		g.Hit(id)
	}
	return protocol.Fields{
		schema.FieldPlayerID: protocol.Uint32(playerID),
		schema.FieldX:        protocol.Float(x),
		schema.FieldY:        protocol.Float(y),
		schema.FieldHit:      protocol.Bool(hit),
	}
}

// RecordShot applies a shot another participant reported. Misses change
// nothing; a claimed hit lands on the nearest live asteroid within HitRadius.
func (g *AsteroidsGame) RecordShot(x, y float64, hit bool) bool {
	if !hit {
		return false
	}
	id, ok := g.nearest(x, y)
	if ok {
		g.Hit(id)
	}
	return ok
}

func (g *AsteroidsGame) nearest(x, y float64) (uint32, bool) {
	var (
		best  uint32
		bestD = HitRadius
		found bool
	)
	for _, id := range slices.Sorted(maps.Keys(g.live)) {
		a := g.live[id]
		if d := math.Hypot(a.x-x, a.y-y); d <= bestD && (!found || d < bestD) {
			best, bestD, found = id, d, true
		}
	}
	return best, found
}

// Hit applies one shot to an asteroid and reports whether it was destroyed.
func (g *AsteroidsGame) Hit(asteroidID uint32) bool {
	a, ok := g.live[asteroidID]
	if !ok {
		return false
	}
	if a.health <= 1 {
		delete(g.live, asteroidID)
		return true
	}
	a.health--
	return false
}

// Impact removes a live asteroid, charges its remaining health against the
// colony and returns the AsteroidsAsteroidImpact payload. Unknown or already
// destroyed asteroids report false.
func (g *AsteroidsGame) Impact(asteroidID uint32) (protocol.Fields, bool) {
	a, ok := g.live[asteroidID]
	if !ok {
		return nil, false
	}
	delete(g.live, asteroidID)
	g.colonyHP -= int32(a.health)
	return protocol.Fields{
		schema.FieldAsteroidID:   protocol.Uint32(asteroidID),
		schema.FieldColonyHPLeft: protocol.Int(int64(g.colonyHP)),
	}, true
}

// ApplyImpact mirrors an AsteroidsAsteroidImpact received from the authority.
func (g *AsteroidsGame) ApplyImpact(msg protocol.Message) {
	delete(g.live, msg.Uint32(schema.FieldAsteroidID))
	g.colonyHP = int32(msg.Int(schema.FieldColonyHPLeft))
}
