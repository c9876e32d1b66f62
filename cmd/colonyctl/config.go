package main

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/colonyctl/internal/protocol/schema"
	"github.com/danmuck/colonyctl/internal/sequence"
	"github.com/danmuck/colonyctl/internal/session"
)

type fileConfig struct {
	Offline       bool              `toml:"offline"`
	OwnerID       uint32            `toml:"owner_id"`
	Catalogue     string            `toml:"catalogue"`
	MetricsAddr   string            `toml:"metrics_addr"`
	Identity      identityConfig    `toml:"identity"`
	Simulator     simulatorConfig   `toml:"simulator"`
	HandPlacement handPlacementFile `toml:"hand_placement"`
	Log           logConfig         `toml:"log"`
}

type identityConfig struct {
	ID   uint32 `toml:"id"`
	IGN  string `toml:"ign"`
	Role string `toml:"role"`
}

type simulatorConfig struct {
	Tick string `toml:"tick"`
}

type handPlacementFile struct {
	Chords        []string `toml:"chords"`
	Timeout       string   `toml:"timeout"`
	DeclinePhrase string   `toml:"decline_phrase"`
}

type logConfig struct {
	Level string `toml:"level"`
}

// appConfig is the resolved runtime configuration.
type appConfig struct {
	Session     session.Config
	Catalogue   string
	MetricsAddr string
	LogLevel    string
}

func defaultAppConfig() appConfig {
	return appConfig{
		Session:  session.DefaultConfig(),
		LogLevel: "info",
	}
}

func loadAppConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load colonyctl config: %w", err)
	}

	if meta.IsDefined("offline") {
		cfg.Session.Offline = raw.Offline
	}
	if meta.IsDefined("catalogue") {
		cfg.Catalogue = strings.TrimSpace(raw.Catalogue)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if meta.IsDefined("identity", "id") {
		cfg.Session.Identity.ID = raw.Identity.ID
	}
	if meta.IsDefined("identity", "ign") {
		if ign := strings.TrimSpace(raw.Identity.IGN); ign != "" {
			cfg.Session.Identity.IGN = ign
		}
	}
	if meta.IsDefined("identity", "role") {
		role, err := schema.ParseRole(strings.TrimSpace(raw.Identity.Role))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse identity.role: %w", err)
		}
		if role == schema.RoleServer {
			return appConfig{}, fmt.Errorf("parse identity.role: local participant cannot be %s", role)
		}
		cfg.Session.Identity.Role = role
	}
	// a local owner is the session owner unless owner_id says otherwise
	if meta.IsDefined("identity", "id") && cfg.Session.Identity.Role == schema.RoleOwner {
		cfg.Session.OwnerID = raw.Identity.ID
	}
	if meta.IsDefined("owner_id") {
		cfg.Session.OwnerID = raw.OwnerID
	}

	if meta.IsDefined("simulator", "tick") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Simulator.Tick))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse simulator.tick: %w", err)
		}
		cfg.Session.Tick = d
	}

	if meta.IsDefined("hand_placement", "chords") {
		chords, err := parseChords(raw.HandPlacement.Chords)
		if err != nil {
			return appConfig{}, fmt.Errorf("parse hand_placement.chords: %w", err)
		}
		cfg.Session.HandPlacement.Chords = chords
	}
	if meta.IsDefined("hand_placement", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HandPlacement.Timeout))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse hand_placement.timeout: %w", err)
		}
		cfg.Session.HandPlacement.Timeout = d
	}
	if meta.IsDefined("hand_placement", "decline_phrase") {
		cfg.Session.HandPlacement.DeclinePhrase = strings.TrimSpace(raw.HandPlacement.DeclinePhrase)
	}

	if meta.IsDefined("log", "level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}

	return cfg, nil
}

// parseChords reads chords written as "a+l".
func parseChords(in []string) ([]sequence.Chord, error) {
	out := make([]sequence.Chord, 0, len(in))
	for _, raw := range in {
		left, right, ok := strings.Cut(strings.TrimSpace(raw), "+")
		if !ok || utf8.RuneCountInString(left) != 1 || utf8.RuneCountInString(right) != 1 {
			return nil, fmt.Errorf("invalid chord %q", raw)
		}
		a, _ := utf8.DecodeRuneInString(strings.ToLower(left))
		b, _ := utf8.DecodeRuneInString(strings.ToLower(right))
		if a == b {
			return nil, fmt.Errorf("invalid chord %q: keys must differ", raw)
		}
		out = append(out, sequence.Chord{A: a, B: b})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no chords")
	}
	return out, nil
}
