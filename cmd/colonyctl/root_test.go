package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/testutil/testlog"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func fastConfig(t *testing.T) string {
	t.Helper()
	return writeConfig(t, `
[simulator]
tick = "5ms"

[log]
level = "error"
`)
}

func TestEventsListsCatalogue(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "events")
	require.NoError(t, err)
	assert.Contains(t, out, "DifficultyConfirmedForMinigame")
	assert.Contains(t, out, "minigameID u32@8")
	assert.Contains(t, out, "AsteroidsPlayerShoot")
	assert.Equal(t, 25, strings.Count(out, "\n"), "header plus one line per event")
}

func TestDecodeCommand(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "decode", "00000007 00000006 00000005 00000002 48617264")
	require.NoError(t, err)
	assert.Contains(t, out, "DifficultyConfirmedForMinigame(6)")
	assert.Contains(t, out, "sender: 7")
	assert.Contains(t, out, `difficultyName = "Hard"`)
	assert.Contains(t, out, "minigameID = 5")

	_, err = run(t, "decode", "--role", "guest", "0000000700000006000000050000000248617264")
	assert.ErrorIs(t, err, protocol.ErrPermissionDenied)

	_, err = run(t, "decode", "00000007000000060000")
	assert.ErrorIs(t, err, protocol.ErrUndersized)

	_, err = run(t, "decode", "zz")
	assert.Error(t, err)

	out, err = run(t, "decode", "ffffffff0000000f")
	require.NoError(t, err)
	assert.Contains(t, out, "sender: server")
}

func TestMinigamesCommand(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "minigames")
	require.NoError(t, err)
	assert.Contains(t, out, "1 asteroids")
	assert.Contains(t, out, "2 training_range")
	assert.Contains(t, out, "Brutal")
}

func TestSimulateVictory(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "--config", fastConfig(t), "simulate", "--minigame", "1", "--difficulty", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "phase ROAMING -> HAND_PLACEMENT_CHECK")
	assert.Contains(t, out, "phase LOADING_MINIGAME -> IN_MINIGAME")
	assert.Contains(t, out, "phase IN_MINIGAME -> RESULT_VICTORY")
	assert.Contains(t, out, "final phase ROAMING")
}

func TestSimulateDefeat(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "--config", fastConfig(t), "simulate", "--minigame", "2", "--difficulty", "1", "--outcome", "lost")
	require.NoError(t, err)
	assert.Contains(t, out, "phase IN_MINIGAME -> RESULT_DEFEAT")
}

func TestSimulateUnknownMinigameAborts(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "--config", fastConfig(t), "simulate", "--minigame", "5", "--difficulty", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "-> RESULT_ABORT")
	assert.Contains(t, out, "final phase RESULT_ABORT")
	assert.Contains(t, out, "unknown variant")
}

func TestSimulateRejectsGuestAndBadOutcome(t *testing.T) {
	testlog.Start(t)
	guest := writeConfig(t, "owner_id = 1\n[identity]\nid = 2\nrole = \"guest\"\n")
	_, err := run(t, "--config", guest, "simulate")
	assert.ErrorContains(t, err, "must be the owner")

	_, err = run(t, "simulate", "--outcome", "draw")
	assert.ErrorContains(t, err, "outcome must be won or lost")
}

func TestInitConfigWritesTemplates(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	runtime := filepath.Join(dir, "colonyctl.toml")
	_, err := run(t, "init-config", "--output", runtime)
	require.NoError(t, err)
	cfg, err := loadAppConfig(runtime)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cfg.Session.OwnerID)

	catalogue := filepath.Join(dir, "catalogue.toml")
	_, err = run(t, "init-config", "--kind", "catalogue", "--output", catalogue)
	require.NoError(t, err)
	_, err = run(t, "init-config", "--kind", "catalogue", "--output", catalogue)
	assert.ErrorContains(t, err, "already exists")

	withCatalogue := writeConfig(t, "catalogue = \""+filepath.ToSlash(catalogue)+"\"\n")
	out, err := run(t, "--config", withCatalogue, "minigames")
	require.NoError(t, err)
	assert.NotContains(t, out, "Brutal")
	_, err = os.Stat(catalogue)
	require.NoError(t, err)
}
