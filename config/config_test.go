package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"pancake/game"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 200*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, time.Second, cfg.PublishInterval)
	assert.Equal(t, 10.0, cfg.DropRate)
	assert.Equal(t, 5, cfg.DropBurst)
	assert.Equal(t, 10*time.Minute, cfg.IdleTTL)
	assert.Equal(t, 100, cfg.LeaderboardSize)

	rules, err := cfg.Rules()
	require.NoError(t, err)
	assert.Equal(t, game.BoardWidth, rules.BoardWidth)
	assert.Equal(t, game.InitialWidth, rules.InitialWidth)
	assert.Equal(t, game.MinTrimWidth, rules.MinWidth)
	assert.Equal(t, game.ModeGeometric, rules.Mode)
	assert.Equal(t, game.BaseSpeed+2, rules.Speed.Speed(10))
}

func TestEmojiPresetWithOverrides(t *testing.T) {
	t.Setenv("PANCAKE_PRESET", "emoji")
	t.Setenv("PANCAKE_MAX_STACK", "20")
	t.Setenv("PANCAKE_SPEED_STEP", "1")
	t.Setenv("PANCAKE_SPEED_EVERY", "3")
	t.Setenv("PANCAKE_SPEED_CAP", "2")
	t.Setenv("PANCAKE_MODE", "chance")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	rules, err := cfg.Rules()
	require.NoError(t, err)

	assert.Equal(t, game.EmojiWidth, rules.BoardWidth)
	assert.Equal(t, game.EmojiPancake, rules.InitialWidth)
	assert.True(t, rules.Discrete)
	assert.Equal(t, 20, rules.MaxStack)
	assert.Equal(t, game.ModeChance, rules.Mode)
	assert.Equal(t, 1.0, rules.Speed.Speed(2))
	assert.Equal(t, 2.0, rules.Speed.Speed(3))
	assert.Equal(t, 3.0, rules.Speed.Speed(100))
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("PANCAKE_DROP_BURST", "lots")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parse env:"), err.Error())
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown preset", "PANCAKE_PRESET", "waffle"},
		{"pancake wider than board", "PANCAKE_INITIAL_WIDTH", "601"},
		{"unknown mode", "PANCAKE_MODE", "gravity"},
		{"zero tick", "PANCAKE_TICK_INTERVAL", "0s"},
		{"bad level", "PANCAKE_LOG_LEVEL", "chatty"},
		{"zero burst", "PANCAKE_DROP_BURST", "0"},
		{"zero idle ttl", "PANCAKE_IDLE_TTL", "0s"},
		{"empty leaderboard", "PANCAKE_LEADERBOARD_SIZE", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}

	_, err := Config{Game: Game{Preset: "waffle"}}.Rules()
	assert.True(t, errors.Is(err, ErrUnknownPreset))
}

func TestLoadDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PANCAKE_DROP_RATE=2.5\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PANCAKE_DROP_RATE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.DropRate)
}

func TestLogger(t *testing.T) {
	log, err := Config{LogLevel: "debug", Dev: true}.Logger()
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	_, err = Config{LogLevel: "nope"}.Logger()
	assert.Error(t, err)
}
