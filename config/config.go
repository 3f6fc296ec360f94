package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pancake/game"
)

type Config struct {
	Addr           string   `env:"PANCAKE_ADDR" envDefault:":8080"`
	LogLevel       string   `env:"PANCAKE_LOG_LEVEL" envDefault:"info"`
	Dev            bool     `env:"PANCAKE_DEV" envDefault:"false"`
	AllowedOrigins []string `env:"PANCAKE_ALLOWED_ORIGINS" envSeparator:","` // empty allows any origin

	TickInterval    time.Duration `env:"PANCAKE_TICK_INTERVAL" envDefault:"200ms"`
	PublishInterval time.Duration `env:"PANCAKE_PUBLISH_INTERVAL" envDefault:"1s"`

	DropRate  float64 `env:"PANCAKE_DROP_RATE" envDefault:"10"`
	DropBurst int     `env:"PANCAKE_DROP_BURST" envDefault:"5"`

	IdleTTL         time.Duration `env:"PANCAKE_IDLE_TTL" envDefault:"10m"` // disconnected players are forgotten after this
	LeaderboardSize int           `env:"PANCAKE_LEADERBOARD_SIZE" envDefault:"100"`

	Game Game
}

// Game starts from a preset board; any variable that is set overrides it.
type Game struct {
	Preset        string   `env:"PANCAKE_PRESET" envDefault:"image"`
	BoardWidth    *float64 `env:"PANCAKE_BOARD_WIDTH"`
	InitialWidth  *float64 `env:"PANCAKE_INITIAL_WIDTH"`
	MinWidth      *float64 `env:"PANCAKE_MIN_WIDTH"`
	SegmentHeight *float64 `env:"PANCAKE_SEGMENT_HEIGHT"`
	BoardHeight   *float64 `env:"PANCAKE_BOARD_HEIGHT"`
	MaxStack      *int     `env:"PANCAKE_MAX_STACK"`
	SpeedBase     *float64 `env:"PANCAKE_SPEED_BASE"`
	SpeedStep     *float64 `env:"PANCAKE_SPEED_STEP"`
	SpeedEvery    *int     `env:"PANCAKE_SPEED_EVERY"`
	SpeedCap      *float64 `env:"PANCAKE_SPEED_CAP"`
	Discrete      *bool    `env:"PANCAKE_DISCRETE"`
	Mode          *string  `env:"PANCAKE_MODE"`
	CollapseStep  *float64 `env:"PANCAKE_COLLAPSE_STEP"`
	CollapseEvery *int     `env:"PANCAKE_COLLAPSE_EVERY"`
	CollapseCap   *float64 `env:"PANCAKE_COLLAPSE_CAP"`
}

var ErrUnknownPreset = errors.New("unknown preset")

// Load reads an optional .env (or the given files) and then the process
// environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.Rules(); err != nil {
		return err
	}
	if c.TickInterval <= 0 || c.PublishInterval <= 0 {
		return fmt.Errorf("tick and publish intervals must be positive")
	}
	if c.DropRate <= 0 || c.DropBurst < 1 {
		return fmt.Errorf("drop rate must be positive and burst at least 1")
	}
	if c.IdleTTL <= 0 || c.LeaderboardSize < 1 {
		return fmt.Errorf("idle ttl must be positive and leaderboard size at least 1")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// Rules builds the game rules for the configured preset and overrides.
func (c Config) Rules() (game.Rules, error) {
	g := c.Game
	var r game.Rules
	switch g.Preset {
	case "", "image":
		r = game.DefaultRules()
	case "emoji":
		r = game.EmojiRules()
	default:
		return game.Rules{}, fmt.Errorf("%w %q", ErrUnknownPreset, g.Preset)
	}

	set(&r.BoardWidth, g.BoardWidth)
	set(&r.InitialWidth, g.InitialWidth)
	set(&r.MinWidth, g.MinWidth)
	set(&r.SegmentHeight, g.SegmentHeight)
	set(&r.BoardHeight, g.BoardHeight)
	set(&r.MaxStack, g.MaxStack)
	set(&r.Discrete, g.Discrete)
	set(&r.Collapse.Step, g.CollapseStep)
	set(&r.Collapse.Every, g.CollapseEvery)
	set(&r.Collapse.Cap, g.CollapseCap)

	ramp, _ := r.Speed.(game.LinearRamp)
	set(&ramp.Base, g.SpeedBase)
	set(&ramp.Step, g.SpeedStep)
	set(&ramp.Every, g.SpeedEvery)
	set(&ramp.Cap, g.SpeedCap)
	r.Speed = ramp

	if g.Mode != nil {
		m, err := game.ParseMode(*g.Mode)
		if err != nil {
			return game.Rules{}, err
		}
		r.Mode = m
	}

	if err := r.Validate(); err != nil {
		return game.Rules{}, fmt.Errorf("game rules: %w", err)
	}
	return r, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Logger builds the process logger. Dev mode gives console output.
func (c Config) Logger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
