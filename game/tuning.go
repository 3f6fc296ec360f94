package game

import (
	"errors"
	"fmt"
	"math"
)

// Image bot board, the most complete of the original variants.
const (
	BoardWidth     = 600.0
	InitialWidth   = 280.0 // plate width minus a margin
	MinTrimWidth   = 30.0
	SegmentHeight  = 20.0
	BoardHeight    = 600.0 // plate top to the board-top boundary
	BaseSpeed      = 5.0
	SpeedStep      = 1.0
	SpeedEvery     = 5
	SpeedCap       = 10.0
	CollapseStep   = 0.05
	CollapseEvery  = 5
	CollapseCap    = 0.5
	EmojiWidth     = 10.0
	EmojiPancake   = 5.0
	EmojiMaxStack  = 15
	EmojiMinWidth  = 1.0
	EmojiBaseSpeed = 1.0
)

type Mode uint8

const (
	// ModeGeometric trims every placement against the top of the stack.
	ModeGeometric Mode = iota
	// ModeChance never trims; the tower collapses at random as it grows.
	ModeChance
)

func (m Mode) String() string {
	switch m {
	case ModeGeometric:
		return "geometric"
	case ModeChance:
		return "chance"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode maps a config value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "geometric":
		return ModeGeometric, nil
	case "chance":
		return ModeChance, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// SpeedRamp gives the mover speed for a score. Implementations must be
// non-decreasing in score.
type SpeedRamp interface {
	Speed(score int) float64
}

type SpeedFunc func(score int) float64

func (f SpeedFunc) Speed(score int) float64 { return f(score) }

// LinearRamp adds Step for every Every points scored, up to Cap on top of Base.
type LinearRamp struct {
	Base  float64
	Step  float64
	Every int
	Cap   float64
}

func (r LinearRamp) Speed(score int) float64 {
	if r.Every <= 0 || score <= 0 {
		return r.Base
	}
	return r.Base + math.Min(r.Step*float64(score/r.Every), r.Cap)
}

// CollapseRule is the chance of the tower falling at a given height in
// ModeChance.
type CollapseRule struct {
	Step  float64
	Every int
	Cap   float64
}

func (c CollapseRule) Chance(height int) float64 {
	if c.Every <= 0 || height <= 1 {
		return 0
	}
	return math.Min(c.Step*float64(height/c.Every), c.Cap)
}

type Rules struct {
	BoardWidth    float64
	InitialWidth  float64
	MinWidth      float64 // narrower trims end the round
	SegmentHeight float64
	BoardHeight   float64 // 0 disables the board-top check
	MaxStack      int     // 0 disables the stack count check
	Speed         SpeedRamp
	Discrete      bool // spawn on whole units
	Mode          Mode
	Collapse      CollapseRule
}

func DefaultRules() Rules {
	return Rules{
		BoardWidth:    BoardWidth,
		InitialWidth:  InitialWidth,
		MinWidth:      MinTrimWidth,
		SegmentHeight: SegmentHeight,
		BoardHeight:   BoardHeight,
		Speed:         LinearRamp{Base: BaseSpeed, Step: SpeedStep, Every: SpeedEvery, Cap: SpeedCap},
		Mode:          ModeGeometric,
		Collapse:      CollapseRule{Step: CollapseStep, Every: CollapseEvery, Cap: CollapseCap},
	}
}

// EmojiRules is the ten-cell text board.
func EmojiRules() Rules {
	return Rules{
		BoardWidth:   EmojiWidth,
		InitialWidth: EmojiPancake,
		MinWidth:     EmojiMinWidth,
		MaxStack:     EmojiMaxStack,
		Speed:        LinearRamp{Base: EmojiBaseSpeed},
		Discrete:     true,
		Mode:         ModeGeometric,
		Collapse:     CollapseRule{Step: CollapseStep, Every: CollapseEvery, Cap: CollapseCap},
	}
}

var (
	ErrBoardWidth   = errors.New("board width must be positive")
	ErrInitialWidth = errors.New("initial width must be in (0, board width]")
	ErrNegative     = errors.New("thresholds must not be negative")
	ErrNoSpeed      = errors.New("speed ramp is required")
)

func (r Rules) Validate() error {
	if r.BoardWidth <= 0 {
		return ErrBoardWidth
	}
	if r.InitialWidth <= 0 || r.InitialWidth > r.BoardWidth {
		return ErrInitialWidth
	}
	if r.MinWidth < 0 || r.SegmentHeight < 0 || r.BoardHeight < 0 || r.MaxStack < 0 {
		return ErrNegative
	}
	if r.Speed == nil {
		return ErrNoSpeed
	}
	if r.Speed.Speed(0) <= 0 {
		return fmt.Errorf("speed at score 0 must be positive, got %v", r.Speed.Speed(0))
	}
	return nil
}
