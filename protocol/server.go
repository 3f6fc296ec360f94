package protocol

import "pancake/game"

type Welcome struct {
	V          int     `json:"v"`
	PlayerID   string  `json:"playerId"`
	TickMs     int64   `json:"tickMs"`
	PublishMs  int64   `json:"publishMs"`
	BoardWidth float64 `json:"boardWidth"`
}

type State struct {
	Score   int               `json:"score"`
	Status  string            `json:"status"`
	Stack   []SegmentSnapshot `json:"stack"`
	Moving  *MoverSnapshot    `json:"moving"`
	Height  float64           `json:"height"`
	Outcome string            `json:"outcome,omitempty"` // only on drop replies
}

type SegmentSnapshot struct {
	X float64 `json:"x"`
	W float64 `json:"w"`
}

type MoverSnapshot struct {
	X     float64 `json:"x"`
	W     float64 `json:"w"`
	Dir   int     `json:"dir"`
	Speed float64 `json:"speed"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

const (
	ErrCodeNoRound     = "no_round"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeBadMessage  = "bad_message"
	ErrCodeBadVersion  = "bad_version"
	ErrCodeUnavailable = "unavailable"
)

// Leaderboard is the body of GET /leaderboard.
type Leaderboard struct {
	Scores []LeaderboardEntry `json:"scores"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
	At       string `json:"at"`
}

func NewState(s game.Snapshot) State {
	st := State{
		Score:  s.Score,
		Status: s.Status.String(),
		Stack:  make([]SegmentSnapshot, 0, len(s.Stack)),
		Height: s.Height,
	}
	for _, seg := range s.Stack {
		st.Stack = append(st.Stack, SegmentSnapshot{X: seg.Position, W: seg.Width})
	}
	if m := s.Moving; m != nil {
		st.Moving = &MoverSnapshot{X: m.Position, W: m.Width, Dir: m.Direction, Speed: m.Speed}
	}
	return st
}
