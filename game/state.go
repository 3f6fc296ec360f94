package game

// Internal truth for one player's round

type Status uint8

const (
	Active Status = iota
	Over
)

func (s Status) String() string {
	if s == Over {
		return "over"
	}
	return "active"
}

type Outcome uint8

const (
	Continues Outcome = iota
	GameOver
)

func (o Outcome) String() string {
	if o == GameOver {
		return "game_over"
	}
	return "continues"
}

// Rand is the slice of math/rand/v2 the round needs.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Round is not safe for concurrent use. Its owner serializes access.
type Round struct {
	rules  Rules
	rng    Rand
	score  int
	stack  []Segment
	moving Mover
	status Status
}

// Snapshot is a deep copy of a round, safe to pass between goroutines.
type Snapshot struct {
	Score  int
	Stack  []Segment
	Moving *Mover // nil once the round is over
	Status Status
	Height float64
}

func (r *Round) Score() int     { return r.score }
func (r *Round) Status() Status { return r.status }
func (r *Round) Over() bool     { return r.status == Over }
func (r *Round) Rules() Rules   { return r.rules }

func (r *Round) Snapshot() Snapshot {
	s := Snapshot{
		Score:  r.score,
		Stack:  make([]Segment, len(r.stack)),
		Status: r.status,
		Height: float64(len(r.stack)) * r.rules.SegmentHeight,
	}
	copy(s.Stack, r.stack)
	if r.status == Active {
		m := r.moving
		s.Moving = &m
	}
	return s
}
