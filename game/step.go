package game

// NewRound starts an Active round. The first pancake enters at the left edge
// moving right. rules must be valid (see Rules.Validate).
func NewRound(rules Rules, rng Rand) *Round {
	return &Round{
		rules:  rules,
		rng:    rng,
		stack:  make([]Segment, 0, 16),
		status: Active,
		moving: Mover{
			Segment:   Segment{Position: 0, Width: rules.InitialWidth},
			Direction: 1,
			Speed:     rules.Speed.Speed(0),
		},
	}
}

// Advance moves the pancake one physics step. It does nothing once the round
// is over.
func (r *Round) Advance() {
	if r.status == Over {
		return
	}
	m := &r.moving
	m.Position, m.Direction = Reflect(m.Position, m.Width, m.Direction, m.Speed, r.rules.BoardWidth)
}

// Drop freezes the moving pancake onto the stack.
func (r *Round) Drop() Outcome {
	if r.status == Over {
		return GameOver
	}

	placed, ok := r.place()
	if !ok {
		r.status = Over
		return GameOver
	}
	r.stack = append(r.stack, placed)
	r.score++

	if r.collapsed() || r.reachedTop() {
		r.status = Over
		return GameOver
	}

	r.spawn(placed.Width)
	return Continues
}

// place returns the segment that would land on the stack, or false when the
// drop misses or trims below the minimum width.
func (r *Round) place() (Segment, bool) {
	landing := r.moving.Segment
	if len(r.stack) == 0 || r.rules.Mode == ModeChance {
		return landing, true
	}
	trimmed, ok := Overlap(landing, r.stack[len(r.stack)-1])
	if !ok || trimmed.Width < r.rules.MinWidth {
		return Segment{}, false
	}
	return trimmed, true
}

func (r *Round) collapsed() bool {
	if r.rules.Mode != ModeChance {
		return false
	}
	chance := r.rules.Collapse.Chance(len(r.stack))
	return chance > 0 && r.rng.Float64() < chance
}

func (r *Round) reachedTop() bool {
	n := len(r.stack)
	if r.rules.MaxStack > 0 && n >= r.rules.MaxStack {
		return true
	}
	if r.rules.BoardHeight > 0 && r.rules.SegmentHeight > 0 &&
		float64(n)*r.rules.SegmentHeight > r.rules.BoardHeight {
		return true
	}
	return false
}

func (r *Round) spawn(width float64) {
	room := r.rules.BoardWidth - width
	var pos float64
	switch {
	case room <= 0:
		pos = 0
	case r.rules.Discrete:
		pos = float64(r.rng.IntN(int(room) + 1))
	default:
		pos = r.rng.Float64() * room
	}
	dir := 1
	if r.rng.IntN(2) == 0 {
		dir = -1
	}
	r.moving = Mover{
		Segment:   Segment{Position: pos, Width: width},
		Direction: dir,
		Speed:     r.rules.Speed.Speed(r.score),
	}
}
