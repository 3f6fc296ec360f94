package game

// Segment is a horizontal interval on the board. Stacked pancakes and the
// moving pancake are both segments.
type Segment struct {
	Position float64
	Width    float64
}

func (s Segment) Right() float64 {
	return s.Position + s.Width
}

// Mover is the pancake sliding above the stack.
type Mover struct {
	Segment
	Direction int // -1 left, +1 right
	Speed     float64
}

// Reflect moves a segment by direction*speed and bounces it off the board
// edges. The returned position always lies in [0, boardWidth-width] as long
// as width <= boardWidth.
func Reflect(position, width float64, direction int, speed, boardWidth float64) (float64, int) {
	position += float64(direction) * speed
	if position <= 0 {
		return 0, 1
	}
	if position+width >= boardWidth {
		return boardWidth - width, -1
	}
	return position, direction
}

// Overlap returns the shared part of a and b. Intervals that only touch at an
// endpoint do not overlap.
func Overlap(a, b Segment) (Segment, bool) {
	left := max(a.Position, b.Position)
	right := min(a.Right(), b.Right())
	if right <= left {
		return Segment{}, false
	}
	width := min(right-left, a.Width, b.Width)
	return Segment{Position: left, Width: width}, true
}
