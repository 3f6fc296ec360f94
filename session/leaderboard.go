package session

import (
	"sort"
	"sync"
	"time"
)

const DefaultLeaderboardSize = 100

// Score is one player's best finished round.
type Score struct {
	Player string
	Score  int
	At     time.Time
}

// Leaderboard keeps the best score per player, highest first. Only the top
// capacity players are retained. Ties keep the earlier score ahead.
type Leaderboard struct {
	mu       sync.RWMutex
	capacity int
	scores   []Score
}

func NewLeaderboard(capacity int) *Leaderboard {
	if capacity <= 0 {
		capacity = DefaultLeaderboardSize
	}
	return &Leaderboard{capacity: capacity}
}

// Record stores s if it beats the player's previous best. It reports whether
// the board changed.
func (b *Leaderboard) Record(s Score) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, old := range b.scores {
		if old.Player != s.Player {
			continue
		}
		if s.Score <= old.Score {
			return false
		}
		b.scores = append(b.scores[:i], b.scores[i+1:]...)
		break
	}

	i := sort.Search(len(b.scores), func(i int) bool { return b.scores[i].Score < s.Score })
	if i >= b.capacity {
		return false
	}
	b.scores = append(b.scores, Score{})
	copy(b.scores[i+1:], b.scores[i:])
	b.scores[i] = s
	if len(b.scores) > b.capacity {
		b.scores = b.scores[:b.capacity]
	}
	return true
}

// Top returns up to n best scores. n <= 0 returns all of them.
func (b *Leaderboard) Top(n int) []Score {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > len(b.scores) {
		n = len(b.scores)
	}
	out := make([]Score, n)
	copy(out, b.scores[:n])
	return out
}

func (b *Leaderboard) Best(player string) (Score, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.scores {
		if s.Player == player {
			return s, true
		}
	}
	return Score{}, false
}
