package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pancake/game"
)

var (
	ErrInvalidPlayer = errors.New("player id is empty")
	ErrNoSession     = errors.New("no round for player")
	ErrClosed        = errors.New("registry closed")
)

// Subscriber receives every tick of a player's round. shouldPublish marks the
// ticks where a visible update is due; the returned error only matters for
// those. It runs with the player's entry locked and must not call back into
// the Registry for the same player.
type Subscriber func(snap game.Snapshot, shouldPublish bool) error

type Result struct {
	Snapshot game.Snapshot
	Outcome  game.Outcome
}

type Options struct {
	Rules           game.Rules // zero value means game.DefaultRules
	TickInterval    time.Duration
	PublishInterval time.Duration
	Tickers         TickerFactory
	Now             func() time.Time
	NewRand         func() game.Rand
	Leaderboard     *Leaderboard
	Logger          *zap.Logger
}

type subscription struct {
	fn Subscriber
}

// entry is everything the registry knows about one player. mu serializes the
// input path against that player's scheduler.
type entry struct {
	player string

	mu      sync.Mutex
	round   *game.Round
	handle  *handle
	sub     *subscription
	removed bool
	touched time.Time
}

// stopLocked cancels the running schedule, if any. The caller holds e.mu.
func (e *entry) stopLocked() *handle {
	h := e.handle
	if h != nil {
		h.cancel()
		e.handle = nil
	}
	return h
}

func (e *entry) idleLocked(now time.Time, maxIdle time.Duration) bool {
	return e.sub == nil && e.handle == nil && now.Sub(e.touched) >= maxIdle
}

// Registry holds at most one round per player and the scheduler run that
// drives it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	closed  atomic.Bool

	rules   game.Rules
	newRand func() game.Rand
	sched   *Scheduler
	board   *Leaderboard
	log     *zap.Logger
}

func New(opts Options) (*Registry, error) {
	if zeroRules(opts.Rules) {
		opts.Rules = game.DefaultRules()
	}
	if err := opts.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("game rules: %w", err)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = DefaultPublishInterval
	}
	if opts.Tickers == nil {
		opts.Tickers = systemTickers{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRand == nil {
		opts.NewRand = func() game.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	if opts.Leaderboard == nil {
		opts.Leaderboard = NewLeaderboard(DefaultLeaderboardSize)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*entry),
		rules:   opts.Rules,
		newRand: opts.NewRand,
		board:   opts.Leaderboard,
		log:     opts.Logger,
		sched: &Scheduler{
			tickEvery:    opts.TickInterval,
			publishEvery: opts.PublishInterval,
			tickers:      opts.Tickers,
			now:          opts.Now,
			log:          opts.Logger,
		},
	}, nil
}

func zeroRules(r game.Rules) bool {
	return r.Speed == nil && r.BoardWidth == 0 && r.InitialWidth == 0 &&
		r.MinWidth == 0 && r.MaxStack == 0 && r.BoardHeight == 0
}

func (r *Registry) lookup(player string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[player]
}

func (r *Registry) getOrCreate(player string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[player]; ok {
		return e
	}
	e := &entry{player: player, touched: r.sched.now()}
	r.entries[player] = e
	return e
}

// lockLive returns the player's entry locked, creating it if needed. It
// retries when it loses a race with Remove or Evict.
func (r *Registry) lockLive(player string) *entry {
	for {
		e := r.getOrCreate(player)
		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
	}
}

// StartRound discards any previous round for the player and starts a new one.
func (r *Registry) StartRound(player string) (game.Snapshot, error) {
	if player == "" {
		return game.Snapshot{}, ErrInvalidPlayer
	}
	if r.closed.Load() {
		return game.Snapshot{}, ErrClosed
	}
	e := r.lockLive(player)
	defer e.mu.Unlock()
	// Close may have run while we waited for the lock.
	if r.closed.Load() {
		return game.Snapshot{}, ErrClosed
	}

	replaced := e.stopLocked() != nil
	e.round = game.NewRound(r.rules, r.newRand())
	e.handle = r.sched.start(e)
	e.touched = r.sched.now()

	r.log.Info("round started", zap.String("player", player), zap.Bool("replaced", replaced))
	return e.round.Snapshot(), nil
}

// Drop places the player's moving pancake. The schedule is cancelled before
// the round changes and restarted only if the round goes on. A finished round
// goes on the leaderboard.
func (r *Registry) Drop(player string) (Result, error) {
	e := r.lookup(player)
	if e == nil {
		return Result{}, ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || e.round == nil {
		return Result{}, ErrNoSession
	}
	if r.closed.Load() {
		return Result{}, ErrClosed
	}

	wasOver := e.round.Over()
	e.stopLocked()
	out := e.round.Drop()
	if out == game.Continues {
		e.handle = r.sched.start(e)
	}
	now := r.sched.now()
	e.touched = now

	snap := e.round.Snapshot()
	switch {
	case out == game.Continues:
		r.log.Debug("pancake placed", zap.String("player", player), zap.Int("score", snap.Score))
	case !wasOver:
		best := r.board.Record(Score{Player: player, Score: snap.Score, At: now})
		r.log.Info("round over",
			zap.String("player", player),
			zap.Int("score", snap.Score),
			zap.Bool("personal_best", best),
		)
	}
	return Result{Snapshot: snap, Outcome: out}, nil
}

func (r *Registry) Get(player string) (game.Snapshot, bool) {
	e := r.lookup(player)
	if e == nil {
		return game.Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || e.round == nil {
		return game.Snapshot{}, false
	}
	return e.round.Snapshot(), true
}

// EndRound stops the player's schedule. The round stays readable through Get
// until the next StartRound.
func (r *Registry) EndRound(player string) {
	e := r.lookup(player)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.touched = r.sched.now()
}

// Subscribe routes the player's ticks to fn, replacing any earlier
// subscriber. The returned func detaches fn and ends the round, unless a newer
// subscription has taken over.
func (r *Registry) Subscribe(player string, fn Subscriber) (unsubscribe func()) {
	if player == "" || fn == nil {
		return func() {}
	}
	e := r.lockLive(player)
	sub := &subscription{fn: fn}
	e.sub = sub
	e.touched = r.sched.now()
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.sub != sub {
			return
		}
		e.sub = nil
		e.stopLocked()
		e.touched = r.sched.now()
	}
}

// Remove forgets the player entirely. Leaderboard scores are kept.
func (r *Registry) Remove(player string) {
	r.mu.Lock()
	e, ok := r.entries[player]
	delete(r.entries, player)
	r.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = true
	e.sub = nil
	e.stopLocked()
}

// Evict forgets players with no subscriber and no running schedule that have
// been untouched for at least maxIdle. It returns how many were removed.
func (r *Registry) Evict(maxIdle time.Duration) int {
	now := r.sched.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for player, e := range r.entries {
		e.mu.Lock()
		if e.idleLocked(now, maxIdle) {
			e.removed = true
			delete(r.entries, player)
			n++
		}
		e.mu.Unlock()
	}
	if n > 0 {
		r.log.Debug("evicted idle players", zap.Int("count", n), zap.Int("remaining", len(r.entries)))
	}
	return n
}

// EvictEvery runs Evict on every tick until ctx is done.
func (r *Registry) EvictEvery(ctx context.Context, every, maxIdle time.Duration) {
	t := r.sched.tickers.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			r.Evict(maxIdle)
		}
	}
}

// Leaderboard returns up to n best finished rounds, highest score first.
func (r *Registry) Leaderboard(n int) []Score {
	return r.board.Top(n)
}

// Len returns the number of known players.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close stops every schedule and waits for the loops to exit. Rounds stay
// readable, but no round can be started or advanced afterwards.
func (r *Registry) Close() {
	r.closed.Store(true)

	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var stopped []*handle
	for _, e := range entries {
		e.mu.Lock()
		if h := e.stopLocked(); h != nil {
			stopped = append(stopped, h)
		}
		e.mu.Unlock()
	}
	for _, h := range stopped {
		<-h.done
	}
}
