package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTickInterval    = 200 * time.Millisecond
	DefaultPublishInterval = time.Second
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates the physics ticker for each scheduler run. Tests swap
// in hand-driven tickers.
type TickerFactory interface {
	NewTicker(d time.Duration) Ticker
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

type systemTickers struct{}

func (systemTickers) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

// handle is one scheduler run for one round. A drop that continues the round
// replaces it with a fresh one.
type handle struct {
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// guarded by the owning entry's mu
	cancelled   bool
	lastPublish time.Time
}

func (h *handle) cancel() {
	h.cancelled = true
	h.stopOnce.Do(func() { close(h.quit) })
}

// Scheduler advances rounds on a fixed physics tick and decides when a tick
// should also publish.
type Scheduler struct {
	tickEvery    time.Duration
	publishEvery time.Duration
	tickers      TickerFactory
	now          func() time.Time
	log          *zap.Logger
}

// start launches the loop for e. The caller holds e.mu.
func (s *Scheduler) start(e *entry) *handle {
	h := &handle{
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		lastPublish: s.now(),
	}
	t := s.tickers.NewTicker(s.tickEvery)
	go s.run(e, h, t)
	return h
}

func (s *Scheduler) run(e *entry, h *handle, t Ticker) {
	defer close(h.done)
	defer t.Stop()

	for {
		select {
		case <-h.quit:
			return
		case now := <-t.C():
			if !s.tick(e, h, now) {
				return
			}
		}
	}
}

// tick reports whether the loop should keep going.
func (s *Scheduler) tick(e *entry, h *handle, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A tick that raced a drop or a restart must not touch the new state.
	if h.cancelled || e.handle != h {
		s.log.Debug("stale tick dropped", zap.String("player", e.player))
		return false
	}
	if e.round == nil || e.round.Over() {
		return false
	}

	e.round.Advance()
	publish := now.Sub(h.lastPublish) >= s.publishEvery
	if e.sub == nil {
		return true
	}

	err := e.sub.fn(e.round.Snapshot(), publish)
	if !publish {
		return true
	}
	if err != nil {
		s.log.Warn("publish failed",
			zap.String("player", e.player),
			zap.Duration("since_last", now.Sub(h.lastPublish)),
			zap.Error(err),
		)
		return true
	}
	h.lastPublish = now
	return true
}
