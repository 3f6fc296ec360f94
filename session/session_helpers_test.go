package session

import (
	"sync"
	"testing"
	"time"

	"pancake/game"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.once.Do(func() { close(f.stopped) })
}

// fire delivers one tick. It reports false if the loop already stopped.
func (f *fakeTicker) fire(at time.Time) bool {
	select {
	case f.ch <- at:
		return true
	case <-f.stopped:
		return false
	case <-time.After(2 * time.Second):
		return false
	}
}

func (f *fakeTicker) isStopped(t *testing.T) bool {
	t.Helper()
	select {
	case <-f.stopped:
		return true
	case <-time.After(time.Second):
		return false
	}
}

type fakeTickers struct {
	created chan *fakeTicker
}

func newFakeTickers() *fakeTickers {
	return &fakeTickers{created: make(chan *fakeTicker, 256)}
}

func (f *fakeTickers) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	f.created <- t
	return t
}

func (f *fakeTickers) next(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case tk := <-f.created:
		return tk
	case <-time.After(time.Second):
		t.Fatalf("no ticker created")
		return nil
	}
}

// zeroRand spawns every pancake at the left edge moving left.
type zeroRand struct{}

func (zeroRand) Float64() float64 { return 0 }
func (zeroRand) IntN(int) int     { return 0 }

type tickCall struct {
	snap    game.Snapshot
	publish bool
}

type recorder struct {
	calls chan tickCall
	fail  func(n int) error // n counts publish attempts from 1
	mu    sync.Mutex
	tries int
}

func newRecorder() *recorder {
	return &recorder{calls: make(chan tickCall, 128)}
}

func (r *recorder) subscriber(snap game.Snapshot, publish bool) error {
	r.calls <- tickCall{snap: snap, publish: publish}
	if !publish || r.fail == nil {
		return nil
	}
	r.mu.Lock()
	r.tries++
	n := r.tries
	r.mu.Unlock()
	return r.fail(n)
}

func (r *recorder) next(t *testing.T) tickCall {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for tick")
		return tickCall{}
	}
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, rules game.Rules, tickers *fakeTickers) *Registry {
	t.Helper()
	reg, err := New(Options{
		Rules:           rules,
		TickInterval:    200 * time.Millisecond,
		PublishInterval: time.Second,
		Tickers:         tickers,
		Now:             func() time.Time { return t0 },
		NewRand:         func() game.Rand { return zeroRand{} },
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func emojiUnbounded() game.Rules {
	r := game.EmojiRules()
	r.MaxStack = 0
	return r
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
