// Package clock lets session expiry, the circuit breaker and background
// sweepers read time through an interface so tests can move it by hand.
package clock

import (
	"sync"
	"time"
)

// Clock provides the time operations used by the service.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NowUTC returns the current time in UTC. Use it for stored timestamps.
	NowUTC() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration

	// NewTicker returns a ticker firing every d.
	NewTicker(d time.Duration) Ticker
}

// Ticker wraps time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

// New returns a Clock backed by the time package.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time                  { return time.Now() }
func (realClock) NowUTC() time.Time               { return time.Now().UTC() }
func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Mock is a Clock that only moves when told to. Tickers created from it fire
// from Advance and Set.
type Mock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*mockTicker
}

// NewMock returns a Mock set to t.
func NewMock(t time.Time) *Mock {
	return &Mock{current: t}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// NowUTC returns the mock's current time in UTC.
func (m *Mock) NowUTC() time.Time {
	return m.Now().UTC()
}

// Since returns the mock duration since t.
func (m *Mock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// NewTicker returns a ticker driven by Advance. Ticks are dropped when the
// receiver is not keeping up, like time.Ticker.
func (m *Mock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &mockTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     m.current.Add(d),
		owner:    m,
	}
	m.tickers = append(m.tickers, t)
	return t
}

// Set moves the clock to t, firing any tickers that came due.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
	m.fire()
}

// Advance moves the clock forward by d, firing any tickers that came due.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
	m.fire()
}

func (m *Mock) fire() {
	for _, t := range m.tickers {
		if t.stopped || m.current.Before(t.next) {
			continue
		}
		select {
		case t.ch <- m.current:
		default:
		}
		for !m.current.Before(t.next) {
			t.next = t.next.Add(t.interval)
		}
	}
}

type mockTicker struct {
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
	owner    *Mock
}

func (t *mockTicker) C() <-chan time.Time { return t.ch }

func (t *mockTicker) Stop() {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	t.stopped = true
}
