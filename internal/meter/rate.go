// Package meter — rate.go
//
// EventRateMeter is a sliding-window frequency estimator with hysteresis
// against sparse ticks: windowed rather than exponentially smoothed, so a
// burst within one window reads as a rate immediately instead of climbing
// toward it.
//
// Semantics:
//   - tick() increments the in-window counter; once a full window has
//     elapsed since the window start, the current read() is latched into
//     lastRate, the counter resets, and the window start advances to now.
//   - read() returns 0 if more than two window lengths have passed with no
//     tick (the stream is dead); otherwise, if the in-flight count is small
//     (< hysteresisCount) and a nonzero lastRate is available, it returns
//     lastRate to avoid wild swings on partial windows; otherwise it
//     returns count / elapsed seconds, with a small additive epsilon to
//     avoid division by zero.
package meter

import (
	"sync"
	"time"
)

const (
	// defaultWindow is the default sliding window length.
	defaultWindow = time.Second

	// epsilon prevents division by zero when elapsed time is ~0.
	epsilon = 1e-8

	// hysteresisCount is the in-window sample count below which read()
	// prefers the latched lastRate over a noisy partial-window estimate.
	hysteresisCount = 6

	// staleAfter is the number of window lengths of silence after which
	// the stream is considered dead and read() reports 0.
	staleAfter = 2
)

// nowFunc is overridable in tests to control elapsed-time arithmetic
// deterministically.
var nowFunc = time.Now

// EventRateMeter estimates an event frequency in Hz over a sliding window.
// The zero value is not usable; construct with New.
type EventRateMeter struct {
	mu          sync.Mutex
	window      time.Duration
	windowStart time.Time
	count       uint64
	lastRate    float64
}

// New creates an EventRateMeter with the default 1s window.
func New() *EventRateMeter {
	return NewWithWindow(defaultWindow)
}

// NewWithWindow creates an EventRateMeter with the given window length.
// window must be > 0; a non-positive value is replaced by the default.
func NewWithWindow(window time.Duration) *EventRateMeter {
	if window <= 0 {
		window = defaultWindow
	}
	return &EventRateMeter{
		window:      window,
		windowStart: nowFunc(),
	}
}

// Tick records one event occurrence.
func (m *EventRateMeter) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickLocked()
}

func (m *EventRateMeter) tickLocked() {
	m.count++
	now := nowFunc()
	if now.Sub(m.windowStart) >= m.window {
		m.lastRate = m.readLocked(now)
		m.count = 0
		m.windowStart = now
	}
}

// Read returns the current estimated rate in Hz. Never negative.
func (m *EventRateMeter) Read() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readLocked(nowFunc())
}

func (m *EventRateMeter) readLocked(now time.Time) float64 {
	elapsed := now.Sub(m.windowStart)
	if elapsed >= staleAfter*m.window {
		return 0
	}
	if m.count < hysteresisCount && m.lastRate > 0 {
		return m.lastRate
	}
	secs := elapsed.Seconds() + epsilon
	return float64(m.count) / secs
}

// Window returns the configured window length.
func (m *EventRateMeter) Window() time.Duration {
	return m.window
}
