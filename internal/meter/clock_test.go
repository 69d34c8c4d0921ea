package meter

import "time"

// fakeClock lets rate tests advance time deterministically instead of
// sleeping in real time.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(0, 0)}
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func (c *fakeClock) now() time.Time {
	return c.t
}

// useClock swaps the package-level nowFunc for the duration of a test and
// returns a restore function.
func useClock(c *fakeClock) func() {
	prev := nowFunc
	nowFunc = c.now
	return func() { nowFunc = prev }
}
