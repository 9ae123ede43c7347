package platform

import "time"

// Clock is the baseband tick source: a monotonically increasing millisecond
// counter every timestamped firmware structure (TrackingTime, TickCount,
// AcqBufferTimeTag) is measured against. On target this is driven by the
// hardware sample clock; TickGet here is a thin wrapper so tests and the
// simulation backend can substitute a deterministic source.
type Clock struct {
	start time.Time
}

// NewClock starts a new tick source at "now".
func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// TickGet returns the milliseconds elapsed since the clock started.
func (c *Clock) TickGet() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// Sleepms blocks the calling goroutine for ms milliseconds.
func Sleepms(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// SimClock is a deterministic tick source for the simulation backend and
// tests: TickGet returns whatever was last set by Advance, never wall time.
type SimClock struct {
	ms uint32
}

func (c *SimClock) TickGet() uint32 { return c.ms }

// Advance moves the simulated clock forward by deltaMs milliseconds.
func (c *SimClock) Advance(deltaMs int) { c.ms += uint32(deltaMs) }
