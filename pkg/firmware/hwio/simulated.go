package hwio

import "sync"

// Simulated is a deterministic, single-threaded Registers implementation for
// tests and the basebandsim CLI. EnableRF drives a fixed number of 1ms
// sample blocks to completion, invoking a caller-supplied Ticker between
// blocks so the scheduler advances in step with simulated time instead of
// wall-clock interrupts.
type Simulated struct {
	*MemoryMapped

	// Ticker is called once per simulated millisecond. Simulated raises no
	// interrupts itself; any interrupt cause for the tick is raised by the
	// Ticker via RaiseInterrupt. It stands in for the hardware sample clock
	// driving the baseband ISR.
	Ticker func(tickMs int)

	mu        sync.Mutex
	blockCount int
	running    bool
}

// NewSimulated wraps a fresh MemoryMapped register file with a sample-block
// driver. blockCount is the number of 1ms ticks EnableRF will advance
// through.
func NewSimulated(blockCount int) *Simulated {
	return &Simulated{
		MemoryMapped: NewMemoryMapped(),
		blockCount:   blockCount,
	}
}

// EnableRF runs the configured number of simulated 1ms blocks, calling
// Ticker after each one. Matches §4.3: "on simulation backends, EnableRF
// drives the whole sample loop to completion and ticks the scheduler in
// between."
func (s *Simulated) EnableRF() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.MemoryMapped.EnableRF()

	for tick := 0; tick < s.blockCount; tick++ {
		if s.Ticker != nil {
			s.Ticker(tick)
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

var _ Registers = (*Simulated)(nil)
