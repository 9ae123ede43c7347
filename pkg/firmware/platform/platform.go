// Package platform is the RTX shim: thread creation, events, mutexes and
// critical sections, mapped onto goroutines, channels and sync.Mutex. It is
// the Go rendition of the original firmware's thin OS abstraction layer —
// callers never see an OS-specific primitive, only these.
package platform

import "sync"

// ThreadFunction is a worker-thread entry point.
type ThreadFunction func(param interface{})

// CreateThread starts fn as a goroutine, mirroring the RTOS's fire-and-forget
// thread creation; priority is accepted for interface parity with the
// original but has no effect on the Go scheduler.
func CreateThread(fn ThreadFunction, priority int, param interface{}) {
	go fn(param)
}

// Event is a single-slot wake-up signal a worker thread blocks on; it
// coalesces repeated Set calls the way the original OS event object does
// (no queueing, just "something to do").
type Event struct {
	ch chan struct{}
}

// NewEvent creates an event in the cleared state.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{}, 1)}
}

// Set signals the event. A pending, unconsumed signal is not duplicated.
func (e *Event) Set() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the event is signalled, then clears it.
func (e *Event) Wait() {
	<-e.ch
}

// Chan exposes the underlying channel for use in a select alongside other
// events or a cancellation signal.
func (e *Event) Chan() <-chan struct{} {
	return e.ch
}

// Mutex is a renamed sync.Mutex so call sites read like the original
// MutexCreate/MutexTake/MutexGive triad while using Go's native primitive.
type Mutex struct {
	mu sync.Mutex
}

// NewMutex creates an unlocked mutex.
func NewMutex() *Mutex {
	return &Mutex{}
}

func (m *Mutex) Take() { m.mu.Lock() }
func (m *Mutex) Give() { m.mu.Unlock() }

// CriticalSection guards the short sections the original firmware protects
// with ENTER_CRITICAL/EXIT_CRITICAL: task-queue enqueue/dequeue and the
// wait-request pending bitmap. It is a plain mutex; on target this would
// disable interrupts instead, but the core never depends on that distinction.
type CriticalSection struct {
	mu sync.Mutex
}

func (c *CriticalSection) Enter() { c.mu.Lock() }
func (c *CriticalSection) Exit()  { c.mu.Unlock() }

// DebugFunction mirrors hwio.DebugFunction so platform-level debug emission
// (the request-scan timeout, queue-full events) can share the same callback
// contract without importing hwio.
type DebugFunction func(debugParam interface{}, debugValue int)

// debugCallback is the process-wide debug sink. AttachDebugFunc stores it;
// per the open question on HWCtrl_HW.c, the store is simply visible to
// subsequent calls to Debug — there is no further defined behaviour.
var (
	debugMu       sync.Mutex
	debugCallback DebugFunction
)

// AttachDebugFunc stores fn as the process-wide debug callback.
func AttachDebugFunc(fn DebugFunction) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugCallback = fn
}

// Debug invokes the stored debug callback, if any.
func Debug(debugParam interface{}, debugValue int) {
	debugMu.Lock()
	fn := debugCallback
	debugMu.Unlock()
	if fn != nil {
		fn(debugParam, debugValue)
	}
}

// PopCount and CountLeadingZeros mirror the original's use of
// __builtin_popcount/__builtin_clz for bitmap scanning (free-channel search,
// CohDataReady iteration).
func PopCount(v uint32) int {
	n := 0
	for v != 0 {
		v &= v - 1
		n++
	}
	return n
}

func CountLeadingZeros(v uint32) int {
	if v == 0 {
		return 32
	}
	n := 0
	for v&0x80000000 == 0 {
		v <<= 1
		n++
	}
	return n
}
