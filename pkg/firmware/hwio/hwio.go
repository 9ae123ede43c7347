// Package hwio is the hardware abstraction layer: memory-mapped register
// read/write, bulk copy to/from the tracking-engine and acquisition-engine
// buffers, ISR attachment, and RF enable. Everything here is an opaque,
// target-dependent primitive — the rest of the firmware core calls these as
// a boundary, never reaching past it into real register layout.
package hwio

// InterruptFunction is the single top-level baseband ISR the portal attaches
// at boot.
type InterruptFunction func(cause uint32)

// DebugFunction receives firmware debug emissions: an opaque parameter and a
// value. AttachDebugFunc only stores the callback; per the open question on
// HWCtrl_HW.c's ambiguous AttachDebugFunc body, the contract is "the store is
// visible to subsequent debug emissions" and nothing more.
type DebugFunction func(debugParam interface{}, debugValue int)

// Registers is the hardware access surface. Implementations are either a
// real memory-mapped register file (MemoryMapped) or a deterministic
// sample-block simulation (Simulated) that drives the whole pipeline to
// completion for tests and the basebandsim CLI.
type Registers interface {
	// ReadReg/WriteReg access a single 32-bit register by address.
	ReadReg(addr uint32) uint32
	WriteReg(addr uint32, value uint32)

	// LoadMemory/SaveMemory bulk-copy to/from a baseband memory region (a
	// per-channel HW-SB or an AE config block) in 32-bit words.
	LoadMemory(dst []uint32, hwAddr uint32)
	SaveMemory(hwAddr uint32, src []uint32)

	// AttachISR maps the single top-level interrupt service function.
	AttachISR(isr InterruptFunction)
	// AttachDebugFunc stores the debug emission callback.
	AttachDebugFunc(fn DebugFunction)

	// EnableRF turns on sample acquisition. On a simulation backend this
	// drives the whole sample loop to completion, ticking the scheduler
	// in between blocks; on target it just flips the RF front end on.
	EnableRF()
}
