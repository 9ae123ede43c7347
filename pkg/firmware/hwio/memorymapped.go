package hwio

import "sync"

// MemoryMapped is a production Registers implementation backed by a plain
// Go map of address to word, standing in for the real memory-mapped
// register file on target. It never uses unsafe pointer arithmetic; callers
// address registers purely by the opaque uint32 addresses in regmap.go.
type MemoryMapped struct {
	mu        sync.Mutex
	regs      map[uint32]uint32
	mem       map[uint32][]uint32
	isr       InterruptFunction
	debugFunc DebugFunction
}

// NewMemoryMapped returns an empty register file.
func NewMemoryMapped() *MemoryMapped {
	return &MemoryMapped{
		regs: make(map[uint32]uint32),
		mem:  make(map[uint32][]uint32),
	}
}

func (m *MemoryMapped) ReadReg(addr uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}

func (m *MemoryMapped) WriteReg(addr uint32, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = value
}

func (m *MemoryMapped) LoadMemory(dst []uint32, hwAddr uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.mem[hwAddr]
	n := copy(dst, src)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func (m *MemoryMapped) SaveMemory(hwAddr uint32, src []uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]uint32, len(src))
	copy(buf, src)
	m.mem[hwAddr] = buf
}

func (m *MemoryMapped) AttachISR(isr InterruptFunction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isr = isr
}

func (m *MemoryMapped) AttachDebugFunc(fn DebugFunction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugFunc = fn
}

// EnableRF on a target implementation just flips the RF front end on; the
// sample stream then drives real interrupts through AttachISR's callback.
func (m *MemoryMapped) EnableRF() {
	m.mu.Lock()
	m.regs[RegBBEnable] = 1
	m.mu.Unlock()
}

// RaiseInterrupt lets a test (or a real interrupt line shim) invoke the
// attached ISR directly, as if the hardware had just raised cause.
func (m *MemoryMapped) RaiseInterrupt(cause uint32) {
	m.mu.Lock()
	isr := m.isr
	m.mu.Unlock()
	if isr != nil {
		isr(cause)
	}
}

// Debug invokes the attached debug callback, if any, mirroring how the real
// firmware's DEBUG_OUTPUT macro reaches the stored function.
func (m *MemoryMapped) Debug(debugParam interface{}, debugValue int) {
	m.mu.Lock()
	fn := m.debugFunc
	m.mu.Unlock()
	if fn != nil {
		fn(debugParam, debugValue)
	}
}

var _ Registers = (*MemoryMapped)(nil)
