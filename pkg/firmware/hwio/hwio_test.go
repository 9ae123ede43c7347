package hwio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMappedRegisterRoundTrip(t *testing.T) {
	m := NewMemoryMapped()
	m.WriteReg(RegAEThreshold, 42)
	assert.Equal(t, uint32(42), m.ReadReg(RegAEThreshold))
	assert.Equal(t, uint32(0), m.ReadReg(RegAECarrierFreq), "unwritten registers read as zero")
}

func TestMemoryMappedMemoryRoundTrip(t *testing.T) {
	m := NewMemoryMapped()
	m.SaveMemory(TEChannelBase(3), []uint32{1, 2, 3})
	dst := make([]uint32, 5)
	m.LoadMemory(dst, TEChannelBase(3))
	assert.Equal(t, []uint32{1, 2, 3, 0, 0}, dst, "short reads beyond saved data pad with zero")
}

func TestMemoryMappedISRDispatch(t *testing.T) {
	m := NewMemoryMapped()
	var gotCause uint32
	m.AttachISR(func(cause uint32) { gotCause = cause })
	m.RaiseInterrupt(CauseMask(true, false, false, false))
	assert.Equal(t, uint32(1<<IntBitCohSum), gotCause)
}

func TestMemoryMappedDebugFunc(t *testing.T) {
	m := NewMemoryMapped()
	var gotParam interface{}
	var gotValue int
	m.AttachDebugFunc(func(p interface{}, v int) {
		gotParam = p
		gotValue = v
	})
	m.Debug("queue-full", 7)
	assert.Equal(t, "queue-full", gotParam)
	assert.Equal(t, 7, gotValue)
}

func TestSimulatedDrivesTicker(t *testing.T) {
	s := NewSimulated(10)
	ticks := 0
	s.Ticker = func(tickMs int) { ticks++ }
	s.EnableRF()
	require.Equal(t, 10, ticks)
}

func TestStateBufferBitfields(t *testing.T) {
	var sb StateBuffer
	sb.SetCoherentNumber(20)
	assert.Equal(t, uint32(20), sb.CoherentNumber())

	sb.SetNHConfig(0x1abcdef, 25)
	assert.Equal(t, uint32(0x1abcdef), sb.NHCode())
	assert.Equal(t, uint32(25), sb.NHLength())
}

func TestCauseMaskRoundTrip(t *testing.T) {
	c := CauseMask(true, true, false, true)
	assert.NotEqual(t, uint32(0), c&(1<<IntBitCohSum))
	assert.NotEqual(t, uint32(0), c&(1<<IntBitMeasurement))
	assert.Equal(t, uint32(0), c&(1<<IntBitRequest))
	assert.NotEqual(t, uint32(0), c&(1<<IntBitAE))
}
