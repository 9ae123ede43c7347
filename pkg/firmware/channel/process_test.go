package channel

import (
	"testing"

	"github.com/globsky/greta-oto/pkg/firmware/hwio"
	"github.com/stretchr/testify/require"
)

// fakeRegisters is a minimal, map-backed hwio.Registers double: enough to
// drive SyncCacheRead/SyncCacheWrite without a real memory-mapped backend.
type fakeRegisters struct {
	regs map[uint32]uint32
}

func newFakeRegisters() *fakeRegisters { return &fakeRegisters{regs: map[uint32]uint32{}} }

func (f *fakeRegisters) ReadReg(addr uint32) uint32         { return f.regs[addr] }
func (f *fakeRegisters) WriteReg(addr uint32, value uint32) { f.regs[addr] = value }
func (f *fakeRegisters) LoadMemory(dst []uint32, hwAddr uint32) {
	for i := range dst {
		dst[i] = f.regs[hwAddr+uint32(i)*4]
	}
}
func (f *fakeRegisters) SaveMemory(hwAddr uint32, src []uint32) {
	for i, v := range src {
		f.regs[hwAddr+uint32(i)*4] = v
	}
}
func (f *fakeRegisters) AttachISR(hwio.InterruptFunction)  {}
func (f *fakeRegisters) AttachDebugFunc(hwio.DebugFunction) {}
func (f *fakeRegisters) EnableRF()                          {}

func TestProcessCohSumAssemblesCompleteDumpFromCurrentCorrelatorZero(t *testing.T) {
	c := newTestChannel()
	c.SwitchTrackingStage(StageBitSync) // PendingUpdate/StageDetermination noise not relevant here
	hw := newFakeRegisters()

	// CurrentCorrelator()==0 and PendingCount==0 means this dump is complete
	// on its own; ProcessCohSum should copy coherent-sum words 1..7 (the
	// seven correlators after Cor0) into CohBuffer slot 0, positions 0..6,
	// and run ProcessCohData.
	for i := 0; i < 8; i++ {
		hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCoherentSumI0)+uint32(i)*4, uint32(i+1)<<16|1)
	}

	trackingTimeBefore := c.TrackingTime
	c.ProcessCohSum(hw, false)

	require.Greater(t, c.TrackingTime, trackingTimeBefore)
	for i := 0; i < CorrelatorNum; i++ {
		require.EqualValues(t, i+2, c.CohBuffer[i].I, "correlator %d", i)
	}
}

func TestComposeMeasurementReadsCodeAndCarrierState(t *testing.T) {
	c := newTestChannel()
	hw := newFakeRegisters()
	hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordPrnCount), 500)
	hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCarrierPhase), 0x1234)
	hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCarrierCount), 42)
	hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCodePhase), 0xABCD)
	c.WeekMsCounter = 1000

	m := c.ComposeMeasurement(hw)

	require.Equal(t, c.Logic, m.ChannelLogic)
	require.EqualValues(t, 0xABCD, m.CodePhase)
	require.EqualValues(t, 0x1234, m.CarrierPhase)
	require.EqualValues(t, 42, m.CarrierCount)
	require.Equal(t, 1000, m.WeekMsCount)
}

func TestSetEpochInputsFeedsProcessCohData(t *testing.T) {
	c := newTestChannel()
	c.Stage = StageTrack0
	c.DataStreamMode = DataStreamNone
	c.SetEpochInputs(0xF0F0F0F0, 5)

	require.NotPanics(t, func() { c.ProcessCohData() })
}
