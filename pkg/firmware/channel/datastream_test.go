package channel

import (
	"testing"

	"github.com/globsky/greta-oto/pkg/firmware/hwio"
	"github.com/globsky/greta-oto/pkg/firmware/signal"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataStreamSoftwarePathDispatchesOn32Bits(t *testing.T) {
	c := newTestChannel() // L1CA, no secondary PRN: software-accumulate path
	c.Stage = StageTrack0
	sched := &countingScheduler{}
	c.Scheduler = sched
	c.DataStream.TotalAccTime = c.CoherentNumber // dispatch every coherent epoch

	for i := 0; i < 32; i++ {
		c.PendingCoh[4] = hwio.ComplexCorr{I: int16(100 - 2*(i%5))}
		c.DecodeDataStream(0, i)
	}

	require.Equal(t, 1, sched.calls, "one dispatch after accumulating 32 demodulated bits")
	require.Equal(t, 0, c.DataStream.BitCount, "counter resets after dispatch")
}

func TestDecodeDataStreamHardwarePathPacksBitsMSBFirst(t *testing.T) {
	c := newTestChannel()
	c.Signal.Band = signal.B1C
	c.HasSecondaryPRN = true
	c.DataStreamMode = DataStream8Bit
	c.DataStream.TotalAccTime = 1 // dispatch every call, 4 calls of 8 bits = 32 bits
	sched := &countingScheduler{}
	c.Scheduler = sched

	c.DecodeDataStream(0xAA, 0)
	c.DecodeDataStream(0xBB, 1)
	c.DecodeDataStream(0xCC, 2)
	c.DecodeDataStream(0xDD, 3)

	require.Equal(t, 1, sched.calls, "one 32-bit batch dispatched after 4 8-bit symbols")
}
