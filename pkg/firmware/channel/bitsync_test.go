package channel

import (
	"testing"

	"github.com/globsky/greta-oto/pkg/firmware/signal"
	"github.com/stretchr/testify/require"
)

func TestGpsL1CABitSyncTaskDeclaresSuccessOnConsensus(t *testing.T) {
	c := NewChannel(0, nil)

	// Position 7 (bit 1<<12 of the 20-bit toggle mask) toggles every batch,
	// everywhere else stays quiet; after 5 batches position 7 has 5 toggles,
	// meeting both the >=5 and >=total/2 thresholds.
	batch := BitSyncData{PolarityToggle: 1 << 12, TimeTag: 0}
	for i := 0; i < 5; i++ {
		c.gpsL1CABitSyncTask(batch)
	}

	require.Equal(t, 7, c.BitSyncResult)
}

func TestGpsL1CABitSyncTaskFailsWithoutConsensus(t *testing.T) {
	c := NewChannel(0, nil)

	// Ten positions toggle equally often, so no single position ever
	// reaches half the total; after 11 batches the total (110) exceeds 100
	// and bit-sync gives up.
	pattern := uint32(0xAAAAA) // alternating bits, spreads toggles evenly over the 10 even positions
	for i := 0; i < 11; i++ {
		c.gpsL1CABitSyncTask(BitSyncData{PolarityToggle: pattern, TimeTag: 0})
	}

	require.Equal(t, -1, c.BitSyncResult)
}

func TestGalE1BitSyncTaskMatchesRotation(t *testing.T) {
	c := NewChannel(0, nil)
	// Any table entry is a legitimate 20-bit toggle pattern; feeding it back
	// must match its own rotation index.
	pattern := signal.GalInvPos[3]
	c.galE1BitSyncTask(BitSyncData{PolarityToggle: pattern, TimeTag: 40})
	require.Equal(t, 40+(25-3)*4, c.BitSyncResult)
}

func TestCollectBitSyncDataBuffersFirstSampleWithoutBatch(t *testing.T) {
	c := NewChannel(0, nil)
	c.Signal.Band = signal.L1CA
	c.Scheduler = &countingScheduler{}

	c.CollectBitSyncData()
	require.False(t, c.BitSyncData.CorDataCount > 0, "first correlator only seeds PrevCorData")
	require.True(t, c.BitSyncData.HavePrev)
}

type countingScheduler struct{ calls int }

func (s *countingScheduler) AddToTask(fn func(param interface{}), param interface{}, paramSize int) bool {
	s.calls++
	fn(param)
	return true
}
