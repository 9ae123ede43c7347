package channel

import "github.com/globsky/greta-oto/pkg/firmware/signal"

// bitSyncDataSize is the (boxed) payload size passed to Scheduler.AddToTask
// for bit-sync batches; task queues account space in DWORDs regardless of
// the Go value's real size, so this just needs to be a plausible constant.
const bitSyncDataSize = 16

// CollectBitSyncData accumulates Cor4 polarity-toggle history for the
// correlator at the prompt tap, batching 20 results before handing the
// batch to the signal-specific bit-sync task on the baseband queue.
func (c *Channel) CollectBitSyncData() {
	bs := &c.BitSyncData
	cor4 := c.PendingCoh[4]

	if !bs.HavePrev {
		bs.PrevCorData = cor4
		bs.HavePrev = true
		return
	}

	bs.PolarityToggle <<= 1
	if int(bs.PrevCorData.I)*int(cor4.I)+int(bs.PrevCorData.Q)*int(cor4.Q) < 0 {
		bs.PolarityToggle |= 1
	}
	bs.PrevCorData = cor4

	bs.CorDataCount++
	if bs.CorDataCount == 20 {
		bs.TimeTag = c.TrackingTime
		batch := *bs
		if c.Signal.Band == signal.L1CA {
			c.Scheduler.AddToTask(func(param interface{}) { c.gpsL1CABitSyncTask(param.(BitSyncData)) }, batch, bitSyncDataSize)
		} else {
			c.Scheduler.AddToTask(func(param interface{}) { c.galE1BitSyncTask(param.(BitSyncData)) }, batch, bitSyncDataSize)
		}
		bs.CorDataCount = 0
	}
}

// gpsL1CABitSyncTask accumulates a 20-ms-position toggle histogram across
// batches and declares success once one position reaches at least 5
// toggles and at least half the total, or failure after 100 toggles with
// no consensus.
func (c *Channel) gpsL1CABitSyncTask(batch BitSyncData) {
	maxCount, maxPos, total := 0, 0, 0
	for i := 0; i < 20; i++ {
		if batch.PolarityToggle&(1<<uint(19-i)) != 0 {
			c.ToggleCount[i]++
		}
		if c.ToggleCount[i] > maxCount {
			maxCount = c.ToggleCount[i]
			maxPos = i
		}
		total += c.ToggleCount[i]
	}

	if maxCount >= 5 && maxCount*2 >= total {
		pos := (maxPos + batch.TimeTag) % 20
		if pos == 0 {
			pos = 20
		}
		c.BitSyncResult = pos
	} else if total > 100 {
		c.BitSyncResult = -1
	}
}

// galE1BitSyncTask matches the 20-bit polarity-toggle pattern against the
// Galileo E1 secondary code's 25 possible rotations; ToggleCount[0] is
// reused as the no-match attempt counter.
func (c *Channel) galE1BitSyncTask(batch BitSyncData) {
	for i := 0; i < 25; i++ {
		if batch.PolarityToggle&0xfffff == signal.GalInvPos[i] {
			c.BitSyncResult = batch.TimeTag + (25-i)*4
			return
		}
	}
	c.ToggleCount[0]++
	if c.ToggleCount[0] == 10 {
		c.BitSyncResult = -1
	}
}

// dataSyncTask resolves the BDS B1C pilot secondary-code phase from a
// 24-bit polarity-toggle batch via signal.SyncPilotData. Galileo E1 and GPS
// L1C pilot matching are not done here; for those bands it returns without
// setting a result.
func (c *Channel) dataSyncTask(batch BitSyncData, secondCode *signal.PilotSecondCode) {
	if c.Signal.Band != signal.B1C {
		return
	}
	var dataWord uint32
	toggle := batch.PolarityToggle
	for i := 0; i < 24; i++ {
		dataWord <<= 1
		dataWord |= toggle & 1
		toggle >>= 1
	}
	c.BitSyncResult = signal.SyncPilotData(dataWord, secondCode, batch.TimeTag/10-24)
}
