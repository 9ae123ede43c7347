package channel

import (
	"github.com/globsky/greta-oto/pkg/firmware/hwio"
	"github.com/globsky/greta-oto/pkg/firmware/signal"
)

// MsInWeek is the number of milliseconds in a GNSS week, used to roll
// WeekMsCounter over at the week boundary.
const MsInWeek = 7 * 24 * 3600 * 1000

// ProcessCohSum handles the coherent-sum-ready interrupt for this channel:
// it reads the hardware's current correlator index, reassembles a complete
// 8-correlator coherent dump (carrying over a correlator's worth of data
// that straddled two interrupts), and once a full dump is available, runs
// ProcessCohData and rotates the dump into CohBuffer at the current
// FftCount slot.
//
// overwriteProtect mirrors TE_OVERWRITE_PROTECT_CHANNEL: when set, the
// hardware held back the last published coherent word rather than
// overwriting it mid-read; this core doesn't special-case that beyond what
// SyncCacheRead already re-reads, so the parameter exists for interface
// fidelity with §4.4.1's ISR dispatch loop rather than changing behaviour.
func (c *Channel) ProcessCohSum(hw hwio.Registers, overwriteProtect bool) {
	c.StateBufferCache.CorrState = hw.ReadReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCorrState))
	currentCor := int(c.StateBufferCache.CurrentCorrelator())
	cohCount := int(c.StateBufferCache.CoherentCount())
	completeData := true
	if c.PendingCount == 0 && currentCor != 0 {
		completeData = cohCount == 0 && currentCor == 1
	}

	c.SyncCacheRead(hw, hwio.ReadData)
	cohSlot := c.CohBuffer[c.FftCount*CorrelatorNum : c.FftCount*CorrelatorNum+CorrelatorNum]

	if completeData {
		var pending [8]hwio.ComplexCorr
		copy(pending[:c.PendingCount], c.PendingCoh[:c.PendingCount])
		copy(pending[c.PendingCount:], c.StateBufferCache.CoherentSum[c.PendingCount:])
		copy(c.PendingCoh[:], pending[:])
		copy(cohSlot, c.PendingCoh[1:1+CorrelatorNum])
		c.PendingCount = 0
		c.ProcessCohData()
	}

	if currentCor != 0 && cohCount == c.CoherentNumber-1 {
		copy(c.PendingCoh[:currentCor], c.StateBufferCache.CoherentSum[:currentCor])
		c.PendingCount = currentCor
	}

	// BDS B1C pilot channels track the 1800-bit secondary code 20 symbols at
	// a time; there is no discoverable NH_SEGMENT_UPDATE flag to port
	// literally, so the B1C band check stands in for "this channel is in
	// active NH-segment mode", matching dataSyncTask's own B1C-only gate
	// (GPS L1C and Galileo E1 pilot secondary-code handling are not
	// characterised in the retrieved source; E1's is the separate GalInvPos
	// rotation search in bitsync.go, not NH counting).
	if c.Signal.Band == signal.B1C && c.StateBufferCache.NHCount() >= 20 {
		c.updateNHSegment(hw, pilotSecondCodeFor(c.Signal))
	}
}

// updateNHSegment rewrites NHConfig with the next 24-bit slice of the
// 1800-bit secondary code at FrameCounter and resets CorrState's NH-count,
// ported from ChannelManager.c's SetNHConfig.
func (c *Channel) updateNHSegment(hw hwio.Registers, secondCode *signal.PilotSecondCode) {
	nhPos := c.FrameCounter
	nhCount := uint32(nhPos % 20)
	nhPos -= int(nhCount)
	segment := nhPos / 32
	nhPos &= 0x1f

	segmentCode := secondCode[segment] >> uint(nhPos)
	if nhPos > 8 {
		segmentCode |= secondCode[segment+1] << uint(32-nhPos)
	}
	segmentCode &= 0xffffff

	c.StateBufferCache.SetNHConfig(segmentCode, 24)
	hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordNHConfig), c.StateBufferCache.NHConfig)

	c.StateBufferCache.SetNHCount(nhCount)
	hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCorrState), c.StateBufferCache.CorrState)
}

// ProcessCohData runs once a complete 8-correlator coherent dump is
// available: advances tracking time and the week-ms counter, dispatches to
// the current stage's per-epoch handler, then (unless SkipCount is
// absorbing this result) runs the PLL discriminator, FFT/non-coherent
// accumulation, the tracking loop update and stage-transition check.
//
// tickCount/decodeData/noiseFloor are read from the caller (TE manager) so
// this package never reaches for a hardware register on its own behalf
// beyond the coherent-sum/status words SyncCacheRead already pulled.
func (c *Channel) ProcessCohData() {
	c.TrackingTime += c.CoherentNumber

	if c.WeekMsCounter >= 0 {
		c.WeekMsCounter += c.CoherentNumber
		if c.WeekMsCounter >= MsInWeek {
			c.WeekMsCounter = 0
		}
	} else if c.SyncTickCount > 0 {
		c.WeekMsCounter = MsInWeek - (c.SyncTickCount - c.TickCount)
	}

	switch {
	case c.Stage == StageBitSync:
		c.CollectBitSyncData()
	case c.Stage == StageHold3:
		c.DataStream.CurrentAccTime += c.CoherentNumber
		if c.DataStream.CurrentAccTime >= c.DataStream.TotalAccTime {
			c.DataStream.CurrentAccTime = 0
		}
	case c.Stage >= StageTrack0 && c.DataStreamMode != DataStreamNone:
		c.DecodeDataStream(c.decodeDataWord, c.TickCount)
	}

	if c.SkipCount > 0 {
		c.SkipCount--
		return
	}

	if c.Stage >= StageTrack0 && c.pllK1 > 0 {
		c.CalcDiscriminator(UpdatePLL)
	}

	c.FftCount++
	if c.FftCount == c.FftNumber {
		c.FftCount = 0
		if c.FftNumber > 1 {
			c.CohBufferFft()
		} else {
			c.CohBufferAcc()
		}
		if c.NonCohCount == 0 {
			c.CalcCN0(c.noiseFloor)
		}
	}

	if c.Stage >= StagePullIn {
		c.DoTrackingLoop()
	}

	c.StageDetermination()
}

// decodeDataWord/noiseFloor are set by the caller immediately before
// ProcessCohData (via SetEpochInputs) so ProcessCohData itself never touches
// hwio.Registers directly; this keeps the coherent-data state machine
// testable without a hardware double.
func (c *Channel) SetEpochInputs(decodeDataWord uint32, noiseFloor int) {
	c.decodeDataWord = decodeDataWord
	c.noiseFloor = noiseFloor
}

// Measurement is one channel's contribution to a measurement epoch: the raw
// code/carrier state the receiver-time and raw-measurement layers turn into
// pseudorange/Doppler/carrier-phase observables.
type Measurement struct {
	ChannelLogic int
	CodePhase    uint32
	CodeCount    int
	CarrierFreq  uint32
	CarrierPhase uint32
	CarrierCount uint32
	WeekMsCount  int
}

// ComposeMeasurement snapshots the channel's current code/carrier state
// into a Measurement, aligning the week-millisecond epoch to the data
// symbol boundary for GPS L1CA channels that have reached TRACK (so the
// pseudorange time tag lands on a bit edge rather than mid-symbol).
func (c *Channel) ComposeMeasurement(hw hwio.Registers) Measurement {
	c.SyncCacheRead(hw, hwio.ReadStatus)
	sb := &c.StateBufferCache

	var m Measurement
	m.ChannelLogic = c.Logic
	m.CodePhase = sb.CodePhase

	codeCount := int(sb.PrnCount) % 1023
	codeCount = (codeCount << 1) + int(sb.CodeSubPhase()) - 4

	cohCount := int(sb.CoherentCount())
	currentCor := int(sb.CurrentCorrelator())
	if currentCor != 0 {
		cohCount++
	}

	m.CarrierFreq = sb.CarrierFreq
	m.CarrierPhase = sb.CarrierPhase
	m.CarrierCount = sb.CarrierCount

	msCount := c.WeekMsCounter
	if msCount < 0 {
		msCount = -100
	}

	var dataAccTime int
	if c.Signal.Band == 0 /* L1CA */ && c.Stage >= StageTrack0 {
		dataAccTime = c.DataStream.CurrentAccTime
	}
	m.WeekMsCount = msCount - dataAccTime
	cohCount += dataAccTime
	m.CodeCount = codeCount + cohCount*2046

	return m
}
