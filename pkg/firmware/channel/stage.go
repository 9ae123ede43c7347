package channel

import "github.com/globsky/greta-oto/pkg/firmware/hwio"

// SwitchTrackingStage moves the channel to stage, resetting TrackingTime and
// reloading the (Coherent, Fft, NonCoh) integration plan and loop
// coefficients from trackingConfigTable. Entering BIT_SYNC only arms its
// timeout and clears bit-sync counters, leaving the current loop
// configuration untouched (pull-in's, since bit-sync follows pull-in
// directly). Entering TRACK zeroes the data-decode accumulators and aligns
// to the bit edge.
func (c *Channel) SwitchTrackingStage(stage Stage) {
	c.TrackingTime = 0
	c.Stage = stage

	if stage == StageBitSync {
		c.TrackingTimeout = 1500
		c.BitSyncData = BitSyncData{}
		c.ToggleCount = [20]int{}
		c.BitSyncResult = 0
		return
	}

	cfg := trackingConfigTable[configIndex(stage)]
	c.FftCount = 0
	c.NonCohCount = 0
	c.TrackingTimeout = cfg.TrackingTimeout
	c.CalculateLoopCoefficients(cfg)

	if stage == StageTrack0 {
		c.DataStream.PrevReal, c.DataStream.PrevImag, c.DataStream.PrevSymbol = 0, 0, 0
		c.DataStream.CurReal, c.DataStream.CurImag = 0, 0
		c.DataStream.DataCount, c.DataStream.CurrentAccTime = 0, 0
	}

	c.StateBufferCache.SetCoherentNumber(uint32(cfg.CoherentNumber))
	c.StateBufferCache.CorrConfig = setBits(c.StateBufferCache.CorrConfig, 2, 2, uint32(cfg.PostShift))
	c.CacheDirty |= hwio.DirtyConfig
	c.CoherentNumber = cfg.CoherentNumber
	c.FftNumber = cfg.FftNumber
	c.NonCohNumber = cfg.NonCohNumber
	c.SmoothedPower = 0
}

// StageDetermination checks whether the bit-sync result or stage timeout
// calls for a stage transition, and performs it. Returns true if the stage
// changed or the current stage's timeout has been reached; a BIT_SYNC
// timeout returns true without changing the stage.
//
// Bit-sync success (1<=result<=20) schedules a skip to the next 20ms bit
// edge before the actual switch to TRACK0; 21 is the sentinel set when that
// skip is scheduled, and the switch happens on the first call that finds
// BitSyncResult at 21 and SkipCount back at zero.
func (c *Channel) StageDetermination() bool {
	if c.Stage == StageBitSync && c.BitSyncResult != 0 {
		switch {
		case c.BitSyncResult < 0:
			c.SwitchTrackingStage(StageRelease)
			return true
		case c.BitSyncResult <= 20:
			t := c.TrackingTime % 20
			t = c.BitSyncResult + 20 - t
			c.SkipCount = t % 20
			c.BitSyncResult = 21
			if c.SkipCount > 0 {
				c.SkipCount--
				return false
			}
		}
		if c.BitSyncResult == 21 && c.SkipCount == 0 {
			c.SwitchTrackingStage(StageTrack0)
			return true
		}
	}

	if c.TrackingTimeout < 0 || c.TrackingTime < c.TrackingTimeout {
		return false
	}
	if c.Stage == StagePullIn {
		c.SwitchTrackingStage(StageBitSync)
	}
	return true
}
