package channel

import "github.com/globsky/greta-oto/pkg/firmware/hwio"

// SyncCacheWrite flushes whichever parts of StateBufferCache CacheDirty
// marks to the hardware HW-SB, either as one bulk SaveMemory (the entire
// cache dirty) or as a handful of targeted register writes (a partial set
// of dirty groups), then clears the dirty flags.
func (c *Channel) SyncCacheWrite(hw hwio.Registers) {
	if c.CacheDirty == 0 {
		return
	}

	sb := &c.StateBufferCache
	if c.CacheDirty == hwio.DirtyAll {
		words := make([]uint32, 12)
		words[hwio.WordCarrierFreq] = sb.CarrierFreq
		words[hwio.WordCodeFreq] = sb.CodeFreq
		words[hwio.WordCorrConfig] = sb.CorrConfig
		words[hwio.WordNHConfig] = sb.NHConfig
		words[hwio.WordDumpLength] = sb.DumpLength
		words[hwio.WordPrnConfig] = sb.PrnConfig
		words[hwio.WordPrnCount] = sb.PrnCount
		words[hwio.WordCarrierPhase] = sb.CarrierPhase
		words[hwio.WordCarrierCount] = sb.CarrierCount
		words[hwio.WordCodePhase] = sb.CodePhase
		words[hwio.WordDumpCount] = sb.DumpCount
		words[hwio.WordCorrState] = sb.CorrState
		hw.SaveMemory(hwio.TEChannelWordAddr(c.Logic, 0), words)
	} else {
		if c.CacheDirty&hwio.DirtyFreq != 0 {
			hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCarrierFreq), sb.CarrierFreq)
			hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCodeFreq), sb.CodeFreq)
		}
		if c.CacheDirty&hwio.DirtyConfig != 0 {
			hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCorrConfig), sb.CorrConfig)
			hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordNHConfig), sb.NHConfig)
			hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordDumpLength), sb.DumpLength)
		}
		if c.CacheDirty&hwio.DirtyCode != 0 {
			hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordPrnCount), sb.PrnCount)
			hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCodePhase), sb.CodePhase)
			hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordDumpCount), sb.DumpCount)
			hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCorrState), sb.CorrState)
		}
		if c.CacheDirty&hwio.DirtyState != 0 {
			hw.WriteReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCorrState), sb.CorrState)
		}
	}
	c.CacheDirty = 0
}

// SyncCacheRead pulls coherent-sum and/or status words back from the
// hardware HW-SB into StateBufferCache, per what.
func (c *Channel) SyncCacheRead(hw hwio.Registers, what hwio.ReadWhat) {
	sb := &c.StateBufferCache

	if what == hwio.ReadData || what == hwio.ReadBoth {
		words := make([]uint32, 8)
		hw.LoadMemory(words, hwio.TEChannelWordAddr(c.Logic, hwio.WordCoherentSumI0))
		for i, w := range words {
			sb.CoherentSum[i] = hwio.ComplexCorr{I: int16(w >> 16), Q: int16(w)}
		}
	}
	if what == hwio.ReadStatus || what == hwio.ReadBoth {
		sb.PrnCount = hw.ReadReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordPrnCount))
		sb.CarrierPhase = hw.ReadReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCarrierPhase))
		sb.CarrierCount = hw.ReadReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCarrierCount))
		sb.CodePhase = hw.ReadReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCodePhase))
		sb.DumpCount = hw.ReadReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordDumpCount))
		sb.CorrState = hw.ReadReg(hwio.TEChannelWordAddr(c.Logic, hwio.WordCorrState))
	}
}
