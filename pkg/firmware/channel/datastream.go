package channel

import "github.com/globsky/greta-oto/pkg/firmware/signal"

// decodedSymbol is a batch of newly decoded navigation-data or pilot
// secondary-code bits ready for the navigation-message decoder task. Its
// sole purpose here is to describe the payload DecodeDataStream hands off
// via Scheduler.AddToTask; the actual frame/subframe parser lives outside
// this package's scope.
type decodedSymbol struct {
	ChannelLogic int
	Symbols      uint32
	StartIndex   int
	TickCount    int
}

const decodedSymbolSize = 16

// DecodeDataStream accumulates one coherent epoch's worth of correlator
// output into the running data-symbol register, dispatching a 32-bit batch
// to the navigation-message decoder (hardware-decode path, HasSecondaryPRN)
// or a single demodulated bit (software-accumulate path) once enough
// coherent time has accumulated.
//
// tickCount is the current baseband tick (BasebandTickCount in the
// original), used only to timestamp dispatched batches.
func (c *Channel) DecodeDataStream(decodeDataWord uint32, tickCount int) {
	if c.HasSecondaryPRN {
		c.decodeHardware(decodeDataWord, tickCount)
		return
	}
	c.decodeSoftware(tickCount)
}

func (c *Channel) decodeHardware(data uint32, tickCount int) {
	ds := &c.DataStream
	var symbolCount int

	if ds.TotalAccTime > c.CoherentNumber {
		ds.CurrentAccTime += c.CoherentNumber
		if ds.CurrentAccTime < ds.TotalAccTime {
			return
		}
		ds.CurrentAccTime = 0
		symbolCount = 1
	} else {
		symbolCount = c.CoherentNumber / ds.TotalAccTime
	}

	if c.FrameCounter >= 0 {
		c.FrameCounter += symbolCount
	}
	switch {
	case c.Signal.Band == signal.L1CA && c.FrameCounter >= 1500:
		c.FrameCounter -= 1500
	case c.Signal.Band == signal.E1 && c.FrameCounter >= 500:
		c.FrameCounter -= 500
	case c.FrameCounter >= 1800: // B1C or L1C
		c.FrameCounter -= 1800
	}

	if c.Signal.Band == signal.B1C || c.Signal.Band == signal.E1 {
		data = ^data // negative-data signals invert the hardware-decoded word
	}

	for i := 0; i < symbolCount; i++ {
		var symbol uint32
		switch c.DataStreamMode {
		case DataStream1Bit:
			symbol = (data >> uint(symbolCount-i-1)) & 1
			ds.Symbols <<= 1
			ds.BitCount++
		case DataStream4Bit:
			symbol = (data >> uint((symbolCount-i-1)*4)) & 0xf
			ds.Symbols <<= 4
			ds.BitCount += 4
		case DataStream8Bit:
			symbol = (data >> uint((symbolCount-i-1)*8)) & 0xff
			ds.Symbols <<= 8
			ds.BitCount += 8
		}
		ds.Symbols |= symbol

		if ds.BitCount == 32 {
			batch := decodedSymbol{
				ChannelLogic: c.Logic,
				Symbols:      ds.Symbols,
				StartIndex:   ds.StartIndex,
				TickCount:    tickCount - ds.TotalAccTime*(symbolCount-1-i),
			}
			ds.BitCount = 0
			c.Scheduler.AddToTask(func(interface{}) { c.dispatchDecodedSymbol(batch) }, batch, decodedSymbolSize)
			ds.StartIndex = c.FrameCounter - (symbolCount - 1 - i)
		}
	}
}

func (c *Channel) decodeSoftware(tickCount int) {
	ds := &c.DataStream
	bs := &c.BitSyncData

	cor4 := c.PendingCoh[4]
	ds.CurrentAccTime += c.CoherentNumber
	ds.CurReal += int32(cor4.I)
	ds.CurImag += int32(cor4.Q)

	if ds.CurrentAccTime < ds.TotalAccTime {
		return
	}

	var symbol uint32
	if c.Stage == StageTrack0 || c.Stage == StageTrack1 {
		if ds.CurReal < 0 {
			symbol = 1
		}
	} else {
		dot := ds.CurReal*ds.PrevReal + ds.CurImag*ds.PrevImag
		var toggle uint32
		if dot < 0 {
			toggle = 1
		}
		symbol = toggle ^ (ds.Symbols & 1)
		ds.PrevReal, ds.PrevImag = ds.CurReal, ds.CurImag
	}

	ds.Symbols <<= 1
	ds.Symbols |= symbol
	ds.BitCount++
	ds.CurrentAccTime = 0
	ds.CurReal, ds.CurImag = 0, 0

	if c.Signal.Band == signal.L1CA && ds.BitCount == 32 {
		batch := decodedSymbol{ChannelLogic: c.Logic, Symbols: ds.Symbols, StartIndex: -1, TickCount: tickCount}
		ds.BitCount = 0
		c.Scheduler.AddToTask(func(interface{}) { c.dispatchDecodedSymbol(batch) }, batch, decodedSymbolSize)
		return
	}
	if c.Signal.Band != signal.L1CA && ds.BitCount == 24 {
		bs.PolarityToggle = ds.Symbols
		bs.TimeTag = c.TrackingTime
		batch := *bs
		c.Scheduler.AddToTask(func(param interface{}) {
			c.dataSyncTask(param.(BitSyncData), pilotSecondCodeFor(c.Signal))
		}, batch, bitSyncDataSize)
		ds.BitCount = 0
	}
}

// dispatchDecodedSymbol is the hook into the navigation-message frame
// decoder; this core's scope ends at handing over a decoded 32-bit batch
// (see spec Non-goals on ephemeris/almanac bit decoding), so it does
// nothing unless OnDecodedSymbol is set.
func (c *Channel) dispatchDecodedSymbol(d decodedSymbol) {
	if c.OnDecodedSymbol != nil {
		c.OnDecodedSymbol(d.ChannelLogic, d.Symbols, d.StartIndex, d.TickCount)
	}
}

func pilotSecondCodeFor(id signal.ID) *signal.PilotSecondCode {
	switch id.Band {
	case signal.B1C:
		return &signal.B1CSecondCode[id.Svid-1]
	case signal.L1C:
		return &signal.L1CSecondCode[id.Svid-1]
	default:
		return &signal.PilotSecondCode{}
	}
}
