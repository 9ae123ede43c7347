// Package channel implements one tracking channel of the Tracking Engine:
// the per-channel state machine (pull-in, bit-sync, track, hold, release),
// the coherent-sum interrupt path, the PLL/FLL/DLL tracking loops, the C/N0
// estimator, lock detectors, bit synchronisation and data-symbol decoding,
// and measurement composition.
package channel

import (
	"github.com/globsky/greta-oto/pkg/firmware/hwio"
	"github.com/globsky/greta-oto/pkg/firmware/signal"
)

// Stage is the tracking-channel state-machine position. Values are ordered
// so that numeric comparison reproduces the original's STAGE_MASK
// inequalities: "stage >= StageTrack0" selects every tracking/hold stage,
// "stage == StageHold3" is checked before that general comparison.
type Stage int

const (
	StagePullIn Stage = iota
	StageBitSync
	StageTrack0
	StageTrack1
	StageTrack2
	StageTrack3
	StageHold1
	StageHold2
	StageHold3
	StageRelease
)

// StageTrack is the alias used wherever the original compares against the
// start of the tracking/hold run (">= STAGE_TRACK").
const StageTrack = StageTrack0

func (s Stage) String() string {
	switch s {
	case StagePullIn:
		return "PULL_IN"
	case StageBitSync:
		return "BIT_SYNC"
	case StageTrack0:
		return "TRACK0"
	case StageTrack1:
		return "TRACK1"
	case StageTrack2:
		return "TRACK2"
	case StageTrack3:
		return "TRACK3"
	case StageHold1:
		return "HOLD1"
	case StageHold2:
		return "HOLD2"
	case StageHold3:
		return "HOLD3"
	case StageRelease:
		return "RELEASE"
	default:
		return "unknown"
	}
}

// TrackingUpdate flags which discriminator(s) produced a fresh result this
// coherent epoch, for DoTrackingLoop to apply.
type TrackingUpdate uint8

const (
	UpdatePLL TrackingUpdate = 1 << iota
	UpdateFLL
	UpdateDLL
)

func (u TrackingUpdate) any() bool { return u != 0 }

// DataStreamMode selects how many bits DecodeDataStream extracts per
// hardware-decoded symbol: 1 bit for GPS L1CA, 4 for Galileo E1, 8 for
// BDS B1C / GPS L1C.
type DataStreamMode uint8

const (
	DataStreamNone DataStreamMode = iota
	DataStream1Bit
	DataStream4Bit
	DataStream8Bit
)

// BitSyncData accumulates one correlator's worth of polarity-toggle history
// before handing a batch to the bit-sync task.
type BitSyncData struct {
	CorDataCount   int
	TimeTag        int
	HavePrev       bool
	PrevCorData    hwio.ComplexCorr
	PolarityToggle uint32
}

// DataStream tracks the software symbol accumulator (non-hardware-decode
// path) and the hardware-decode path's running 32-bit symbol register.
type DataStream struct {
	TotalAccTime   int
	CurrentAccTime int

	PrevReal, PrevImag int32
	CurReal, CurImag   int32
	PrevSymbol         int

	Symbols   uint32
	BitCount  int
	DataCount int
	StartIndex int
}

// TrackingConfig is one row of the per-stage integration/loop-bandwidth
// table: coherent/FFT/non-coherent counts, narrow-correlator factor,
// post-shift, and the three loop bandwidths (each packed as 1/16 Hz*100 in
// the low 16 bits and filter order in bits 16-17, 0 disables that loop).
type TrackingConfig struct {
	CoherentNumber  int
	FftNumber       int
	NonCohNumber    int
	NarrowFactor    int
	PostShift       int
	BandWidthPLL16x int
	BandWidthFLL16x int
	BandWidthDLL16x int
	TrackingTimeout int
}

func bandwidthValue(packed int) int { return packed & 0xffff }
func bandwidthOrder(packed int) int { return packed >> 16 }

// trackingConfigTable holds exactly two rows: pull-in/bit-sync (no PLL, wide
// FFT search) and track/hold (narrow PLL-locked tracking). Every logical
// stage maps onto one of the two via configIndex.
var trackingConfigTable = [2]TrackingConfig{
	{ // pull-in: wide FFT search, FLL+DLL only
		CoherentNumber: 1, FftNumber: 5, NonCohNumber: 2, NarrowFactor: 0, PostShift: 1,
		BandWidthPLL16x: 0, BandWidthFLL16x: 80 | (2 << 16), BandWidthDLL16x: 80 | (2 << 16),
		TrackingTimeout: 200,
	},
	{ // track/hold: PLL-locked, narrow DLL
		CoherentNumber: 5, FftNumber: 1, NonCohNumber: 2, NarrowFactor: 0, PostShift: 2,
		BandWidthPLL16x: 320 | (2 << 16), BandWidthFLL16x: 0 | (2 << 16), BandWidthDLL16x: 80 | (2 << 16),
		TrackingTimeout: -1,
	},
}

func configIndex(stage Stage) int {
	if stage < StageTrack0 {
		return 0
	}
	return 1
}

// CorrelatorNum is the number of correlators per coherent dump (early..late,
// one is Cor4, the prompt/peak correlator).
const CorrelatorNum = 7

// MaxFftNum/MaxBinNum bound the FFT accumulation buffers.
const (
	MaxFftNum = 8
	MaxBinNum = 8
)

// CohBufLen/NoncohBufLen size the coherent and non-coherent accumulation
// buffers.
const (
	CohBufLen    = CorrelatorNum * MaxFftNum
	NoncohBufLen = CorrelatorNum * MaxBinNum
)

// Scheduler is the subset of taskmgr.Manager a channel needs: enqueue a
// baseband-queue job. Channels never talk to the scheduler directly for any
// other queue, so the interface is kept to this one call.
type Scheduler interface {
	AddToTask(fn func(param interface{}), param interface{}, paramSize int) bool
}

// Channel is one tracking channel's complete software state, mirroring the
// data model's per-channel fields.
type Channel struct {
	Logic  int       // hardware logical channel number
	Signal signal.ID // constellation/band + SVID

	Stage           Stage
	TrackingTime    int
	TrackingTimeout int

	StateBufferCache hwio.StateBuffer

	CoherentNumber, FftNumber, NonCohNumber int
	FftCount, NonCohCount                   int
	SkipCount                               int

	PendingCount int
	PendingCoh   [8]hwio.ComplexCorr

	PhaseDiff, PhaseAcc         int
	FrequencyDiff, FrequencyAcc int
	DelayDiff, DelayAcc         int

	CarrierFreqBase, CodeFreqBase   uint32
	CarrierFreqSave, CodeFreqSave   uint32

	CohBuffer    [CohBufLen]hwio.ComplexCorr
	NoncohBuffer [NoncohBufLen]int

	BitSyncData   BitSyncData
	ToggleCount   [20]int
	BitSyncResult int

	DataStream     DataStream
	DataStreamMode DataStreamMode
	HasSecondaryPRN bool // tracking a pilot channel with a separate data component (hardware decode path)
	FrameCounter    int

	pllK1, pllK2, pllK3 int
	fllK1, fllK2        int
	dllK1, dllK2        int

	PeakPower, SmoothedPower   int
	CN0, FastCN0               int
	CN0HighCount, CN0LowCount  int

	PLD, FLD, DLD    int
	LoseLockCounter  int

	PendingUpdate TrackingUpdate
	CacheDirty    hwio.DirtyFlag

	WeekMsCounter  int
	SyncTickCount  int
	TickCount      int

	// decodeDataWord/noiseFloor are the per-epoch inputs SetEpochInputs
	// stages before ProcessCohData runs, keeping the coherent-data state
	// machine free of direct hardware register access.
	decodeDataWord uint32
	noiseFloor     int

	Scheduler Scheduler

	// OnDecodedSymbol is the hook into the navigation-message frame
	// decoder, e.g. nav.FrameSync's bit feed; see dispatchDecodedSymbol.
	OnDecodedSymbol func(logicalChannel int, symbols uint32, startIndex, tickCount int)
}

// NewChannel returns a channel bound to logical hardware channel logicCh,
// not yet configured for any signal (InitChannel does that).
func NewChannel(logicCh int, sched Scheduler) *Channel {
	return &Channel{Logic: logicCh, Scheduler: sched, WeekMsCounter: -1}
}

// InitChannel (re)assigns sig to this channel and resets all tracking,
// bit-sync and data-decode state, matching the original's InitChannel.
func (c *Channel) InitChannel(sig signal.ID) {
	params := signal.Lookup(sig.Band)

	*c = Channel{Logic: c.Logic, Scheduler: c.Scheduler, OnDecodedSymbol: c.OnDecodedSymbol}
	c.Signal = sig
	c.StateBufferCache = hwio.StateBuffer{}
	cfg := trackingConfigTable[0]
	c.StateBufferCache.SetCoherentNumber(uint32(cfg.CoherentNumber))
	c.StateBufferCache.CorrConfig = setNarrowAndPostShift(c.StateBufferCache.CorrConfig, cfg.NarrowFactor, cfg.PostShift)
	c.StateBufferCache.SetNHConfig(0, 0)
	c.StateBufferCache.DumpLength = 1023

	switch sig.Band {
	case signal.L1CA:
		c.DataStreamMode = DataStream1Bit
		c.HasSecondaryPRN = false
	case signal.E1, signal.B1C, signal.L1C:
		c.DataStreamMode = DataStream8Bit
		if sig.Band == signal.E1 {
			c.DataStreamMode = DataStream4Bit
		}
		c.HasSecondaryPRN = true
	}
	c.DataStream = DataStream{TotalAccTime: params.SymbolPeriodMs}

	c.CacheDirty = hwio.DirtyAll
	c.WeekMsCounter = -1

	c.SwitchTrackingStage(StagePullIn)
}

// setNarrowAndPostShift is a narrow helper over the CorrConfig accessors
// exposed by hwio.StateBuffer (only CoherentNumber has a public setter).
func setNarrowAndPostShift(corrConfig uint32, narrow, postShift int) uint32 {
	const (
		postShiftOffset = 2
		postShiftWidth  = 2
		narrowOffset    = 9
		narrowWidth     = 2
	)
	corrConfig = setBits(corrConfig, postShiftOffset, postShiftWidth, uint32(postShift))
	corrConfig = setBits(corrConfig, narrowOffset, narrowWidth, uint32(narrow))
	return corrConfig
}

func setBits(v uint32, offset, width uint, value uint32) uint32 {
	mask := uint32((1 << width) - 1)
	return (v &^ (mask << offset)) | ((value & mask) << offset)
}

// ConfigChannel programs the carrier/code NCO rates and initial code phase
// for a freshly acquired signal, aligning SkipCount/TrackingTime to the
// secondary-code or bit edge the same way the original's per-band branches
// do.
func (c *Channel) ConfigChannel(dopplerHz int, codePhase16x int) {
	startPhase := codePhase16x / 16

	c.CarrierFreqBase = carrierFreqWord(c.Signal.Band, dopplerHz)
	c.CodeFreqBase = codeFreqWord(dopplerHz)

	switch c.Signal.Band {
	case signal.L1CA:
		startPhase %= 1023
		c.SkipCount = 1
	case signal.E1:
		startPhase %= 4092
		c.SkipCount = 4 - startPhase/1023
		c.TrackingTime = startPhase / 1023
	case signal.B1C, signal.L1C:
		startPhase %= 10230
		c.SkipCount = 10 - startPhase/1023
		c.TrackingTime = startPhase / 1023
	}

	c.StateBufferCache.CarrierFreq = c.CarrierFreqBase
	c.StateBufferCache.CodeFreq = c.CodeFreqBase
	c.StateBufferCache.CodePhase = uint32(codePhase16x) << 29
	c.StateBufferCache.DumpCount = uint32(startPhase % 1023)
	c.CacheDirty |= hwio.DirtyFreq | hwio.DirtyCode
}

// carrierFreqWord/codeFreqWord stand in for the original's CARRIER_FREQ /
// CARRIER_FREQ_BOC / CODE_FREQ NCO-scaling macros, which are hardware clock
// constants outside this core's scope; a linear Doppler-to-word mapping
// keeps the tracking-loop arithmetic exercised without hard-coding the
// target's sample-rate constants.
func carrierFreqWord(band signal.Band, dopplerHz int) uint32 {
	return uint32(int32(dopplerHz) * 4)
}

func codeFreqWord(dopplerHz int) uint32 {
	return uint32(int32(dopplerHz))
}
