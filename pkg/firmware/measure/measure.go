// Package measure implements the raw-observable pipeline: per-channel
// pseudorange/Doppler/carrier-phase derivation from baseband code/carrier
// state, the signal-loss and frame-sync dispatch that feeds it, and the
// coarse-time determination that hands the receiver-time manager its first
// transmit-time fix. Ephemeris/almanac decoding, the LSQ/KF position
// solution and anything downstream of the observable stay external
// collaborators reached through the nav.FrameSync and PseudoRangePredictor
// interfaces.
package measure

import (
	"github.com/globsky/greta-oto/pkg/firmware/channel"
	"github.com/globsky/greta-oto/pkg/firmware/nav"
	"github.com/globsky/greta-oto/pkg/firmware/rtime"
	"github.com/globsky/greta-oto/pkg/firmware/signal"
)

// MaxChannels bounds the per-channel status pool, matching temgr's
// 32-entry tracking-channel pool (the two are sized together but kept as
// separate constants since measure has no import dependency on temgr).
const MaxChannels = 32

// ChannelFlag bits record what's currently valid about a channel's raw
// measurement, mirroring the original's ChannelFlag field.
type ChannelFlag uint32

const (
	ChannelActive     ChannelFlag = 0x01
	MeasurementValid  ChannelFlag = 0x10
	AdrValid          ChannelFlag = 0x20
	HalfCycle         ChannelFlag = 0x40
	CycleSlip         ChannelFlag = 0x80
	TransTimeEstimate ChannelFlag = 0x100
	measurementFlags  ChannelFlag = 0xff0
)

// PosQuality is the position-solution accuracy tier the transmit-time
// fallback checks against; the solver that produces it is an external
// collaborator (the LSQ/KF pipeline stays out of this core's scope). All
// eight tiers are declared; this pipeline itself compares only against
// PosKalman.
type PosQuality int

const (
	PosUnknown PosQuality = iota
	PosExtSet
	PosKeep
	PosPredict
	PosFixedUp
	PosCoarse
	PosFlexTime
	PosKalman
)

// PseudoRangePredictor is the external PVT/ephemeris collaborator's
// transmit-time fallback, consulted only when frame sync hasn't yet
// yielded a transmit time for a GPS L1CA channel.
type PseudoRangePredictor interface {
	// PredictPseudoRange returns sig's predicted one-way pseudorange in
	// metres at the given GPS millisecond-of-week, or ok=false if no
	// ephemeris-based prediction is available yet.
	PredictPseudoRange(sig signal.ID, gpsMsCount int) (metres float64, ok bool)
}

// TimeSource is the subset of rtime.Manager the pipeline needs: the
// current receiver-time snapshot, per-epoch advancement, and the
// first-fix/frame-sync latch.
type TimeSource interface {
	Snapshot() rtime.Info
	UpdateReceiverTime(tickCount uint32, rcvrIntervalMs int)
	SetReceiverTime(band signal.Band, weekNumber, curWeekMs int, tickCount uint32) bool
}

// ChannelSample is one tracking channel's per-epoch input: the raw
// code/carrier observable channel.ComposeMeasurement produces, plus the
// channel bookkeeping CalculateRawMsr needs that Measurement alone doesn't
// carry (signal identity, tracking stage, CN0, decoded-symbol counts).
type ChannelSample struct {
	channel.Measurement

	Signal       signal.ID
	Stage        channel.Stage
	CN0          int // 0.01 dB-Hz units, matching channel.Channel.CN0
	TrackingTime int // ms since last re-acquisition, channel.Channel.TrackingTime
	DataNumber   int // decoded data symbols since the last measurement epoch
	Symbols      uint32 // decoded-bit accumulator handed to the frame-sync decoder
	EnableBOC    bool   // BOC tracking arm enabled (derived from signal.Modulation here)
}

// ChannelStatus is one channel's accumulated raw-measurement state: the
// frame-sync cache, the observables CalculateRawMsr last derived, and the
// flags recording which of them are currently valid.
type ChannelStatus struct {
	Active      bool
	Signal      signal.ID
	CN0         int
	LockTime    int
	Stage       channel.Stage
	ChannelFlag ChannelFlag
	ErrorFlag   uint32

	TransmitTime      float64
	TransmitTimeMs    int
	PseudoRangeOrigin float64
	DopplerHz         float64
	CarrierPhase      float64

	carrierCountAcc int
	carrierCountOld uint32
	frame           nav.FrameInfo
}

// Processor owns the per-channel raw-measurement state and drives the
// frame-sync/coarse-time/observable pipeline once per measurement epoch.
type Processor struct {
	FrameSync      nav.FrameSync
	Time           TimeSource
	RangePredictor PseudoRangePredictor

	channels [MaxChannels]ChannelStatus
}

// NewProcessor returns a processor with an empty channel pool.
func NewProcessor(frameSync nav.FrameSync, time TimeSource) *Processor {
	p := &Processor{FrameSync: frameSync, Time: time}
	for i := range p.channels {
		p.channels[i].frame.TOW = -1
	}
	return p
}

// Status returns channel ch's current raw-measurement state.
func (p *Processor) Status(ch int) ChannelStatus { return p.channels[ch] }

// signalLossDivisor is the expected decoded-symbol period (ms) per band:
// 20 ms for L1CA bits, 4 ms for E1 symbols, 10 ms for B1C/L1C symbols.
func signalLossDivisor(band signal.Band) int {
	switch band {
	case signal.L1CA:
		return 20
	case signal.E1:
		return 4
	default:
		return 10
	}
}

// Process runs one measurement epoch: per-channel frame-sync dispatch and
// signal-loss detection, receiver-time advancement and first-fix
// determination, then (once time quality reaches rtime.Coarse) raw
// observable derivation for every active channel.
func (p *Processor) Process(samples []ChannelSample, activeMask uint32, tickCount uint32, curMsIntervalMs, defaultMsIntervalMs int, posQuality PosQuality) {
	for i := range p.channels {
		bit := uint32(1) << uint(i)
		if activeMask&bit == 0 {
			p.channels[i].ErrorFlag = 0
			p.channels[i].Signal = signal.ID{}
			p.channels[i].ChannelFlag &^= ChannelActive
			continue
		}

		s := samples[i]
		if p.channels[i].Signal != s.Signal {
			p.resetChannel(i)
			p.channels[i].Signal = s.Signal
		}
		p.channels[i].CN0 = s.CN0
		p.channels[i].LockTime = s.TrackingTime
		p.channels[i].Stage = s.Stage
		p.channels[i].ChannelFlag |= ChannelActive

		if s.DataNumber < curMsIntervalMs/signalLossDivisor(s.Signal.Band)-1 {
			p.resetFrame(i)
		}

		if s.Stage >= channel.StageTrack0 && s.CN0 > 0 {
			if p.FrameSync != nil {
				p.channels[i].frame = p.FrameSync.Sync(i, s.Signal.Band, s.DataNumber, s.Symbols)
			}
		} else {
			p.resetFrame(i)
		}
	}

	p.Time.UpdateReceiverTime(tickCount, defaultMsIntervalMs)
	p.determineCoarseTime(tickCount)

	if p.Time.Snapshot().Quality < rtime.Coarse {
		return
	}
	for i := range p.channels {
		if activeMask&(uint32(1)<<uint(i)) != 0 {
			p.calculateRawMsr(i, samples[i], curMsIntervalMs, posQuality)
		}
	}
}

// resetChannel clears a channel's flags and frame state, run whenever its
// tracked satellite changes.
func (p *Processor) resetChannel(i int) {
	p.channels[i].ChannelFlag = 0
	p.channels[i].ErrorFlag = 0
	p.resetFrame(i)
}

// resetFrame clears a channel's carrier-phase accumulator and frame-sync
// cache, run on satellite change, signal loss, or loss of the tracking
// stage frame sync needs.
func (p *Processor) resetFrame(i int) {
	p.channels[i].LockTime = 0
	p.channels[i].carrierCountAcc = 0
	p.channels[i].carrierCountOld = 0
	p.channels[i].frame = nav.FrameInfo{TOW: -1}
	if p.FrameSync != nil {
		p.FrameSync.Reset(i)
	}
}

// determineCoarseTime scans for the first channel with a resolved
// transmit-time and, if time quality hasn't reached Coarse yet, latches it
// via SetReceiverTime (week number left unknown; SetReceiverTime still
// promotes quality to Coarse on a valid millisecond-of-week alone).
func (p *Processor) determineCoarseTime(tickCount uint32) {
	if p.Time.Snapshot().Quality >= rtime.Coarse {
		return
	}

	for i := range p.channels {
		if p.channels[i].ChannelFlag&ChannelActive == 0 {
			continue
		}

		band := p.channels[i].Signal.Band
		info := p.channels[i].frame
		weekMs := -1

		switch band {
		case signal.L1CA:
			// transmit time = start of current subframe (tow*6000) plus
			// received bits * 20ms; NavBitNumber also counts D29/D30 of the
			// previous subframe, so the true bit offset is NavBitNumber-2.
			// Adding the nominal 80ms (4 bits) travel time gives the net +2.
			if info.Synced && info.TOW >= 0 {
				weekMs = info.TOW*6000 + (info.NavBitNumber+2)*20
			}
		case signal.B1C:
			if info.TOW >= 0 {
				weekMs = info.TOW*1000 + info.NavBitNumber*10
				if info.ShortPropagation {
					weekMs += 80
				} else {
					weekMs += 140
				}
			}
		}

		if weekMs >= 0 {
			weekMs = (weekMs + 50) / 100 * 100
			p.Time.SetReceiverTime(band, -1, weekMs, tickCount)
			return
		}
	}
}
