package measure

import (
	"github.com/globsky/greta-oto/pkg/firmware/channel"
	"github.com/globsky/greta-oto/pkg/firmware/signal"
)

// waveLength is GPS L1's carrier wavelength in metres, used uniformly
// across every tracked band the same way the original does (all four
// signals this core tracks share the L1 frequency).
const waveLength = 0.19029367279836488

// lightSpeedMs is how far light travels in one millisecond, in metres.
const lightSpeedMs = 299792458.0 * 0.001

// ifFreqHz/sampleFreqScale stand in for the target's nominal IF and
// fs-to-Hz NCO scaling constants (IF_FREQ / SAMPLE_FREQ), which are
// hardware clock parameters outside this core's scope; the linear mapping
// keeps the Doppler arithmetic exercised without hard-coding a target
// sample rate, following the same placeholder precedent as
// channel.carrierFreqWord.
const ifFreqHz = 4092000
const sampleFreqScale = 1.0 / (1 << 20)

// bocIFBias is added to the nominal IF for BOC-family signals whose BOC
// arm isn't enabled (their main lobe sits 1.023 MHz off the code carrier).
const bocIFBias = 1023000

// scaleU32 turns a Q32 fixed-point fractional register (CodeNCO/CarrierNCO)
// into its fractional value, mirroring ScaleDoubleU(x, 32).
func scaleU32(x uint32) float64 { return float64(x) / 4294967296.0 }

// calculateRawMsr derives channel i's transmit time, Doppler, pseudorange
// and carrier phase from samples[i] and the current channel/receiver-time
// state, clearing all measurement-validity flags first so a channel that
// fails any gate (not tracking, CN0 too low, no transmit time, pseudorange
// sanity check) is left with none set.
func (p *Processor) calculateRawMsr(i int, s ChannelSample, curMsIntervalMs int, posQuality PosQuality) {
	st := &p.channels[i]
	st.ChannelFlag &^= measurementFlags

	if st.Stage < channel.StageTrack0 || st.CN0 <= 500 {
		return
	}

	st.TransmitTime = (float64(s.CodeCount) + scaleU32(s.CodePhase)) / 2046.0

	if !p.resolveTransmitTimeMs(st, s, posQuality) {
		return
	}

	ifFreq := ifFreqHz
	if s.Signal.Band != signal.L1CA && !s.EnableBOC {
		ifFreq += bocIFBias
	}
	st.DopplerHz = float64(s.CarrierFreq)*sampleFreqScale - float64(ifFreq)

	snap := p.Time.Snapshot()
	count := snap.GpsMsCount
	if s.Signal.Band == signal.B1C {
		count -= 14000
	}
	count -= st.TransmitTimeMs
	if count < -1000 {
		count += weekMsRollover
	}
	if count > 1000 || count < -1000 {
		return
	}
	st.PseudoRangeOrigin = float64(count) - st.TransmitTime
	st.PseudoRangeOrigin *= lightSpeedMs

	cycleCount := int32(s.CarrierCount - st.carrierCountOld)
	if st.carrierCountAcc <= 0 || st.LockTime == 0 {
		st.carrierCountAcc = int(st.PseudoRangeOrigin / waveLength)
	} else {
		st.carrierCountAcc -= int(cycleCount) - ifFreq*curMsIntervalMs/1000
	}
	st.CarrierPhase = float64(st.carrierCountAcc) - scaleU32(s.CarrierPhase)

	if s.Signal.Band == signal.L1CA {
		switch {
		case st.frame.PolarityValid && st.frame.NegativeStream:
			st.CarrierPhase += 0.5
		case !st.frame.PolarityValid:
			st.ChannelFlag |= HalfCycle
		}
	}
	st.ChannelFlag |= AdrValid
	st.carrierCountOld = s.CarrierCount

	st.ChannelFlag |= MeasurementValid
}

// weekMsRollover is the GPS/BDS week-millisecond wrap point, duplicated
// from rtime.MsInWeek to avoid importing rtime here solely for a constant.
const weekMsRollover = 7 * 24 * 3600 * 1000

// resolveTransmitTimeMs fills st.TransmitTimeMs from frame sync (both
// bands) or, for GPS L1CA only, from a predicted pseudorange once the
// position solution has reached KF quality. Returns false if no source is
// available, the CalculateRawMsr early-return case.
func (p *Processor) resolveTransmitTimeMs(st *ChannelStatus, s ChannelSample, posQuality PosQuality) bool {
	switch s.Signal.Band {
	case signal.L1CA:
		if st.frame.Synced && st.frame.TOW >= 0 {
			st.TransmitTimeMs = st.frame.TOW*6000 + (st.frame.NavBitNumber-2)*20
			return true
		}
		if posQuality >= PosKalman && st.LockTime > 0 && p.RangePredictor != nil {
			snap := p.Time.Snapshot()
			if metres, ok := p.RangePredictor.PredictPseudoRange(s.Signal, snap.GpsMsCount); ok {
				psrDiffMs := metres/lightSpeedMs + st.TransmitTime
				st.TransmitTimeMs = ((snap.GpsMsCount - int(psrDiffMs) + 10) / 20) * 20
				st.ChannelFlag |= TransTimeEstimate
				return true
			}
		}
		return false
	case signal.B1C:
		if st.frame.TOW < 0 {
			return false
		}
		st.TransmitTimeMs = st.frame.TOW*1000 + st.frame.NavBitNumber*10
		return true
	default:
		return false
	}
}
