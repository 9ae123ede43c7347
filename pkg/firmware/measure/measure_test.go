package measure

import (
	"testing"

	"github.com/globsky/greta-oto/pkg/firmware/channel"
	"github.com/globsky/greta-oto/pkg/firmware/nav"
	"github.com/globsky/greta-oto/pkg/firmware/rtime"
	"github.com/globsky/greta-oto/pkg/firmware/signal"
	"github.com/stretchr/testify/require"
)

type frameSyncCall struct {
	ch, dataNumber int
	band           signal.Band
	symbols        uint32
}

type fakeFrameSync struct {
	results    map[int]nav.FrameInfo
	syncCalls  []frameSyncCall
	resetCalls []int
}

func (f *fakeFrameSync) Sync(ch int, band signal.Band, dataNumber int, symbols uint32) nav.FrameInfo {
	f.syncCalls = append(f.syncCalls, frameSyncCall{ch, dataNumber, band, symbols})
	if info, ok := f.results[ch]; ok {
		return info
	}
	return nav.FrameInfo{TOW: -1}
}

func (f *fakeFrameSync) Reset(ch int) { f.resetCalls = append(f.resetCalls, ch) }

type fakeRangePredictor struct {
	metres float64
	ok     bool
	calls  int
}

func (f *fakeRangePredictor) PredictPseudoRange(signal.ID, int) (float64, bool) {
	f.calls++
	return f.metres, f.ok
}

func newSamples() []ChannelSample { return make([]ChannelSample, MaxChannels) }

func TestProcessClearsInactiveChannelState(t *testing.T) {
	p := NewProcessor(&fakeFrameSync{}, rtime.NewManager())
	p.channels[3].ChannelFlag = ChannelActive
	p.channels[3].Signal = signal.ID{Band: signal.L1CA, Svid: 7}

	p.Process(newSamples(), 0, 0, 1000, 1000, PosUnknown)

	st := p.Status(3)
	require.Equal(t, signal.ID{}, st.Signal)
	require.Zero(t, st.ChannelFlag&ChannelActive)
}

func TestProcessResetsFrameOnSatelliteChange(t *testing.T) {
	fs := &fakeFrameSync{}
	p := NewProcessor(fs, rtime.NewManager())
	samples := newSamples()
	samples[0] = ChannelSample{Signal: signal.ID{Band: signal.L1CA, Svid: 1}, Stage: channel.StageTrack0, CN0: 1000, DataNumber: 20}

	p.Process(samples, 1, 0, 1000, 1000, PosUnknown)

	require.Contains(t, fs.resetCalls, 0)
	require.Equal(t, signal.ID{Band: signal.L1CA, Svid: 1}, p.Status(0).Signal)
}

func TestProcessDispatchesFrameSyncWhenTrackingAndCN0Positive(t *testing.T) {
	fs := &fakeFrameSync{results: map[int]nav.FrameInfo{}}
	p := NewProcessor(fs, rtime.NewManager())
	samples := newSamples()
	samples[2] = ChannelSample{Signal: signal.ID{Band: signal.B1C, Svid: 9}, Stage: channel.StageTrack1, CN0: 800, DataNumber: 15, Symbols: 0xabcd}

	p.Process(samples, 1<<2, 0, 1000, 1000, PosUnknown)

	require.Len(t, fs.syncCalls, 1)
	require.Equal(t, 2, fs.syncCalls[0].ch)
	require.Equal(t, signal.B1C, fs.syncCalls[0].band)
	require.Equal(t, 15, fs.syncCalls[0].dataNumber)
	require.EqualValues(t, 0xabcd, fs.syncCalls[0].symbols)
}

func TestProcessSkipsFrameSyncBelowTrackingStage(t *testing.T) {
	fs := &fakeFrameSync{}
	p := NewProcessor(fs, rtime.NewManager())
	samples := newSamples()
	samples[1] = ChannelSample{Signal: signal.ID{Band: signal.L1CA, Svid: 4}, Stage: channel.StageBitSync, CN0: 1000}

	p.Process(samples, 1<<1, 0, 1000, 1000, PosUnknown)

	require.Empty(t, fs.syncCalls)
	require.Contains(t, fs.resetCalls, 1)
}

func TestProcessDetectsDataLossAndResetsFrame(t *testing.T) {
	fs := &fakeFrameSync{}
	p := NewProcessor(fs, rtime.NewManager())
	p.channels[0].Signal = signal.ID{Band: signal.L1CA, Svid: 1} // no satellite change this epoch
	samples := newSamples()
	// expected data in 1000ms at 20ms/bit is 50; 5 is far below (50-1=49 threshold)
	samples[0] = ChannelSample{Signal: signal.ID{Band: signal.L1CA, Svid: 1}, Stage: channel.StageTrack0, CN0: 1000, DataNumber: 5}

	p.Process(samples, 1, 0, 1000, 1000, PosUnknown)

	require.Contains(t, fs.resetCalls, 0)
}

func TestDetermineCoarseTimeLatchesFirstGpsTransmitTime(t *testing.T) {
	fs := &fakeFrameSync{results: map[int]nav.FrameInfo{
		0: {Synced: true, TOW: 16, NavBitNumber: 201},
	}}
	m := rtime.NewManager()
	p := NewProcessor(fs, m)
	samples := newSamples()
	samples[0] = ChannelSample{Signal: signal.ID{Band: signal.L1CA, Svid: 1}, Stage: channel.StageTrack0, CN0: 1000, DataNumber: 20}

	p.Process(samples, 1, 1000, 1000, 1000, PosUnknown)

	snap := m.Snapshot()
	require.Equal(t, rtime.Coarse, snap.Quality)
	// raw = 16*6000 + (201+2)*20 = 100060, rounded to nearest 100ms = 100100
	require.Equal(t, 100100, snap.GpsMsCount)
}

func TestDetermineCoarseTimeLatchesFirstBdsTransmitTime(t *testing.T) {
	fs := &fakeFrameSync{results: map[int]nav.FrameInfo{
		0: {TOW: 30, NavBitNumber: 12, ShortPropagation: true},
	}}
	m := rtime.NewManager()
	p := NewProcessor(fs, m)
	samples := newSamples()
	samples[0] = ChannelSample{Signal: signal.ID{Band: signal.B1C, Svid: 3}, Stage: channel.StageTrack0, CN0: 1000, DataNumber: 10}

	p.Process(samples, 1, 1000, 1000, 1000, PosUnknown)

	snap := m.Snapshot()
	require.Equal(t, rtime.Coarse, snap.Quality)
	// raw = 30*1000 + 12*10 + 80 = 30200, already a multiple of 100
	require.Equal(t, 30200, snap.BdsMsCount)
}

func TestCalculateRawMsrSkipsWhenNotTracking(t *testing.T) {
	p := NewProcessor(&fakeFrameSync{}, rtime.NewManager())
	p.channels[0].Stage = channel.StagePullIn
	p.channels[0].CN0 = 1000

	p.calculateRawMsr(0, ChannelSample{Signal: signal.ID{Band: signal.L1CA, Svid: 1}}, 1000, PosUnknown)

	require.Zero(t, p.Status(0).ChannelFlag&MeasurementValid)
}

func TestCalculateRawMsrSkipsWhenCN0TooLow(t *testing.T) {
	p := NewProcessor(&fakeFrameSync{}, rtime.NewManager())
	p.channels[0].Stage = channel.StageTrack0
	p.channels[0].CN0 = 400

	p.calculateRawMsr(0, ChannelSample{Signal: signal.ID{Band: signal.L1CA, Svid: 1}}, 1000, PosUnknown)

	require.Zero(t, p.Status(0).ChannelFlag&MeasurementValid)
}

func TestCalculateRawMsrSkipsBdsWithoutFrameSync(t *testing.T) {
	p := NewProcessor(&fakeFrameSync{}, rtime.NewManager())
	p.channels[0].Stage = channel.StageTrack0
	p.channels[0].CN0 = 1000
	p.channels[0].frame = nav.FrameInfo{TOW: -1}

	p.calculateRawMsr(0, ChannelSample{Signal: signal.ID{Band: signal.B1C, Svid: 3}}, 1000, PosUnknown)

	require.Zero(t, p.Status(0).ChannelFlag&MeasurementValid)
}

func TestCalculateRawMsrComputesObservablesFromFrameSync(t *testing.T) {
	m := rtime.NewManager()
	require.True(t, m.SetReceiverTime(signal.L1CA, 2000, 100000, 0))

	p := NewProcessor(&fakeFrameSync{}, m)
	p.channels[0].Stage = channel.StageTrack0
	p.channels[0].CN0 = 1000
	p.channels[0].LockTime = 50
	p.channels[0].frame = nav.FrameInfo{Synced: true, TOW: 16, NavBitNumber: 201, PolarityValid: true, NegativeStream: false}

	sample := ChannelSample{
		Measurement: channel.Measurement{CodeCount: 500, CodePhase: 0, CarrierFreq: 4096000, CarrierPhase: 0, CarrierCount: 1000},
		Signal:      signal.ID{Band: signal.L1CA, Svid: 1},
	}
	p.calculateRawMsr(0, sample, 1000, PosUnknown)

	st := p.Status(0)
	require.NotZero(t, st.ChannelFlag&MeasurementValid)
	require.NotZero(t, st.ChannelFlag&AdrValid)
	require.Zero(t, st.ChannelFlag&HalfCycle)

	wantTransmitTimeMs := 16*6000 + (201-2)*20
	require.Equal(t, wantTransmitTimeMs, st.TransmitTimeMs)

	wantDoppler := float64(4096000)*sampleFreqScale - float64(ifFreqHz)
	require.InDelta(t, wantDoppler, st.DopplerHz, 1e-9)

	transmitTime := (float64(500) + scaleU32(0)) / 2046.0
	count := 100000 - wantTransmitTimeMs
	wantPsr := (float64(count) - transmitTime) * lightSpeedMs
	require.InDelta(t, wantPsr, st.PseudoRangeOrigin, 1e-6)

	wantCarrierPhase := float64(int(wantPsr / waveLength))
	require.InDelta(t, wantCarrierPhase, st.CarrierPhase, 1e-9)
}

func TestCalculateRawMsrSetsHalfCycleFlagWhenPolarityUnknown(t *testing.T) {
	m := rtime.NewManager()
	m.SetReceiverTime(signal.L1CA, 2000, 100000, 0)

	p := NewProcessor(&fakeFrameSync{}, m)
	p.channels[0].Stage = channel.StageTrack0
	p.channels[0].CN0 = 1000
	p.channels[0].LockTime = 50
	p.channels[0].frame = nav.FrameInfo{Synced: true, TOW: 16, NavBitNumber: 201, PolarityValid: false}

	sample := ChannelSample{
		Measurement: channel.Measurement{CodeCount: 500, CarrierCount: 1000},
		Signal:      signal.ID{Band: signal.L1CA, Svid: 1},
	}
	p.calculateRawMsr(0, sample, 1000, PosUnknown)

	require.NotZero(t, p.Status(0).ChannelFlag&HalfCycle)
}

func TestResolveTransmitTimeMsFallsBackToPredictedPseudorange(t *testing.T) {
	m := rtime.NewManager()
	m.SetReceiverTime(signal.L1CA, 2000, 100000, 0)

	predictor := &fakeRangePredictor{metres: 598000.0, ok: true}
	p := NewProcessor(&fakeFrameSync{}, m)
	p.RangePredictor = predictor
	p.channels[0].Stage = channel.StageTrack0
	p.channels[0].CN0 = 1000
	p.channels[0].LockTime = 50
	p.channels[0].frame = nav.FrameInfo{Synced: false, TOW: -1}

	sample := ChannelSample{
		Measurement: channel.Measurement{CodeCount: 0, CodePhase: 0, CarrierCount: 1000},
		Signal:      signal.ID{Band: signal.L1CA, Svid: 1},
	}
	p.calculateRawMsr(0, sample, 1000, PosKalman)

	require.Equal(t, 1, predictor.calls)
	st := p.Status(0)
	require.NotZero(t, st.ChannelFlag&TransTimeEstimate)

	transmitTime := 0.0
	psrDiffMs := predictor.metres/lightSpeedMs + transmitTime
	wantTransmitTimeMs := ((100000 - int(psrDiffMs) + 10) / 20) * 20
	require.Equal(t, wantTransmitTimeMs, st.TransmitTimeMs)
}

func TestResolveTransmitTimeMsFailsWithoutRangePredictorBelowKalmanQuality(t *testing.T) {
	m := rtime.NewManager()
	m.SetReceiverTime(signal.L1CA, 2000, 100000, 0)

	p := NewProcessor(&fakeFrameSync{}, m)
	p.channels[0].Stage = channel.StageTrack0
	p.channels[0].CN0 = 1000
	p.channels[0].LockTime = 50
	p.channels[0].frame = nav.FrameInfo{Synced: false, TOW: -1}

	p.calculateRawMsr(0, ChannelSample{Signal: signal.ID{Band: signal.L1CA, Svid: 1}}, 1000, PosCoarse)

	require.Zero(t, p.Status(0).ChannelFlag&MeasurementValid)
}
