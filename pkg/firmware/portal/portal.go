// Package portal implements the firmware portal: the single top-level
// interrupt dispatcher and the boot-time wiring that assembles the task
// manager, tracking/acquisition engines and raw-measurement pipeline into
// one running receiver, the way FirmwarePortal.c's InterruptService and
// FirmwareInitialize do.
package portal

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/globsky/greta-oto/pkg/firmware/aemgr"
	"github.com/globsky/greta-oto/pkg/firmware/config"
	"github.com/globsky/greta-oto/pkg/firmware/hwio"
	"github.com/globsky/greta-oto/pkg/firmware/measure"
	"github.com/globsky/greta-oto/pkg/firmware/nav"
	"github.com/globsky/greta-oto/pkg/firmware/output"
	"github.com/globsky/greta-oto/pkg/firmware/persist"
	"github.com/globsky/greta-oto/pkg/firmware/rtime"
	"github.com/globsky/greta-oto/pkg/firmware/signal"
	"github.com/globsky/greta-oto/pkg/firmware/taskmgr"
	"github.com/globsky/greta-oto/pkg/firmware/temgr"
)

// defaultMeasurementIntervalMs is the measurement-epoch period FirmwareInitialize
// programs (MeasurementInterval = 100).
const defaultMeasurementIntervalMs = 100

// StartType selects how much previously-persisted or externally supplied
// state Boot may assume is already valid, matching ColdStart/WarmStart/
// HotStart.
type StartType int

const (
	ColdStart StartType = iota
	WarmStart
	HotStart
)

func (s StartType) String() string {
	switch s {
	case ColdStart:
		return "cold"
	case WarmStart:
		return "warm"
	case HotStart:
		return "hot"
	default:
		return "unknown"
	}
}

// requestSignals adapts a hwio.Registers to taskmgr.RequestSignals via the
// software request-timer reload register.
type requestSignals struct{ hw hwio.Registers }

func (r requestSignals) SetRequestCount(ms int) { r.hw.WriteReg(hwio.RegRequestCount, uint32(ms)) }
func (r requestSignals) GetRequestCount() int   { return int(r.hw.ReadReg(hwio.RegRequestCount)) }

// basebandScheduler adapts taskmgr.Manager's queue-selecting AddToTask to
// channel.Scheduler's single-queue signature, always targeting Baseband.
type basebandScheduler struct{ tasks *taskmgr.Manager }

func (s basebandScheduler) AddToTask(fn func(interface{}), param interface{}, paramSize int) bool {
	return s.tasks.AddToTask(taskmgr.Baseband, fn, param, paramSize)
}

// Portal owns every manager the boot sequence wires together and is the
// module's single externally-driven entry point: one constructor, one
// Boot call, one interrupt dispatcher.
type Portal struct {
	HW     hwio.Registers
	Tasks  *taskmgr.Manager
	TE     *temgr.Manager
	AE     *aemgr.Manager
	Time   *rtime.Manager
	Measure *measure.Processor
	Store  persist.Store
	Config *config.Receiver
	Logger logrus.FieldLogger

	// Output is left nil by New; a caller that wants $P... sentences opens
	// ports (OpenConfiguredPorts, or its own output.Port) and assigns it.
	Output *output.Recorder

	// PosQuality supplies the position-solution accuracy tier the raw-
	// measurement transmit-time fallback compares against; the PVT solver
	// that produces it is an external collaborator, so this defaults to
	// reporting measure.PosUnknown until a caller sets it.
	PosQuality func() measure.PosQuality

	// OnLoadParameters/OnSaveParameters are the persisted-state codec: the
	// PVT-config/receiver-info/ionoutc/almanac/ephemeris structures LoadAll-
	// Parameters/SaveAllParameters populate belong to the external PVT/
	// navigation-message collaborators (see spec Non-goals), so Boot only
	// calls these hooks with Store and leaves the byte layout inside each
	// region to whichever caller supplies them.
	OnLoadParameters func(store persist.Store) error
	OnSaveParameters func(store persist.Store) error

	BootID string

	clock aemgr.Clock
}

// New wires hw, a fresh task manager, tracking/acquisition engines and a
// raw-measurement processor into a Portal, matching FirmwareInitialize's
// manager-construction half. frameSync and rangePredictor are the external
// navigation-message/PVT collaborators (nav.FrameSync, measure.
// PseudoRangePredictor); either may be nil until wired in later.
func New(hw hwio.Registers, clock aemgr.Clock, cfg *config.Receiver, store persist.Store, logger logrus.FieldLogger, frameSync nav.FrameSync, rangePredictor measure.PseudoRangePredictor) *Portal {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &Portal{HW: hw, Config: cfg, Store: store, Logger: logger, clock: clock}

	p.Tasks = taskmgr.NewManager(requestSignals{hw}, logger)

	p.TE = temgr.NewManager(hw, basebandScheduler{p.Tasks})
	p.TE.Scheduler = p.Tasks
	p.TE.IntervalMs = defaultMeasurementIntervalMs
	p.TE.OnMeasurements = p.onMeasurements
	p.TE.NoiseFloor = func(int) int { return int(hw.ReadReg(hwio.RegTENoiseFloor)) }
	for i := 0; i < temgr.TotalChannels; i++ {
		p.TE.Channel(i).OnDecodedSymbol = p.onDecodedSymbol
	}

	p.AE = aemgr.NewManager(hw, p.TE, p.Tasks, clock)

	p.Time = rtime.NewManager()
	p.Measure = measure.NewProcessor(frameSync, p.Time)
	p.Measure.RangePredictor = rangePredictor

	return p
}

// OpenConfiguredPorts opens cfg's measurement and data-symbol output ports
// as real serial ports and returns a Recorder ready to assign to
// Portal.Output. Use a hand-built output.Recorder instead for a file- or
// buffer-backed port (tests, cmd/basebandsim).
func OpenConfiguredPorts(cfg *config.Receiver, logger logrus.FieldLogger) (*output.Recorder, error) {
	measPort, err := output.OpenSerialPort(cfg.MeasurementPort.Path, cfg.MeasurementPort.Baud)
	if err != nil {
		return nil, fmt.Errorf("opening measurement port: %w", err)
	}
	dataPort, err := output.OpenSerialPort(cfg.DataPort.Path, cfg.DataPort.Baud)
	if err != nil {
		measPort.Close()
		return nil, fmt.Errorf("opening data port: %w", err)
	}
	return &output.Recorder{MeasPort: measPort, DataPort: dataPort, Logger: logger}, nil
}

// codeSpanFor is the per-band code-phase search span (1/3-chip units of
// uncertainty) FirmwareInitialize's sv_list loop assigns by GET_FREQ_ID.
func codeSpanFor(band signal.Band) int {
	switch band {
	case signal.E1:
		return 12
	case signal.B1C, signal.L1C:
		return 30
	default: // L1CA
		return 3
	}
}

// buildAcqTask turns cfg's pre-acquisition candidate list into an
// aemgr.Task, the config-driven replacement for FirmwareInitialize's
// hardcoded debug sv_list (cold start) and almanac-derived SatList (warm/
// hot start, GetSatelliteInView — out of this core's scope). The boot task
// always integrates at the BPSK preset (CohNumber 4, NoncohNumber 1)
// regardless of any BDS/Galileo candidates present, matching the original,
// which never varies CohNumber/NoncohNumber for this task; only the
// cold-vs-warm/hot frequency range (full vs narrow Doppler search) differs.
func buildAcqTask(cfg *config.Receiver, start StartType) (*aemgr.Task, error) {
	var task aemgr.Task

	for _, c := range cfg.Candidates {
		if task.AcqChNumber >= aemgr.MaxSatConfig {
			break
		}
		id, err := c.SignalID()
		if err != nil {
			return nil, fmt.Errorf("building acquisition candidate list: %w", err)
		}
		centerFreq := c.CenterFreqHz
		if start == ColdStart {
			centerFreq = 0
		}
		task.SatConfig[task.AcqChNumber] = aemgr.SatConfig{
			Signal:     id,
			CodeSpan:   codeSpanFor(id.Band),
			CenterFreq: centerFreq,
		}
		task.AcqChNumber++
	}

	task.SearchMode = aemgr.SearchModeTypeBPSK
	if start == ColdStart {
		task.SearchMode |= aemgr.SearchModeFreqFull
	} else {
		task.SearchMode |= aemgr.SearchModeFreqNarrow
	}
	return &task, nil
}

// Boot runs the hardware register initialisation sequence, optionally loads
// persisted parameters, and arms the initial acquisition task, matching
// FirmwareInitialize. Time/position aiding on a hot start (UtcToGpsTime)
// belongs to the external PVT/time-conversion collaborator and is outside
// this core's scope; callers that have a current fix encode it directly as
// Doppler aiding in cfg.Candidates instead.
func (p *Portal) Boot(start StartType) error {
	p.BootID = uuid.New().String()
	logger := p.Logger.WithField("boot_id", p.BootID).WithField("start", start.String())

	p.HW.WriteReg(hwio.RegBBEnable, 0x100)
	p.HW.WriteReg(hwio.RegFIFOClear, 0x100)
	p.HW.WriteReg(hwio.RegMeasNumber, uint32(p.TE.IntervalMs))
	p.HW.WriteReg(hwio.RegMeasCount, 0)
	p.HW.WriteReg(hwio.RegRequestCount, 8)
	p.HW.WriteReg(hwio.RegInterruptMask, 0xf00)
	p.HW.WriteReg(hwio.RegTEChannelEnable, 0)
	p.HW.WriteReg(hwio.RegTEPolynomial1, 0x00e98204)
	p.HW.WriteReg(hwio.RegTECodeLength1, 0x00ffc000)
	p.HW.WriteReg(hwio.RegTENoiseConfig, 1)
	p.HW.WriteReg(hwio.RegAECarrierFreq, 0)
	p.HW.WriteReg(hwio.RegAECodeRatio, 0x2000000)
	p.HW.WriteReg(hwio.RegAEThreshold, 37)
	p.HW.WriteReg(hwio.RegAEBufferControl, 0x300+5)

	p.HW.AttachISR(p.HandleInterrupt)

	if start != ColdStart && p.OnLoadParameters != nil && p.Store != nil {
		if err := p.OnLoadParameters(p.Store); err != nil {
			logger.WithError(err).Warn("loading persisted parameters failed, continuing without them")
		}
	}

	if p.Config != nil {
		task, err := buildAcqTask(p.Config, start)
		if err != nil {
			return err
		}
		if task.AcqChNumber > 0 {
			taskID := uuid.New().String()
			logger.WithFields(logrus.Fields{"task_id": taskID, "candidates": task.AcqChNumber}).Info("arming boot acquisition task")
			if slot := p.AE.GetFreeAcqTask(); slot != nil {
				*slot = *task
				p.AE.AddAcqTask(slot)
			}
		}
	}

	p.HW.EnableRF()
	logger.Info("firmware portal booted")
	return nil
}

// HandleInterrupt is the single top-level baseband ISR: it decodes cause's
// coh-sum/measurement/request/AE bits (hwio.IntBit*), dispatches each to its
// manager, clears the interrupt, and resumes TE if any TE-owned cause
// (bits 8-10) fired, matching InterruptService.
func (p *Portal) HandleInterrupt(cause uint32) {
	if cause&(1<<hwio.IntBitCohSum) != 0 {
		p.TE.HandleCohSumInterrupt()
	}
	if cause&(1<<hwio.IntBitMeasurement) != 0 {
		p.TE.HandleMeasurementInterrupt(int(p.clock.TickGet()))
	}
	if cause&(1<<hwio.IntBitRequest) != 0 {
		p.Tasks.DoRequestTask()
	}
	if cause&(1<<hwio.IntBitAE) != 0 {
		p.AE.AeInterruptProc()
	}

	p.HW.WriteReg(hwio.RegInterruptFlag, cause)
	if cause&0x700 != 0 {
		p.HW.WriteReg(hwio.RegTrackingStart, 1)
	}
}

// onMeasurements is temgr.Manager.OnMeasurements: it gathers every
// contributing channel's observable plus the tracking bookkeeping
// measure.ChannelSample needs, runs one raw-measurement epoch, and
// publishes the result to Output.
func (p *Portal) onMeasurements(params temgr.Params) {
	samples := p.buildSamples(params.ChannelMask)

	quality := measure.PosUnknown
	if p.PosQuality != nil {
		quality = p.PosQuality()
	}

	p.Measure.Process(samples[:], params.ChannelMask, uint32(params.TickCount), defaultMeasurementIntervalMs, defaultMeasurementIntervalMs, quality)
	p.publishMeasurements(params)
}

// buildSamples reads every active channel's current tracking-stage/CN0/
// data-decode bookkeeping alongside its composed Measurement, assembling
// the measure.ChannelSample the raw-measurement pipeline needs but temgr's
// Params alone doesn't carry.
func (p *Portal) buildSamples(mask uint32) [temgr.TotalChannels]measure.ChannelSample {
	var samples [temgr.TotalChannels]measure.ChannelSample
	for i := 0; i < temgr.TotalChannels; i++ {
		if mask&(uint32(1)<<uint(i)) == 0 {
			continue
		}
		ch := p.TE.Channel(i)
		samples[i] = measure.ChannelSample{
			Measurement:  p.TE.Measurements[i].Measurement,
			Signal:       ch.Signal,
			Stage:        ch.Stage,
			CN0:          ch.CN0,
			TrackingTime: ch.TrackingTime,
			DataNumber:   ch.DataStream.DataCount,
			Symbols:      ch.DataStream.Symbols,
			EnableBOC:    signal.Lookup(ch.Signal.Band).Modulation == signal.BOC11,
		}
	}
	return samples
}

// publishMeasurements composes and writes the $PMSRP/$PBMSR/$PMSRE epoch,
// matching ComposeOutput.c's MeasPrintTask.
func (p *Portal) publishMeasurements(params temgr.Params) {
	if p.Output == nil {
		return
	}

	var epoch output.MeasurementEpoch
	epoch.ChannelMask = params.ChannelMask
	epoch.TickCount = params.TickCount
	epoch.IntervalMs = params.IntervalMs
	epoch.ClockAdjust = params.ClockAdjust
	epoch.Time = p.Time.Snapshot()

	for i := 0; i < temgr.TotalChannels; i++ {
		if params.ChannelMask&(uint32(1)<<uint(i)) == 0 {
			continue
		}
		ch := p.TE.Channel(i)
		status := p.Measure.Status(i)
		epoch.Channels[i] = output.ChannelRecord{
			Measurement:  p.TE.Measurements[i].Measurement,
			Signal:       ch.Signal,
			Stage:        ch.Stage,
			CN0:          status.CN0,
			TrackingTime: status.LockTime,
		}
	}

	p.Output.WriteMeasurements(epoch)
}

// onDecodedSymbol is every channel's OnDecodedSymbol: it publishes the
// decoded 32-bit batch as a $PDATA sentence, matching BasebandDataOutput.
func (p *Portal) onDecodedSymbol(logicalChannel int, symbols uint32, startIndex, tickCount int) {
	if p.Output == nil {
		return
	}
	ch := p.TE.Channel(logicalChannel)
	p.Output.WriteDataSymbol(output.DataSymbol{
		LogicChannel: logicalChannel,
		Signal:       ch.Signal,
		SymbolIndex:  startIndex,
		TickCount:    tickCount,
		DataStream:   symbols,
	})
}
