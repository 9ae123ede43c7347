// Package temgr implements the Tracking Engine Manager: the fixed-size
// channel pool, its occupancy bitmap, and the two baseband interrupt
// handlers (coherent-sum ready, measurement epoch) that drive every
// channel's per-epoch processing and flush their cached state back to
// hardware.
package temgr

import (
	"github.com/globsky/greta-oto/pkg/firmware/channel"
	"github.com/globsky/greta-oto/pkg/firmware/hwio"
	"github.com/globsky/greta-oto/pkg/firmware/taskmgr"
	"github.com/globsky/greta-oto/pkg/firmware/taskqueue"
)

// TotalChannels is the size of the tracking-channel pool.
const TotalChannels = 32

// Measurement is one channel's raw observable contribution to a
// measurement epoch, timestamped and tagged for the post-measurement task.
type Measurement struct {
	channel.Measurement
	Valid bool
}

// Params carries the measurement-epoch bookkeeping the post-measurement
// task needs: which channels contributed, the nominal epoch interval, and
// any pending clock-steering adjustment.
type Params struct {
	ChannelMask uint32
	IntervalMs  int
	ClockAdjust int
	TickCount   int
}

// PostMeasScheduler is the subset of taskmgr.Manager the manager needs to
// enqueue the post-measurement task.
type PostMeasScheduler interface {
	AddToTask(queue taskmgr.QueueType, fn taskqueue.Func, param interface{}, paramSize int) bool
}

// Manager owns the channel pool and the two interrupt entry points.
type Manager struct {
	HW hwio.Registers

	channels   [TotalChannels]*channel.Channel
	occupation uint32

	Measurements [TotalChannels]Measurement

	Scheduler  PostMeasScheduler
	IntervalMs int

	NoiseFloor func(logicalChannel int) int // per-channel noise-floor sample source

	OnMeasurements func(Params) // post-measurement task body, e.g. an adapter that runs measure.Processor.Process
}

// NewManager builds a channel pool bound to hw, each channel given sched as
// its baseband-queue scheduler for bit-sync/data-decode task hand-off.
func NewManager(hw hwio.Registers, sched channel.Scheduler) *Manager {
	m := &Manager{HW: hw}
	for i := range m.channels {
		m.channels[i] = channel.NewChannel(i, sched)
	}
	return m
}

// ChannelEnableMask returns the occupancy bitmap (one bit per logical
// channel), matching GetChannelEnable.
func (m *Manager) ChannelEnableMask() uint32 { return m.occupation }

// GetAvailableChannel claims and returns the lowest-indexed free channel,
// or nil if the pool is full.
func (m *Manager) GetAvailableChannel() *channel.Channel {
	for i, ch := range m.channels {
		if m.occupation&(1<<uint(i)) == 0 {
			m.occupation |= 1 << uint(i)
			return ch
		}
	}
	return nil
}

// ReleaseChannel frees logical channel ch's pool slot. It does not itself
// disable the hardware channel; UpdateChannels does that as part of its
// RELEASE-stage sweep.
func (m *Manager) ReleaseChannel(logicalChannel int) {
	m.occupation &^= 1 << uint(logicalChannel)
}

// Channel returns the pool's channel object for logicalChannel, regardless
// of occupancy (callers that just acquired a slot need this before the
// slot's Channel is otherwise reachable).
func (m *Manager) Channel(logicalChannel int) *channel.Channel {
	return m.channels[logicalChannel]
}

// UpdateChannels flushes every occupied channel's dirty HW-SB cache to
// hardware, or — for a channel that has reached RELEASE — disables it in
// RegTEChannelEnable and drops it from the occupancy bitmap instead.
func (m *Manager) UpdateChannels() {
	for i, ch := range m.channels {
		mask := uint32(1) << uint(i)
		if m.occupation&mask == 0 {
			continue
		}
		if ch.Stage == channel.StageRelease {
			enable := m.HW.ReadReg(hwio.RegTEChannelEnable)
			m.HW.WriteReg(hwio.RegTEChannelEnable, enable&^mask)
			m.ReleaseChannel(i)
			continue
		}
		ch.SyncCacheWrite(m.HW)
	}
}

// HandleCohSumInterrupt is the coherent-sum-ready ISR: it reads which
// channels have a fresh dump and which are hardware-overwrite-protected,
// runs ProcessCohSum for each, then flushes/releases via UpdateChannels.
func (m *Manager) HandleCohSumInterrupt() {
	ready := m.HW.ReadReg(hwio.RegTECohDataReady)
	protect := m.HW.ReadReg(hwio.RegTEOverwriteProtect)

	for i, ch := range m.channels {
		mask := uint32(1) << uint(i)
		if ready&mask == 0 {
			continue
		}
		noiseFloor := 0
		if m.NoiseFloor != nil {
			noiseFloor = m.NoiseFloor(i)
		}
		decodeDataWord := m.HW.ReadReg(hwio.TEChannelWordAddr(i, hwio.WordDecodeData))
		ch.SetEpochInputs(decodeDataWord, noiseFloor)
		ch.ProcessCohSum(m.HW, protect&mask != 0)
	}
	m.UpdateChannels()
}

// HandleMeasurementInterrupt composes a Measurement for every occupied
// channel and enqueues the post-measurement task with the epoch's
// channel mask, interval and tick count.
func (m *Manager) HandleMeasurementInterrupt(tickCount int) {
	var mask uint32
	for i, ch := range m.channels {
		bit := uint32(1) << uint(i)
		if m.occupation&bit == 0 {
			m.Measurements[i].Valid = false
			continue
		}
		m.Measurements[i] = Measurement{Measurement: ch.ComposeMeasurement(m.HW), Valid: true}
		mask |= bit
	}

	params := Params{ChannelMask: mask, IntervalMs: m.IntervalMs, TickCount: tickCount}
	if m.Scheduler != nil {
		m.Scheduler.AddToTask(taskmgr.PostMeas, func(interface{}) { m.dispatchMeasurements(params) }, params, paramsSize)
	}
}

const paramsSize = 16

// dispatchMeasurements is the hook into the raw-measurement/PVT pipeline:
// receiver-time update, pseudorange/Doppler/carrier-phase derivation and
// PVT live outside this package (measure.Processor, an external solver), so
// it does nothing unless OnMeasurements is set.
func (m *Manager) dispatchMeasurements(p Params) {
	if m.OnMeasurements != nil {
		m.OnMeasurements(p)
	}
}
