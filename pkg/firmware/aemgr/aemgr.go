// Package aemgr implements the Acquisition Engine Manager: a small pool of
// search tasks, the search-stride/integration presets those tasks draw
// from, the AE sample-buffer fill sequencing, and the acquisition-to-
// tracking hand-off that allocates and configures a tracking channel once a
// candidate survives verification.
package aemgr

import (
	"github.com/globsky/greta-oto/pkg/firmware/channel"
	"github.com/globsky/greta-oto/pkg/firmware/hwio"
	"github.com/globsky/greta-oto/pkg/firmware/signal"
	"github.com/globsky/greta-oto/pkg/firmware/taskmgr"
	"github.com/globsky/greta-oto/pkg/firmware/taskqueue"
)

// MaxTasks bounds the acquire-task pool.
const MaxTasks = 4

// MaxSatConfig bounds how many satellites one acquire task can search in a
// single AE pass.
const MaxSatConfig = 12

// SamplesPerMs is the front-end sample rate expressed as samples per
// millisecond; it scales AE FIFO address gaps into elapsed time and code
// phase. The real value is a target clock constant outside this core's
// scope, so this stands in for it the same way channel.carrierFreqWord
// stands in for the NCO scaling macros.
const SamplesPerMs = 16368

// SearchMode is the bit-packed acquire-task mode word: bit 0 selects
// BPSK/BOC, bits 1-2 the Doppler search range, bit 3 sensitivity, bits 4-5
// the search stage.
type SearchMode int

const (
	SearchModeTypeBPSK SearchMode = 0 << 0
	SearchModeTypeBOC  SearchMode = 1 << 0
	SearchModeTypeMask SearchMode = 1 << 0

	SearchModeFreqFull   SearchMode = 0 << 1
	SearchModeFreqWide   SearchMode = 1 << 1
	SearchModeFreqNarrow SearchMode = 2 << 1
	SearchModeFreqSingle SearchMode = 3 << 1
	SearchModeFreqMask   SearchMode = 3 << 1

	SearchModePowerHi   SearchMode = 0 << 3
	SearchModePowerLo   SearchMode = 1 << 3
	SearchModePowerMask SearchMode = 1 << 3

	SearchModeStageAcq    SearchMode = 0 << 4
	SearchModeStageVerify SearchMode = 3 << 4
	SearchModeStageMask   SearchMode = 3 << 4
)

// SatConfig is one satellite's search-list entry: the signal to search for,
// the code-phase span (in 1/3-chip units of uncertainty) to cover, and the
// predicted/assigned Doppler centre frequency in Hz.
type SatConfig struct {
	Signal     signal.ID
	CodeSpan   int
	CenterFreq int
}

// SearchConfig is one row of the coherent/non-coherent integration and
// Doppler-stride preset table.
type SearchConfig struct {
	CohNumber      int
	NoncohNumber   int
	StrideNumber   int
	StrideInterval int // Hz between adjacent Doppler bins
}

// searchConfigArray holds five integration/stride presets: the four AddAcqTask
// picks from by signal type and frequency range, plus the fixed verification
// preset doVerification always re-arms with.
var searchConfigArray = [5]SearchConfig{
	{CohNumber: 4, NoncohNumber: 1, StrideNumber: 19, StrideInterval: 500}, // BPSK cold
	{CohNumber: 4, NoncohNumber: 1, StrideNumber: 3, StrideInterval: 500},  // BPSK hot/warm
	{CohNumber: 4, NoncohNumber: 2, StrideNumber: 19, StrideInterval: 500}, // BOC cold
	{CohNumber: 4, NoncohNumber: 2, StrideNumber: 3, StrideInterval: 500},  // BOC hot/warm
	{CohNumber: 4, NoncohNumber: 2, StrideNumber: 1, StrideInterval: 300},  // verification
}

// Task is one acquire-task slot: the search mode, how many satellites are
// active in SatConfig, and the integration preset AddTask attached.
type Task struct {
	SearchMode   SearchMode
	AcqChNumber  int
	SearchConfig *SearchConfig
	SatConfig    [MaxSatConfig]SatConfig
}

// ChannelPool is the subset of temgr.Manager the hand-off needs: claim a
// free tracking channel, flush/release the pool after configuring it, and
// read back the enable bitmap to publish to hardware.
type ChannelPool interface {
	GetAvailableChannel() *channel.Channel
	UpdateChannels()
	ChannelEnableMask() uint32
}

// Scheduler is the subset of taskmgr.Manager the hand-off needs: enqueue
// ProcessAcqResult on the request queue (so it re-synchronises with the
// next TE interrupt) and arm the AE buffer-fill wait request.
type Scheduler interface {
	AddToTask(queue taskmgr.QueueType, fn taskqueue.Func, param interface{}, paramSize int) bool
	AddWaitRequest(reason taskmgr.WaitReason, waitDelayMs int)
	SetWaitRequest(reason taskmgr.WaitReason, condition func() bool, onReady func())
}

// Clock supplies the millisecond tick AcqBufferTimeTag is measured against.
type Clock interface {
	TickGet() uint32
}

// Manager owns the acquire-task pool and the single in-flight AE search.
type Manager struct {
	HW        hwio.Registers
	Pool      ChannelPool
	Scheduler Scheduler
	Clock     Clock

	tasks   [MaxTasks]Task
	pending uint32 // bitmap of tasks awaiting/undergoing acquisition

	current       *Task
	currentIndex  int
	currentSignal SearchMode // SearchModeTypeMask of the in-flight task, -1 if none
	bufferTimeTag uint32
}

// NewManager returns a manager with an empty task pool, matching
// AEInitialize, and registers the AE buffer-fill wait-request condition
// and callback with sched so the armed WaitTaskAE request self-resolves
// into StartAcquisition once the buffer reaches its fill threshold.
func NewManager(hw hwio.Registers, pool ChannelPool, sched Scheduler, clock Clock) *Manager {
	m := &Manager{HW: hw, Pool: pool, Scheduler: sched, Clock: clock, currentSignal: -1}
	sched.SetWaitRequest(taskmgr.WaitTaskAE, m.AcqBufferReachTh, m.StartAcquisition)
	return m
}

// GetFreeAcqTask returns the lowest-indexed task slot not already pending,
// or nil if the pool is full.
func (m *Manager) GetFreeAcqTask() *Task {
	for i := range m.tasks {
		if m.pending&(1<<uint(i)) == 0 {
			return &m.tasks[i]
		}
	}
	return nil
}

func (m *Manager) taskIndex(t *Task) int {
	for i := range m.tasks {
		if &m.tasks[i] == t {
			return i
		}
	}
	return -1
}

// AddAcqTask marks task pending, attaches the integration/stride preset
// matching its type and frequency range, and starts it immediately if no
// acquisition is currently in flight.
func (m *Manager) AddAcqTask(task *Task) {
	i := m.taskIndex(task)
	m.pending |= 1 << uint(i)

	full := task.SearchMode&SearchModeFreqMask == SearchModeFreqFull
	if task.SearchMode&SearchModeTypeMask == SearchModeTypeBPSK {
		if full {
			task.SearchConfig = &searchConfigArray[0]
		} else {
			task.SearchConfig = &searchConfigArray[1]
		}
	} else {
		if full {
			task.SearchConfig = &searchConfigArray[2]
		} else {
			task.SearchConfig = &searchConfigArray[3]
		}
	}

	if m.current == nil {
		m.doAcqTask()
	}
}

// doAcqTask picks the next pending task (if any), filling the AE sample
// buffer first if it does not already hold fresh data of the right signal
// type.
func (m *Manager) doAcqTask() {
	i := -1
	for j := 0; j < MaxTasks; j++ {
		if m.pending&(1<<uint(j)) != 0 {
			i = j
			break
		}
	}
	if i < 0 {
		return
	}

	m.current = &m.tasks[i]
	m.currentIndex = i

	signalType := m.current.SearchMode & SearchModeTypeMask
	tick := m.Clock.TickGet()
	if m.currentSignal != signalType || tick-m.bufferTimeTag > 30000 {
		m.fillAeBuffer(m.current)
	} else {
		m.StartAcquisition()
	}
}

// fillAeBuffer reconfigures the AE front-end (carrier bias, code ratio,
// amplitude threshold) for task's signal type, kicks the sample-buffer
// fill, and arms the AE wait request so acquisition starts once the buffer
// reaches its threshold.
func (m *Manager) fillAeBuffer(task *Task) {
	correlationRange := task.SearchConfig.CohNumber * task.SearchConfig.NoncohNumber

	phaseRange := 0
	for i := 0; i < task.AcqChNumber; i++ {
		span := (task.SatConfig[i].CodeSpan + 2) / 3
		if span > phaseRange {
			phaseRange = span
		}
	}
	correlationRange += phaseRange

	m.currentSignal = task.SearchMode & SearchModeTypeMask
	m.bufferTimeTag = m.Clock.TickGet()

	carrierBiasHz := 0
	if m.currentSignal == SearchModeTypeBOC {
		carrierBiasHz = 1023000
	}
	m.HW.WriteReg(hwio.RegAECarrierFreq, uint32(carrierBiasHz))
	m.HW.WriteReg(hwio.RegAECodeRatio, 0x2000000) // fixed 2.046 Mchip/s code-to-sample ratio
	m.HW.WriteReg(hwio.RegAEThreshold, 37)
	m.HW.WriteReg(hwio.RegAEBufferControl, 0x300+uint32(correlationRange))

	m.Scheduler.AddWaitRequest(taskmgr.WaitTaskAE, correlationRange+1)
}

// AcqBufferReachTh reports whether the AE sample buffer has reached its
// fill threshold, the WaitTaskAE condition predicate.
func (m *Manager) AcqBufferReachTh() bool {
	return m.HW.ReadReg(hwio.RegAEStatus)&hwio.AEStatusBufferReady != 0
}

// StartAcquisition writes every active satellite's search-list entry
// (signal/SVID, centre frequency, code span, Doppler-bin stride) to the AE
// config blocks and kicks the engine. It is registered as the WaitTaskAE
// onReady callback and also called directly once the buffer is known to
// already hold fresh data.
func (m *Manager) StartAcquisition() {
	cfg := m.current.SearchConfig
	dftFreq := (cfg.StrideInterval << 10) / 1000

	for i := 0; i < m.current.AcqChNumber; i++ {
		sat := m.current.SatConfig[i]
		base := hwio.AEConfigBase(i)
		m.HW.WriteReg(base+0, uint32(0x04000000|cfg.NoncohNumber<<16|cfg.CohNumber<<8|cfg.StrideNumber))
		m.HW.WriteReg(base+4, signalSvidWord(sat.Signal)<<24|uint32(centerFreqWord(sat.CenterFreq))&0xfffff)
		m.HW.WriteReg(base+8, uint32(dftFreq<<20|sat.CodeSpan))
		m.HW.WriteReg(base+12, uint32(cfg.StrideInterval))
	}
	m.HW.WriteReg(hwio.RegAEControl, 0x100+uint32(m.current.AcqChNumber))
}

// signalSvidWord packs a signal ID into the AE config word's one-byte
// signal+SVID field: 2 MSBs select the band, 6 LSBs the SVID.
func signalSvidWord(id signal.ID) uint32 {
	return uint32(id.Band)<<6 | uint32(id.Svid&0x3f)
}

// centerFreqWord is a placeholder for the original's AE_CENTER_FREQ NCO
// scaling macro (a target clock constant); a linear Hz-to-word mapping
// keeps the search-stride arithmetic exercised without hard-coding a
// sample-rate constant this core doesn't otherwise need.
func centerFreqWord(hz int) int32 { return int32(hz) * 4 }
