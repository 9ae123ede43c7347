// Package taskmgr routes jobs onto the firmware's four task queues (Request,
// Baseband, PostMeas, InputOutput) and implements the wait-for-condition
// request mechanism driven by the hardware request-timer.
package taskmgr

import (
	"github.com/sirupsen/logrus"

	"github.com/globsky/greta-oto/pkg/firmware/platform"
	"github.com/globsky/greta-oto/pkg/firmware/taskqueue"
)

// Queue type selector for AddToTask.
type QueueType int

const (
	Request QueueType = iota
	Baseband
	PostMeas
	InputOutput
)

// RequestScanInterval is the rearm period for the wait-request predicate
// scan, in milliseconds.
const RequestScanInterval = 5

// MaxWaitReasons bounds the wait-request table. The original firmware
// defines a single reason (WAIT_TASK_AE); this table has room for 8 so a
// future reason needs no resize.
const MaxWaitReasons = 8

// WaitReason indexes the wait-request table. WaitTaskAE is the only reason
// defined by spec.md.
type WaitReason int

const WaitTaskAE WaitReason = 0

// RequestSignals is the hardware-facing side of the Request queue: it forces
// an immediate request interrupt (SetRequestCount(1)) and lets the wait
// mechanism arm the request timer for a future rescan.
type RequestSignals interface {
	SetRequestCount(ms int)
	GetRequestCount() int
}

// Manager owns the four task queues and the wait-request table described in
// spec.md §4.2.
type Manager struct {
	request     taskqueue.Queue
	baseband    taskqueue.Queue
	postMeas    taskqueue.Queue
	inputOutput taskqueue.Queue

	basebandEvent    *platform.Event
	postMeasEvent    *platform.Event
	inputOutputEvent *platform.Event

	signals RequestSignals
	logger  logrus.FieldLogger

	cs platform.CriticalSection

	pending   uint32 // bitmap of armed wait reasons
	condition [MaxWaitReasons]func() bool
	onReady   [MaxWaitReasons]func()
}

// NewManager wires the four queues with the item/buffer sizes the original
// firmware uses (32 items / 4KB for Request, Baseband, PostMeas; 8 items /
// 4KB for InputOutput) and starts the three worker threads.
func NewManager(signals RequestSignals, logger logrus.FieldLogger) *Manager {
	m := &Manager{
		signals:          signals,
		logger:           logger,
		basebandEvent:    platform.NewEvent(),
		postMeasEvent:    platform.NewEvent(),
		inputOutputEvent: platform.NewEvent(),
	}
	m.request.Init(32, 1024*4, &m.cs)
	m.baseband.Init(32, 1024*4, &m.cs)
	m.postMeas.Init(32, 1024*4, &m.cs)
	m.inputOutput.Init(8, 1024*4, &m.cs)

	platform.CreateThread(func(interface{}) { m.workerLoop(&m.baseband, m.basebandEvent) }, 0, nil)
	platform.CreateThread(func(interface{}) { m.workerLoop(&m.postMeas, m.postMeasEvent) }, 1, nil)
	platform.CreateThread(func(interface{}) { m.workerLoop(&m.inputOutput, m.inputOutputEvent) }, 2, nil)

	return m
}

func (m *Manager) workerLoop(q *taskqueue.Queue, ev *platform.Event) {
	for {
		ev.Wait()
		q.Drain()
	}
}

// AddToTask enqueues fn with param onto the named queue and raises the
// matching wake-up signal: a hardware request-count of 1 for Request
// (forcing an immediate request interrupt), or the queue's own OS event for
// the worker threads.
func (m *Manager) AddToTask(queue QueueType, fn taskqueue.Func, param interface{}, paramSize int) bool {
	var ok bool
	switch queue {
	case Request:
		ok = m.request.AddTask(fn, param, paramSize)
		m.signals.SetRequestCount(1)
	case Baseband:
		ok = m.baseband.AddTask(fn, param, paramSize)
		m.basebandEvent.Set()
	case PostMeas:
		ok = m.postMeas.AddTask(fn, param, paramSize)
		m.postMeasEvent.Set()
	case InputOutput:
		ok = m.inputOutput.AddTask(fn, param, paramSize)
		m.inputOutputEvent.Set()
	}
	if !ok {
		m.logger.WithField("queue", queue).Warn("task queue full, job dropped")
	}
	return ok
}

// SetWaitRequest installs the predicate/callback pair for reason, matching
// the original's static ConditionFunc/WaitRequestFunc tables (AE buffer-fill
// check / StartAcquisition for WaitTaskAE).
func (m *Manager) SetWaitRequest(reason WaitReason, condition func() bool, onReady func()) {
	m.condition[reason] = condition
	m.onReady[reason] = onReady
}

// AddWaitRequest arms reason so DoRequestTask starts scanning its predicate,
// and kicks the request timer after waitDelayMs if nothing else has already
// armed it.
func (m *Manager) AddWaitRequest(reason WaitReason, waitDelayMs int) {
	m.cs.Enter()
	m.pending |= 1 << uint(reason)
	m.cs.Exit()

	if m.signals.GetRequestCount() == 0 {
		m.signals.SetRequestCount(waitDelayMs)
	}
}

// DoRequestTask is called from the request ISR: it scans every armed
// predicate, runs the matching callback and clears the bit when true,
// rearms the request timer at RequestScanInterval if anything is still
// pending, then drains the Request queue.
func (m *Manager) DoRequestTask() {
	setNewRequest := false

	if m.pending != 0 {
		for i := WaitReason(0); int(i) < MaxWaitReasons; i++ {
			if m.pending&(1<<uint(i)) == 0 {
				continue
			}
			if m.condition[i] == nil {
				continue
			}
			if m.condition[i]() {
				if m.onReady[i] != nil {
					m.onReady[i]()
				}
				m.cs.Enter()
				m.pending &^= 1 << uint(i)
				m.cs.Exit()
			} else {
				setNewRequest = true
			}
		}
	}

	if setNewRequest {
		m.signals.SetRequestCount(RequestScanInterval)
	}
	m.request.Drain()
}

// DoAllTasks drains the three worker queues (Baseband, PostMeas,
// InputOutput) inline; used by the single-threaded simulation backend
// instead of the three worker goroutines. The Request queue is drained by
// DoRequestTask.
func (m *Manager) DoAllTasks() {
	m.baseband.Drain()
	m.postMeas.Drain()
	m.inputOutput.Drain()
}
