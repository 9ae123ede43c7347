// Package rtime implements the receiver-time manager: the week-millisecond
// clock each constellation's raw measurements are timestamped against, its
// accuracy ladder, and the alignment/prediction/first-fix arithmetic that
// advances it from one measurement epoch to the next.
package rtime

import (
	"sync"

	"github.com/globsky/greta-oto/pkg/firmware/signal"
)

// MsInWeek is the number of milliseconds in a GNSS week.
const MsInWeek = 7 * 24 * 3600 * 1000

// LightSpeed is the speed of light in m/s, used to turn a clock-drift rate
// into an elapsed-time clock-error correction.
const LightSpeed = 299792458.0

// gpsGalBdsLeapMs is the fixed GPS/Galileo-to-BDS week-millisecond offset
// (14 leap seconds at the BDS epoch, expressed in ms).
const gpsGalBdsLeapMs = 14000

// galWeekOffset is how much smaller the Galileo week number is than the GPS
// week number (Galileo week 0 started 1024 GPS weeks after GPS week 0).
const galWeekOffset = 1024

// Quality is the receiver time accuracy ladder, worst to best.
type Quality int

const (
	Unknown Quality = iota
	ExtSet
	Coarse
	Keep
	Accurate
)

// flag bits for which fields of Info currently hold valid data.
const (
	weekMsValid  = 0x1
	weekNumValid = 0x2
)

// Info is the receiver-time state: the constellation-specific week/ms clocks,
// the per-constellation clock error estimate and its drift rate, and the
// accuracy ladder position.
type Info struct {
	Quality Quality
	flags   uint32

	TickCount uint32 // baseband tick count this state is current as of

	GpsMsCount int // GPS/Galileo millisecond-of-week
	BdsMsCount int // BDS millisecond-of-week

	GpsWeekNumber int
	BdsWeekNumber int

	GpsClkError float64 // seconds
	BdsClkError float64
	GalClkError float64
	ClkDrifting float64 // m/s
}

// Manager owns Info and serialises access to it; measurement processing and
// the position solution both update it from different goroutines in the
// original firmware's interrupt/task split, so every method takes a lock the
// same way TimeMutex did.
type Manager struct {
	mu   sync.Mutex
	info Info
}

// NewManager returns a manager with no time information, matching
// TimeInitialize.
func NewManager() *Manager {
	return &Manager{info: Info{
		Quality:       Unknown,
		GpsMsCount:    -1,
		BdsMsCount:    -1,
		GpsWeekNumber: -1,
		BdsWeekNumber: -1,
	}}
}

// Snapshot returns a copy of the current receiver-time state.
func (m *Manager) Snapshot() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// UpdateReceiverTime advances the week-ms clocks from the previous
// measurement epoch to the current one: AlignReceiverTime once coarse time
// has been set and never refined further, PredictReceiverTime for any other
// known quality (ExtSet, Keep, Accurate), nothing while time quality is
// still Unknown.
func (m *Manager) UpdateReceiverTime(tickCount uint32, rcvrIntervalMs int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.info.Quality == Coarse:
		m.alignReceiverTime(tickCount)
	case m.info.Quality != Unknown:
		m.predictReceiverTime(tickCount, rcvrIntervalMs)
	}
}

// alignReceiverTime advances the week-ms clocks by the tick-count delta
// since the last update, forced to an even number of milliseconds, and
// promotes quality to Keep (time is now pinned to a measurement epoch
// instead of merely coarse).
func (m *Manager) alignReceiverTime(tickCount uint32) {
	msDiff := int(tickCount-m.info.TickCount) &^ 1

	if m.info.flags&weekMsValid != 0 {
		m.info.GpsMsCount += msDiff
		m.info.BdsMsCount += msDiff
	}
	m.info.TickCount = tickCount
	m.info.Quality = Keep
}

// predictReceiverTime advances the week-ms clocks by rcvrIntervalMs and
// accumulates the clock-drift-induced clock-error growth over that
// interval, rolling each week-ms clock (and its week number, if valid) at
// the week boundary.
func (m *Manager) predictReceiverTime(tickCount uint32, rcvrIntervalMs int) {
	m.info.TickCount = tickCount

	clkDrifting := m.info.ClkDrifting * float64(rcvrIntervalMs) / LightSpeed / 1000.0
	m.info.GpsClkError += clkDrifting
	m.info.BdsClkError += clkDrifting
	m.info.GalClkError += clkDrifting

	m.info.GpsMsCount += rcvrIntervalMs
	m.info.BdsMsCount += rcvrIntervalMs
	if m.info.GpsMsCount >= MsInWeek {
		m.info.GpsMsCount -= MsInWeek
		if m.info.flags&weekNumValid != 0 {
			m.info.GpsWeekNumber++
		}
	}
	if m.info.BdsMsCount >= MsInWeek {
		m.info.BdsMsCount -= MsInWeek
		if m.info.flags&weekNumValid != 0 {
			m.info.BdsWeekNumber++
		}
	}
}

// isBds reports whether band belongs to the BDS week-ms clock; every other
// tracked band (GPS L1CA/L1C, Galileo E1) shares the GPS/Galileo clock,
// offset from BDS by the fixed leap-second difference.
func isBds(band signal.Band) bool { return band == signal.B1C }

// SetReceiverTime latches a newly-decoded week-millisecond/week-number pair
// from band's frame sync into the receiver clock, cross-deriving the other
// constellation's clock from the fixed GPS/BDS leap-second offset. It
// promotes quality to Coarse the first time week-ms becomes valid, and
// reports whether the week number was accepted (week-ms must already be
// valid for the week number to mean anything).
func (m *Manager) SetReceiverTime(band signal.Band, weekNumber, curWeekMs int, tickCount uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if curWeekMs >= 0 {
		if curWeekMs >= MsInWeek { // predicted time ran past the week boundary
			curWeekMs -= MsInWeek
			if weekNumber >= 0 {
				weekNumber++
			}
		}

		if isBds(band) {
			m.info.BdsMsCount = curWeekMs
			m.info.GpsMsCount = curWeekMs + gpsGalBdsLeapMs
			if m.info.GpsMsCount >= MsInWeek {
				m.info.GpsMsCount -= MsInWeek
			}
		} else {
			m.info.GpsMsCount = curWeekMs
			m.info.BdsMsCount = curWeekMs - gpsGalBdsLeapMs
			if m.info.BdsMsCount < 0 {
				m.info.BdsMsCount += MsInWeek
			}
		}
		m.info.flags |= weekMsValid

		if m.info.Quality < Coarse {
			m.info.TickCount = tickCount
			m.info.Quality = Coarse
		}
	}

	if weekNumber < 0 || m.info.flags&weekMsValid == 0 {
		return false
	}

	if band == signal.E1 {
		weekNumber += galWeekOffset
	}

	if isBds(band) {
		if m.info.BdsWeekNumber < 0 || m.info.BdsWeekNumber != weekNumber {
			m.info.BdsWeekNumber = weekNumber
			m.info.GpsWeekNumber = m.info.BdsWeekNumber + 1356
			if m.info.BdsMsCount > MsInWeek-gpsGalBdsLeapMs {
				m.info.GpsWeekNumber++
			}
		}
	} else {
		if m.info.GpsWeekNumber < 0 || m.info.GpsWeekNumber != weekNumber {
			m.info.GpsWeekNumber = weekNumber
			m.info.BdsWeekNumber = m.info.GpsWeekNumber - 1356
			if m.info.GpsMsCount < gpsGalBdsLeapMs {
				m.info.BdsWeekNumber--
			}
		}
	}
	m.info.flags |= weekNumValid

	return true
}

// GetReceiverWeekMs returns band's current millisecond-of-week projected to
// tickCount, or -1, false if time quality hasn't reached Coarse yet.
func (m *Manager) GetReceiverWeekMs(band signal.Band, tickCount uint32) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.info.Quality < Coarse {
		return -1, false
	}

	var weekMs int
	if isBds(band) {
		weekMs = m.info.BdsMsCount + int(tickCount-m.info.TickCount)
	} else {
		weekMs = m.info.GpsMsCount + int(tickCount-m.info.TickCount)
	}
	if weekMs < 0 {
		weekMs += MsInWeek
	} else if weekMs > MsInWeek {
		weekMs -= MsInWeek
	}
	return weekMs, true
}

// GetReceiverWeekNumber returns band's current week number, or -1, false if
// no week number has been decoded yet.
func (m *Manager) GetReceiverWeekNumber(band signal.Band) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.info.flags&weekNumValid == 0 {
		return -1, false
	}
	switch {
	case isBds(band):
		return m.info.BdsWeekNumber, true
	case band == signal.E1:
		return m.info.GpsWeekNumber - galWeekOffset, true
	default:
		return m.info.GpsWeekNumber, true
	}
}

// WeekMsValid reports whether the week-millisecond clocks hold decoded data.
func (m *Manager) WeekMsValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info.flags&weekMsValid != 0
}

// WeekNumberValid reports whether the week number has been decoded.
func (m *Manager) WeekNumberValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info.flags&weekNumValid != 0
}
