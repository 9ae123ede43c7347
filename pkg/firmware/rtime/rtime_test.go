package rtime

import (
	"testing"

	"github.com/globsky/greta-oto/pkg/firmware/signal"
	"github.com/stretchr/testify/require"
)

func TestNewManagerStartsUnknown(t *testing.T) {
	m := NewManager()
	snap := m.Snapshot()
	require.Equal(t, Unknown, snap.Quality)
	require.Equal(t, -1, snap.GpsMsCount)
	require.Equal(t, -1, snap.GpsWeekNumber)

	_, ok := m.GetReceiverWeekMs(signal.L1CA, 0)
	require.False(t, ok)
	_, ok = m.GetReceiverWeekNumber(signal.L1CA)
	require.False(t, ok)
}

func TestSetReceiverTimeGpsPromotesToCoarseAndCrossDerivesBds(t *testing.T) {
	m := NewManager()
	ok := m.SetReceiverTime(signal.L1CA, 2222, 100000, 5000)
	require.True(t, ok)

	snap := m.Snapshot()
	require.Equal(t, Coarse, snap.Quality)
	require.Equal(t, 100000, snap.GpsMsCount)
	require.Equal(t, 86000, snap.BdsMsCount)
	require.Equal(t, 2222, snap.GpsWeekNumber)
	require.Equal(t, 866, snap.BdsWeekNumber)
}

func TestSetReceiverTimeBdsCrossDerivesGps(t *testing.T) {
	m := NewManager()
	ok := m.SetReceiverTime(signal.B1C, 866, 86000, 10)
	require.True(t, ok)

	snap := m.Snapshot()
	require.Equal(t, 100000, snap.GpsMsCount)
	require.Equal(t, 86000, snap.BdsMsCount)
	require.Equal(t, 2222, snap.GpsWeekNumber)
	require.Equal(t, 866, snap.BdsWeekNumber)
}

func TestSetReceiverTimeGalileoUsesGpsWeekOffset(t *testing.T) {
	m := NewManager()
	m.SetReceiverTime(signal.E1, 1000, 50000, 1)

	week, ok := m.GetReceiverWeekNumber(signal.E1)
	require.True(t, ok)
	require.Equal(t, 1000, week)

	snap := m.Snapshot()
	require.Equal(t, 2024, snap.GpsWeekNumber)
}

func TestSetReceiverTimeWeekMsPastBoundaryRollsWeekNumber(t *testing.T) {
	m := NewManager()
	m.SetReceiverTime(signal.L1CA, 5, MsInWeek+100, 0)

	snap := m.Snapshot()
	require.Equal(t, 100, snap.GpsMsCount)
	require.Equal(t, 6, snap.GpsWeekNumber)
	require.Equal(t, 604786100, snap.BdsMsCount)
	require.Equal(t, -1351, snap.BdsWeekNumber)
}

func TestUpdateReceiverTimeAlignsAtCoarseQuality(t *testing.T) {
	m := NewManager()
	m.SetReceiverTime(signal.L1CA, 2222, 100000, 5000)

	m.UpdateReceiverTime(5010, 10)

	snap := m.Snapshot()
	require.Equal(t, Keep, snap.Quality)
	require.Equal(t, 100010, snap.GpsMsCount)
	require.Equal(t, 86010, snap.BdsMsCount)
	require.EqualValues(t, 5010, snap.TickCount)
}

func TestUpdateReceiverTimePredictsOnceKeepQuality(t *testing.T) {
	m := NewManager()
	m.SetReceiverTime(signal.L1CA, 2222, 100000, 5000)
	m.UpdateReceiverTime(5010, 10) // -> Keep

	m.UpdateReceiverTime(5020, 20)

	snap := m.Snapshot()
	require.Equal(t, Keep, snap.Quality)
	require.Equal(t, 100030, snap.GpsMsCount)
	require.Equal(t, 86030, snap.BdsMsCount)
}

func TestUpdateReceiverTimePredictRollsWeekAndAccumulatesClockError(t *testing.T) {
	m := NewManager()
	m.SetReceiverTime(signal.L1CA, 100, MsInWeek-30, 0)
	m.UpdateReceiverTime(2, 999) // align -> Keep, GpsMsCount = MsInWeek-30+2 = MsInWeek-28

	m.mu.Lock()
	m.info.ClkDrifting = 1000.0 // m/s, exercised only via predictReceiverTime
	m.mu.Unlock()

	m.UpdateReceiverTime(2, 40)

	snap := m.Snapshot()
	require.Equal(t, 12, snap.GpsMsCount) // (MsInWeek-28)+40 wraps past MsInWeek
	require.Equal(t, 101, snap.GpsWeekNumber)
	require.Equal(t, 604786012, snap.BdsMsCount)
	require.Equal(t, -1256, snap.BdsWeekNumber) // unchanged, BdsMsCount stayed under MsInWeek

	wantClkError := 1000.0 * 40 / LightSpeed / 1000.0
	require.InDelta(t, wantClkError, snap.GpsClkError, 1e-12)
	require.InDelta(t, wantClkError, snap.BdsClkError, 1e-12)
	require.InDelta(t, wantClkError, snap.GalClkError, 1e-12)
}

func TestGetReceiverWeekMsProjectsForwardFromLastUpdate(t *testing.T) {
	m := NewManager()
	m.SetReceiverTime(signal.B1C, 866, 86000, 10)

	weekMs, ok := m.GetReceiverWeekMs(signal.B1C, 10)
	require.True(t, ok)
	require.Equal(t, 86000, weekMs)

	weekMs, ok = m.GetReceiverWeekMs(signal.B1C, 60)
	require.True(t, ok)
	require.Equal(t, 86050, weekMs)
}
