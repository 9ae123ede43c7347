package taskmgr

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeSignals struct {
	count int
}

func (f *fakeSignals) SetRequestCount(ms int) { f.count = ms }
func (f *fakeSignals) GetRequestCount() int    { return f.count }

func newTestManager() (*Manager, *fakeSignals) {
	sig := &fakeSignals{}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewManager(sig, logger), sig
}

func TestAddToTaskRequestSetsRequestCount(t *testing.T) {
	m, sig := newTestManager()
	ok := m.AddToTask(Request, func(interface{}) {}, nil, 4)
	require.True(t, ok)
	require.Equal(t, 1, sig.count)
}

func TestAddToTaskBasebandWakesWorker(t *testing.T) {
	m, _ := newTestManager()
	done := make(chan struct{})
	ok := m.AddToTask(Baseband, func(interface{}) { close(done) }, nil, 4)
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("baseband worker never ran the enqueued job")
	}
}

func TestDoRequestTaskScansAndClearsCondition(t *testing.T) {
	m, sig := newTestManager()

	ready := false
	fired := false
	m.SetWaitRequest(WaitTaskAE, func() bool { return ready }, func() { fired = true })
	m.AddWaitRequest(WaitTaskAE, 10)
	require.Equal(t, 10, sig.count)

	m.DoRequestTask()
	require.False(t, fired, "condition not yet true, should not fire")
	require.Equal(t, RequestScanInterval, sig.count, "rearmed for next scan")

	ready = true
	m.DoRequestTask()
	require.True(t, fired)
}

func TestAddWaitRequestDoesNotOverwriteExistingTimer(t *testing.T) {
	m, sig := newTestManager()
	sig.count = 99
	m.SetWaitRequest(WaitTaskAE, func() bool { return false }, func() {})
	m.AddWaitRequest(WaitTaskAE, 10)
	require.Equal(t, 99, sig.count, "a pending timer is left alone")
}
