package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSetWaitCoalesces(t *testing.T) {
	e := NewEvent()
	e.Set()
	e.Set()
	e.Set()

	select {
	case <-e.Chan():
	case <-time.After(time.Second):
		t.Fatal("event never signalled")
	}

	select {
	case <-e.Chan():
		t.Fatal("repeated Set should not queue extra signals")
	default:
	}
}

func TestCreateThreadRuns(t *testing.T) {
	done := make(chan struct{})
	CreateThread(func(param interface{}) {
		assert.Equal(t, "hello", param)
		close(done)
	}, 1, "hello")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("thread never ran")
	}
}

func TestAttachDebugFuncStoresVisibleCallback(t *testing.T) {
	var got int
	AttachDebugFunc(func(param interface{}, value int) { got = value })
	Debug(nil, 99)
	require.Equal(t, 99, got)
}

func TestPopCount(t *testing.T) {
	assert.Equal(t, 0, PopCount(0))
	assert.Equal(t, 4, PopCount(0xf))
	assert.Equal(t, 32, PopCount(0xffffffff))
}

func TestCountLeadingZeros(t *testing.T) {
	assert.Equal(t, 32, CountLeadingZeros(0))
	assert.Equal(t, 0, CountLeadingZeros(0x80000000))
	assert.Equal(t, 31, CountLeadingZeros(1))
}

func TestSimClockAdvance(t *testing.T) {
	var c SimClock
	assert.Equal(t, uint32(0), c.TickGet())
	c.Advance(5)
	c.Advance(3)
	assert.Equal(t, uint32(8), c.TickGet())
}
