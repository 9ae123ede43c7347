package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// noopCS is a single-threaded critical section stand-in for deterministic tests.
type noopCS struct{}

func (noopCS) Enter() {}
func (noopCS) Exit()  {}

func TestDrainRunsFIFO(t *testing.T) {
	var q Queue
	q.Init(4, 64, noopCS{})

	var order []int
	require.True(t, q.AddTask(func(p interface{}) { order = append(order, p.(int)) }, 1, 4))
	require.True(t, q.AddTask(func(p interface{}) { order = append(order, p.(int)) }, 2, 4))
	require.True(t, q.AddTask(func(p interface{}) { order = append(order, p.(int)) }, 3, 4))

	n := q.Drain()
	require.Equal(t, 3, n)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestAddTaskFailsWhenItemPoolExhausted(t *testing.T) {
	var q Queue
	q.Init(2, 64, noopCS{})

	require.True(t, q.AddTask(func(interface{}) {}, nil, 4))
	require.True(t, q.AddTask(func(interface{}) {}, nil, 4))
	require.False(t, q.AddTask(func(interface{}) {}, nil, 4), "item pool of 2 exhausted by two enqueues")
}

// TestRingWrapAround reproduces the spec's wrap-around scenario: a 32-DWORD
// ring, 8 enqueues of 12 bytes (3 DWORDs) each, drain 6, then 6 more enqueues
// must all succeed (none may return false) as the ring cursor wraps past the
// end of the buffer back toward offset 0.
func TestRingWrapAround(t *testing.T) {
	var q Queue
	q.Init(16, 128, noopCS{}) // 128 bytes == 32 DWORDs

	ran := 0
	fn := func(interface{}) { ran++ }

	for i := 0; i < 8; i++ {
		require.True(t, q.AddTask(fn, i, 12), "enqueue %d", i)
	}

	for i := 0; i < 6; i++ {
		task := q.wait
		require.NotNil(t, task)
		task.fn(task.param)
		q.releaseWaitItem()
	}
	require.Equal(t, 6, ran)

	for i := 8; i < 14; i++ {
		require.True(t, q.AddTask(fn, i, 12), "enqueue %d after wrap", i)
	}

	require.Equal(t, 8, q.Drain())
	require.Equal(t, 14, ran)
}

// TestRingWrapNeverOverlaps checks the stronger invariant behind the
// wrap-around scenario directly: every item still in the wait list at any
// point has a parameter region disjoint from every other.
func TestRingWrapNeverOverlaps(t *testing.T) {
	var q Queue
	q.Init(16, 128, noopCS{})

	fn := func(interface{}) {}
	for i := 0; i < 8; i++ {
		require.True(t, q.AddTask(fn, i, 12))
	}
	for i := 0; i < 6; i++ {
		task := q.wait
		task.fn(task.param)
		q.releaseWaitItem()
	}
	for i := 8; i < 14; i++ {
		require.True(t, q.AddTask(fn, i, 12))
	}

	type span struct{ start, end int }
	var spans []span
	for n := q.wait; n != nil; n = n.next {
		spans = append(spans, span{n.paramStart, n.paramStart + n.paramWords})
	}
	for i := range spans {
		for j := range spans {
			if i == j {
				continue
			}
			overlap := spans[i].start < spans[j].end && spans[j].start < spans[i].end
			require.False(t, overlap, "spans %v and %v overlap", spans[i], spans[j])
		}
	}
}

func TestEmptyQueueResetsCursors(t *testing.T) {
	var q Queue
	q.Init(4, 16, noopCS{}) // 4 DWORDs

	require.True(t, q.AddTask(func(interface{}) {}, nil, 16)) // fills the ring exactly
	require.Equal(t, 1, q.Drain())

	// with the wait list empty again, cursors reset to zero so a
	// full-capacity reservation succeeds again immediately.
	require.True(t, q.AddTask(func(interface{}) {}, nil, 16))
}

func TestParamRingNeverOverlapsInFlightItems(t *testing.T) {
	var q Queue
	q.Init(8, 32, noopCS{}) // 8 DWORDs

	var seen []int
	hold := func(p interface{}) { seen = append(seen, p.(int)) }

	require.True(t, q.AddTask(hold, 1, 12)) // 3 words: [0,3)
	require.True(t, q.AddTask(hold, 2, 12)) // 3 words: [3,6)

	// third item needs 3 words but only 2 remain to the end and the ring is
	// not yet wrapped (WaitQueue non-empty, WritePosition==6, ReadPosition==0):
	// admission must fail rather than silently overlap item 1's region.
	require.False(t, q.AddTask(hold, 3, 12))
}
