// Package taskqueue implements the firmware's split-buffer job queue: a
// fixed pool of task items linked into an available freelist and a wait
// FIFO, plus a circular parameter ring whose occupancy is tracked in DWORD
// (4-byte) units exactly as the original firmware accounts it, even though
// Go task parameters are ordinary boxed values rather than raw memcpy'd
// bytes. Preserving the DWORD bookkeeping keeps the admission/rejection
// behaviour (and its wrap-around edge cases) bit-for-bit faithful.
package taskqueue

import "github.com/globsky/greta-oto/pkg/firmware/platform"

// Func is a queued job's callback. Param is whatever AddTask was given.
type Func func(param interface{})

type item struct {
	fn         Func
	param      interface{}
	paramStart int // DWORD offset this item's reservation starts at
	paramWords int // ceil(paramSize/4), the DWORD space this item reserved
	next       *item
}

// Queue is a fixed-capacity MPSC job queue: multiple producers (ISR,
// tasks) serialised by a short critical section, single logical consumer
// draining the wait list.
type Queue struct {
	cs CriticalSectioner

	items     []item
	available *item // freelist head
	wait      *item // wait FIFO head
	tail      *item // wait FIFO tail

	readPos, writePos int // DWORD cursor into the parameter ring
	bufferWords        int // ring capacity in DWORDs
}

// CriticalSectioner abstracts platform.CriticalSection so tests can supply a
// no-op when single-threaded determinism is all that's needed.
type CriticalSectioner interface {
	Enter()
	Exit()
}

// Init sizes the queue for itemCount in-flight items and a parameter ring of
// bufferBytes bytes, and links the available freelist.
func (q *Queue) Init(itemCount int, bufferBytes int, cs CriticalSectioner) {
	q.items = make([]item, itemCount)
	for i := 0; i < itemCount-1; i++ {
		q.items[i].next = &q.items[i+1]
	}
	q.available = &q.items[0]
	q.wait = nil
	q.tail = nil
	q.readPos, q.writePos = 0, 0
	q.bufferWords = bufferBytes / 4
	q.cs = cs
	if q.cs == nil {
		q.cs = &platform.CriticalSection{}
	}
}

// AddTask enqueues fn with param, reserving ceil(paramSize/4) DWORDs of
// ring space for bookkeeping. Returns false if the item pool is exhausted or
// the ring cannot fit the reservation contiguously — the producer must then
// decide (an ISR path typically drops, per §7).
func (q *Queue) AddTask(fn Func, param interface{}, paramSize int) bool {
	paramWords := (paramSize + 3) / 4

	if q.available == nil {
		return false
	}

	q.cs.Enter()
	defer q.cs.Exit()

	var newWritePos, paramStart int
	switch {
	case q.wait == nil: // empty queue: cursors restart from zero
		q.readPos, q.writePos = 0, 0
		if q.bufferWords < paramWords {
			return false
		}
		paramStart = 0
		newWritePos = paramWords

	case q.writePos > q.readPos: // write cursor has not wrapped past read
		if q.bufferWords-q.writePos >= paramWords {
			paramStart = q.writePos
			newWritePos = q.writePos + paramWords
		} else if q.readPos >= paramWords {
			paramStart = 0
			newWritePos = paramWords
		} else {
			return false
		}

	case paramWords <= q.readPos-q.writePos: // wrapped: enough room before read cursor
		if q.bufferWords-q.writePos >= paramWords {
			paramStart = q.writePos
			newWritePos = q.writePos + paramWords
		} else if q.bufferWords >= paramWords {
			paramStart = 0
			newWritePos = 0
		} else {
			return false
		}

	default:
		return false
	}

	if newWritePos >= q.bufferWords {
		q.writePos = 0
	} else {
		q.writePos = newWritePos
	}

	newTask := q.available
	q.available = newTask.next

	if q.tail != nil {
		q.tail.next = newTask
	}
	q.tail = newTask
	if q.wait == nil {
		q.wait = newTask
	}

	newTask.fn = fn
	newTask.param = param
	newTask.paramStart = paramStart
	newTask.paramWords = paramWords
	newTask.next = nil

	return true
}

// releaseWaitItem moves the wait-list head back to the freelist and advances
// the ring's read cursor past the space it occupied. When the wait list
// empties, both cursors reset to zero to reduce fragmentation.
func (q *Queue) releaseWaitItem() {
	task := q.wait
	if task == nil {
		return
	}

	q.cs.Enter()
	defer q.cs.Exit()

	q.wait = task.next
	task.next = q.available
	q.available = task

	if q.tail == task {
		q.tail = nil
		q.readPos, q.writePos = 0, 0
		return
	}

	q.readPos = task.paramStart + task.paramWords
	if q.readPos >= q.bufferWords {
		q.readPos = 0
	}
}

// Drain runs every job currently in the wait list, FIFO, releasing each
// item's ring space immediately after it runs. Returns the number of jobs
// executed.
func (q *Queue) Drain() int {
	n := 0
	for {
		task := q.wait
		if task == nil {
			break
		}
		n++
		task.fn(task.param)
		q.releaseWaitItem()
	}
	return n
}
