package perf

import "time"

// DefaultWindowSize is the sliding window capacity used when none is configured.
const DefaultWindowSize = 1000

// Window is a fixed-capacity FIFO of latency samples backed by a ring buffer.
// When full, Push evicts the oldest sample before inserting.
//
// Window is not safe for concurrent use; the Aggregator guards it.
type Window struct {
	buf  []time.Duration
	head int // index of the oldest sample
	size int
}

// NewWindow returns an empty window holding at most capacity samples.
// Non-positive capacities fall back to DefaultWindowSize.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{buf: make([]time.Duration, capacity)}
}

// Push appends d, evicting the oldest sample first when the window is full.
func (w *Window) Push(d time.Duration) {
	if w.size == len(w.buf) {
		w.buf[w.head] = d
		w.head = (w.head + 1) % len(w.buf)
		return
	}
	w.buf[(w.head+w.size)%len(w.buf)] = d
	w.size++
}

// Snapshot copies the samples out in insertion order, oldest first.
func (w *Window) Snapshot() []time.Duration {
	out := make([]time.Duration, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Len reports the number of samples currently held.
func (w *Window) Len() int { return w.size }

// Cap reports the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Reset drops every sample.
func (w *Window) Reset() {
	w.head, w.size = 0, 0
}
