package perf

import (
	"slices"
	"testing"
	"time"
)

func TestWindow_BoundedFIFO(t *testing.T) {
	w := NewWindow(5)
	for i := 1; i <= 12; i++ {
		w.Push(time.Duration(i))
	}
	if w.Len() != 5 || w.Cap() != 5 {
		t.Fatalf("len/cap = %d/%d; want 5/5", w.Len(), w.Cap())
	}
	want := []time.Duration{8, 9, 10, 11, 12}
	if got := w.Snapshot(); !slices.Equal(got, want) {
		t.Fatalf("snapshot = %v; want %v", got, want)
	}
}

func TestWindow_PartialFillKeepsOrder(t *testing.T) {
	w := NewWindow(4)
	w.Push(3)
	w.Push(1)
	if got := w.Snapshot(); !slices.Equal(got, []time.Duration{3, 1}) {
		t.Fatalf("snapshot = %v", got)
	}
}

func TestWindow_SnapshotIsACopy(t *testing.T) {
	w := NewWindow(3)
	w.Push(1)
	s := w.Snapshot()
	s[0] = 99
	if got := w.Snapshot()[0]; got != 1 {
		t.Fatalf("window changed through snapshot: %v", got)
	}
}

func TestWindow_DefaultCapacityAndReset(t *testing.T) {
	w := NewWindow(0)
	if w.Cap() != DefaultWindowSize {
		t.Fatalf("cap = %d; want %d", w.Cap(), DefaultWindowSize)
	}
	w.Push(1)
	w.Push(2)
	w.Reset()
	if w.Len() != 0 || len(w.Snapshot()) != 0 {
		t.Fatalf("reset left %d samples", w.Len())
	}
	w.Push(7)
	if got := w.Snapshot(); !slices.Equal(got, []time.Duration{7}) {
		t.Fatalf("after reset snapshot = %v", got)
	}
}
