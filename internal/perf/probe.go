package perf

import "runtime/metrics"

// ResourceProbe captures process resource counters around a request.
// Implementations must be cheap and safe for concurrent use.
type ResourceProbe interface {
	Snapshot() ResourceSnapshot
}

// ResourceSnapshot is a point-in-time reading. Supported is false when the
// probe cannot introspect the runtime, in which case the other fields are
// meaningless.
//
// Go's collector is not generational, so the gen0/gen1/gen2 split some
// runtimes report collapses into a single GCCycles count.
type ResourceSnapshot struct {
	HeapBytes uint64
	GCCycles  uint64
	Supported bool
}

// ResourceDelta is the change between two snapshots. Values are process-wide:
// concurrent requests contribute to each other's deltas.
type ResourceDelta struct {
	MemoryBytes int64
	GCCycles    uint64
	Supported   bool
}

// Delta returns after minus s.
func (s ResourceSnapshot) Delta(after ResourceSnapshot) ResourceDelta {
	if !s.Supported || !after.Supported {
		return ResourceDelta{}
	}
	d := ResourceDelta{
		MemoryBytes: int64(after.HeapBytes) - int64(s.HeapBytes),
		Supported:   true,
	}
	if after.GCCycles >= s.GCCycles {
		d.GCCycles = after.GCCycles - s.GCCycles
	}
	return d
}

// NopProbe reports nothing. It is the probe for deployments that disable
// resource sampling.
type NopProbe struct{}

// Snapshot implements ResourceProbe.
func (NopProbe) Snapshot() ResourceSnapshot { return ResourceSnapshot{} }

const (
	metricHeapObjects = "/memory/classes/heap/objects:bytes"
	metricGCCycles    = "/gc/cycles/total:gc-cycles"
)

// RuntimeProbe samples live heap bytes and completed GC cycles through
// runtime/metrics, which does not stop the world.
type RuntimeProbe struct{}

// Snapshot implements ResourceProbe.
func (RuntimeProbe) Snapshot() ResourceSnapshot {
	samples := []metrics.Sample{
		{Name: metricHeapObjects},
		{Name: metricGCCycles},
	}
	metrics.Read(samples)

	var snap ResourceSnapshot
	if samples[0].Value.Kind() != metrics.KindUint64 || samples[1].Value.Kind() != metrics.KindUint64 {
		return snap
	}
	snap.HeapBytes = samples[0].Value.Uint64()
	snap.GCCycles = samples[1].Value.Uint64()
	snap.Supported = true
	return snap
}
