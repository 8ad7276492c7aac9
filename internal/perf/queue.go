// Package perf implements the in-process request performance monitor.
//
// This file implements DigestQueue, the hand-off between the request path
// and digest persistence. Enqueue never blocks a request: when the buffer is
// full the digest is dropped and a debug line is logged. A single worker
// (Run) owns all calls to the sink.
package perf

import (
	"context"

	"github.com/rs/zerolog"
)

// DigestSink persists digests. SaveDigest is called from the queue worker,
// never from the request path.
type DigestSink interface {
	SaveDigest(ctx context.Context, d Digest) error
}

// DigestQueue hands digests from the request path to a DigestSink through a
// bounded buffer. Enqueue never blocks; digests are dropped when the buffer
// is full.
type DigestQueue struct {
	sink DigestSink
	ch   chan Digest
	log  zerolog.Logger
}

// NewDigestQueue returns a queue buffering up to size digests (minimum 1).
func NewDigestQueue(sink DigestSink, size int, lg zerolog.Logger) *DigestQueue {
	if size < 1 {
		size = 1
	}
	return &DigestQueue{sink: sink, ch: make(chan Digest, size), log: lg}
}

// Enqueue offers d to the worker and reports whether it was accepted.
func (q *DigestQueue) Enqueue(d Digest) bool {
	select {
	case q.ch <- d:
		return true
	default:
		q.log.Debug().Uint64("total_requests", d.TotalRequests).Msg("digest queue full, dropping")
		return false
	}
}

// Run feeds queued digests to the sink until ctx is done, then saves
// whatever is still buffered and returns. Cancel ctx only after the HTTP
// server has drained, so digests from in-flight requests are kept.
func (q *DigestQueue) Run(ctx context.Context) {
	// Saves must not fail just because shutdown started.
	saveCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			q.drain(saveCtx)
			return
		case d := <-q.ch:
			q.save(saveCtx, d)
		}
	}
}

func (q *DigestQueue) drain(ctx context.Context) {
	for {
		select {
		case d := <-q.ch:
			q.save(ctx, d)
		default:
			return
		}
	}
}

func (q *DigestQueue) save(ctx context.Context, d Digest) {
	if err := q.sink.SaveDigest(ctx, d); err != nil {
		q.log.Warn().Err(err).Uint64("total_requests", d.TotalRequests).Msg("save digest")
	}
}
