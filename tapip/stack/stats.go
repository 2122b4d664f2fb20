package stack

import "sync/atomic"

// Stats counts dropped and processed frames across the stack's lifetime.
// Every counter is safe for concurrent reads from outside the main receive
// loop (e.g. a metrics endpoint); increments happen only from the loop
// itself, per the single-owner concurrency model of §5.
type Stats struct {
	MalformedFrames   atomic.Uint64
	UnsupportedProto  atomic.Uint64
	ChecksumMismatch  atomic.Uint64
	RoutingFailures   atomic.Uint64
	ARPMisses         atomic.Uint64
	PortUnbound       atomic.Uint64
	QueueOverflow     atomic.Uint64
	FramesDispatched  atomic.Uint64
}
