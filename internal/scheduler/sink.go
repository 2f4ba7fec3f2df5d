package scheduler

import "trackmand/internal/track"

// Snapshot is a read-only view of the store produced by the scheduler
// between drain cycles. It carries borrowed data by value — no
// back-reference to the store — so a Sink can hold it past the call that
// produced it.
type Snapshot struct {
	ActiveIDs []uint32
	Headers   map[uint32]track.Header
	Points    map[uint32][]track.Point
}

// Sink receives the two kinds of output the scheduler produces: raw draw
// points forwarded verbatim from DRAW commands, and periodic store
// snapshots taken after a drain cycle makes forward progress.
type Sink interface {
	PushDrawPoints(points []track.Point)
	PushSnapshot(snapshot Snapshot)
}
