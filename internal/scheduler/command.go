package scheduler

import "trackmand/internal/track"

// AddEntry pairs a header (only its ID is consulted) with the point to
// append, mirroring the producer-visible (header, point) update contract.
type AddEntry struct {
	Header track.Header
	Point  track.Point
}

type drawCommand struct {
	points []track.Point
}

type mergeCommand struct {
	sourceID uint32
	targetID uint32
}

type createCommand struct {
	batches [][4]track.Point
}

type addCommand struct {
	entries []AddEntry
}
