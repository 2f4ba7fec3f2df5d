package facade

import (
	"time"

	"trackmand/internal/track"
)

// UpdatePoint pairs a point with the track it belongs to, the shape the
// upstream pipeline hands over for its detected/associated/predicted
// stages (original_source's defstruct.h DetectedPoint/AssociatedPoint/
// PredictedPoint records, collapsed here since the store treats all
// three identically: one more point appended to an existing track).
type UpdatePoint struct {
	TrackID uint32
	Point   track.Point
}

// PipelineBuffer is what an upstream pipeline stage hands to
// OnPipelineComplete for one processing cycle: updates to tracks already
// known to the store, plus brand-new tracks the pipeline has decided to
// start. BatchID/ObservedAt mirror original_source's
// pipeline::DetectedPointHeader, carried through for log traceability —
// no store operation consults them.
type PipelineBuffer struct {
	BatchID    uint32
	ObservedAt time.Time

	// UpdatedPoints covers the detected/associated/predicted stages: each
	// becomes one DRAW point and one ADD update against TrackID.
	UpdatedPoints []UpdatePoint

	// NewTracks covers the pipeline's new-track decisions: each 4-point
	// array becomes one CREATE.
	NewTracks [][4]track.Point
}
