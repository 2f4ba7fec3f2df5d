// Package visualizer implements the scheduler.Sink the core hands its
// draw points and store snapshots to. Per §9's resolution of the
// source's store/visualizer cyclic friendship, this package holds no
// reference back into the store — everything it receives is a borrowed
// copy handed to it between drain cycles.
package visualizer

import (
	"sync"

	"github.com/sirupsen/logrus"

	"trackmand/internal/scheduler"
	"trackmand/internal/track"
)

// LogSink is a minimal scheduler.Sink that logs draw activity and keeps
// the most recent snapshot available for inspection (e.g. by a
// diagnostics endpoint), in place of the source's graphical renderer —
// which §1 scopes out of the core entirely.
type LogSink struct {
	log *logrus.Logger

	mu       sync.RWMutex
	snapshot scheduler.Snapshot
}

// NewLogSink constructs a LogSink that logs through log.
func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log}
}

// PushDrawPoints logs the draw batch's size. The source renders these as
// transient graphical markers; without a graphics layer, a log line is
// the only observable effect the spec requires (§4.3: "forwards the
// point list to the visualizer sink").
func (s *LogSink) PushDrawPoints(points []track.Point) {
	s.log.WithField("count", len(points)).Debug("visualizer: draw points")
}

// PushSnapshot stores snap for Latest and logs its active track count.
func (s *LogSink) PushSnapshot(snap scheduler.Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	s.log.WithField("active_tracks", len(snap.ActiveIDs)).Debug("visualizer: snapshot")
}

// Latest returns the most recently pushed snapshot, or the zero value if
// none has arrived yet.
func (s *LogSink) Latest() scheduler.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}
