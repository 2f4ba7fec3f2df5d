// Package scheduler implements the command scheduler (spec component C):
// a single-consumer worker that owns the track store exclusively and
// drains a producer-multi queue in strict priority order
// DRAW > MERGE > CREATE > ADD > CLEAR_ALL, pushing a store snapshot to a
// visualizer sink after every cycle that makes forward progress.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"trackmand/internal/metrics"
	"trackmand/internal/track"
)

// queueCapacity bounds each per-class channel. A producer call blocks
// only if its class is already this backed up, which in practice means
// never for the DRAW/ADD volumes this service expects.
const queueCapacity = 1024

// Scheduler owns a track.Store exclusively; no other goroutine may touch
// the store once Run has started.
type Scheduler struct {
	store *track.Store
	sink  Sink
	log   *logrus.Logger
	met   *metrics.Metrics

	drawCh   chan drawCommand
	mergeCh  chan mergeCommand
	createCh chan createCommand
	addCh    chan addCommand
	clearCh  chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	stopped bool
	done    chan struct{}
}

// New constructs a scheduler over store. sink may be nil, in which case
// draw points and snapshots are simply dropped — useful for tests and
// harnesses that only care about store-level effects. met may also be
// nil, in which case no metrics are recorded.
func New(store *track.Store, sink Sink, log *logrus.Logger, met *metrics.Metrics) *Scheduler {
	s := &Scheduler{
		store:    store,
		sink:     sink,
		log:      log,
		met:      met,
		drawCh:   make(chan drawCommand, queueCapacity),
		mergeCh:  make(chan mergeCommand, queueCapacity),
		createCh: make(chan createCommand, queueCapacity),
		addCh:    make(chan addCommand, queueCapacity),
		clearCh:  make(chan struct{}, queueCapacity),
		done:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Scheduler) countQueued(class string) {
	if s.met != nil {
		s.met.CommandsQueuedTotal.WithLabelValues(class).Inc()
	}
}

func (s *Scheduler) countProcessed(class, outcome string) {
	if s.met != nil {
		s.met.CommandsProcessedTotal.WithLabelValues(class, outcome).Inc()
	}
}

// DrawPointCommand forwards points to the visualizer sink without
// touching the store. Fire-and-forget.
func (s *Scheduler) DrawPointCommand(points []track.Point) {
	s.drawCh <- drawCommand{points: append([]track.Point(nil), points...)}
	s.countQueued("draw")
	s.wake()
}

// MergeCommand requests that source be fused into target. Fire-and-forget.
func (s *Scheduler) MergeCommand(sourceID, targetID uint32) {
	s.mergeCh <- mergeCommand{sourceID: sourceID, targetID: targetID}
	s.countQueued("merge")
	s.wake()
}

// CreateTrackCommand creates one track per 4-point array, in order.
// Fire-and-forget.
func (s *Scheduler) CreateTrackCommand(batches [][4]track.Point) {
	s.createCh <- createCommand{batches: append([][4]track.Point(nil), batches...)}
	s.countQueued("create")
	s.wake()
}

// AddTrackCommand appends one point per entry to the track named by
// entry.Header.ID. Fire-and-forget.
func (s *Scheduler) AddTrackCommand(entries []AddEntry) {
	s.addCh <- addCommand{entries: append([]AddEntry(nil), entries...)}
	s.countQueued("add")
	s.wake()
}

// ClearAllCommand requests that every track be released. Fire-and-forget.
func (s *Scheduler) ClearAllCommand() {
	s.clearCh <- struct{}{}
	s.countQueued("clear_all")
	s.wake()
}

func (s *Scheduler) wake() {
	s.mu.Lock()
	s.cond.Signal()
	s.mu.Unlock()
}

// Run drains the queue until ctx is cancelled or Stop is called, then
// returns. It is meant to be run in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	stopOnCancel := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopOnCancel:
		}
	}()
	defer close(stopOnCancel)

	for {
		if s.drainCycle() {
			s.pushSnapshot()
		}

		s.mu.Lock()
		for !s.stopped && !s.hasPending() {
			s.cond.Wait()
		}
		stop := s.stopped && !s.hasPending()
		s.mu.Unlock()

		if stop {
			return
		}
	}
}

// Stop signals the worker to exit at the next drain boundary and blocks
// until it has. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
}

func (s *Scheduler) hasPending() bool {
	return len(s.drawCh) > 0 || len(s.mergeCh) > 0 || len(s.createCh) > 0 ||
		len(s.addCh) > 0 || len(s.clearCh) > 0
}

// drainCycle repeatedly takes the single oldest command from the
// highest-priority non-empty class and processes it, re-scanning from
// DRAW every time — which is a finer-grained but behaviorally equivalent
// form of "drain a class fully, then move to the next": a command can
// never start while a higher-priority command is already queued.
func (s *Scheduler) drainCycle() bool {
	progressed := false
	for s.drainOne() {
		progressed = true
	}
	return progressed
}

func (s *Scheduler) drainOne() bool {
	select {
	case cmd := <-s.drawCh:
		s.handleDraw(cmd)
		return true
	default:
	}
	select {
	case cmd := <-s.mergeCh:
		s.handleMerge(cmd)
		return true
	default:
	}
	select {
	case cmd := <-s.createCh:
		s.handleCreate(cmd)
		return true
	default:
	}
	select {
	case cmd := <-s.addCh:
		s.handleAdd(cmd)
		return true
	default:
	}
	select {
	case <-s.clearCh:
		s.handleClearAll()
		return true
	default:
	}
	return false
}

func (s *Scheduler) handleDraw(cmd drawCommand) {
	if s.sink != nil {
		s.sink.PushDrawPoints(cmd.points)
	}
}

func (s *Scheduler) handleMerge(cmd mergeCommand) {
	if err := s.store.MergeTracks(cmd.sourceID, cmd.targetID); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"source_id": cmd.sourceID,
			"target_id": cmd.targetID,
		}).Warn("scheduler: merge_tracks failed")
		if s.met != nil {
			s.met.MergeFailuresTotal.Inc()
		}
		s.countProcessed("merge", "failure")
		return
	}
	s.countProcessed("merge", "success")
}

func (s *Scheduler) handleCreate(cmd createCommand) {
	for _, batch := range cmd.batches {
		id, err := s.store.CreateTrack()
		if err != nil {
			s.log.WithError(err).Warn("scheduler: create_track failed")
			s.countProcessed("create", "failure")
			continue
		}

		rolledBack := false
		for _, p := range batch {
			if err := s.store.PushPoint(id, p); err != nil {
				s.log.WithError(err).WithField("track_id", id).
					Warn("scheduler: push_point failed during create, rolling back")
				_ = s.store.DeleteTrack(id)
				rolledBack = true
				break
			}
		}

		if rolledBack {
			s.countProcessed("create", "failure")
			continue
		}
		if s.met != nil {
			s.met.TracksCreatedTotal.Inc()
		}
		s.countProcessed("create", "success")
	}
}

func (s *Scheduler) handleAdd(cmd addCommand) {
	for _, e := range cmd.entries {
		if err := s.store.PushPoint(e.Header.ID, e.Point); err != nil {
			s.log.WithError(err).WithField("track_id", e.Header.ID).
				Warn("scheduler: push_point failed during add")
			if errors.Is(err, track.ErrTerminated) && s.met != nil {
				s.met.TracksTerminatedTotal.Inc()
			}
			s.countProcessed("add", "failure")
			continue
		}
		s.countProcessed("add", "success")
	}
}

func (s *Scheduler) handleClearAll() {
	s.store.ClearAll()
	s.countProcessed("clear_all", "success")
}

func (s *Scheduler) pushSnapshot() {
	ids := s.store.ListActiveIDs()
	if s.met != nil {
		s.met.TracksActive.Set(float64(len(ids)))
	}

	if s.sink == nil {
		return
	}

	snap := Snapshot{
		ActiveIDs: ids,
		Headers:   make(map[uint32]track.Header, len(ids)),
		Points:    make(map[uint32][]track.Point, len(ids)),
	}
	for _, id := range ids {
		if h, ok := s.store.BorrowHeader(id); ok {
			snap.Headers[id] = h
		}
		if pts, ok := s.store.BorrowPoints(id); ok {
			snap.Points[id] = pts
		}
	}

	s.sink.PushSnapshot(snap)
}
