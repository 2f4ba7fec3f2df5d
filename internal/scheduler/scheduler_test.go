package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmand/internal/metrics"
	"trackmand/internal/track"
)

// recordingSink records the order in which the scheduler calls it, so
// tests can assert on observable effect order without sleeping.
type recordingSink struct {
	mu    sync.Mutex
	calls []string
	draws [][]track.Point
	snaps []Snapshot
}

func (r *recordingSink) PushDrawPoints(points []track.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "draw")
	r.draws = append(r.draws, points)
}

func (r *recordingSink) PushSnapshot(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "snapshot")
	r.snaps = append(r.snaps, snap)
}

func (r *recordingSink) snapshotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func fourPoints(lonBase float64) [4]track.Point {
	var pts [4]track.Point
	for i := range pts {
		pts[i] = track.Point{Longitude: lonBase + float64(i)*0.01, Associated: true}
	}
	return pts
}

// waitForSnapshot polls (no sleeps worth noting — bounded by a timeout)
// until at least n snapshots have been pushed, mirroring the corpus's
// context-cancellation-over-wall-clock-waits test style.
func waitForSnapshot(t *testing.T, sink *recordingSink, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if sink.snapshotCount() >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d snapshots, got %d", n, sink.snapshotCount())
		case <-time.After(time.Millisecond):
		}
	}
}

func newTestLogger() (*logrus.Logger, *logrustest.Hook) {
	logger, hook := logrustest.NewNullLogger()
	return logger, hook
}

func TestSchedulerPriorityOrder(t *testing.T) {
	// Scenario 3.
	store := track.NewStore(4, 8)
	sink := &recordingSink{}
	logger, hook := newTestLogger()
	s := New(store, sink, logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// All four commands are queued before the worker starts, so the
	// worker sees them together and must pick them by priority class.
	s.AddTrackCommand([]AddEntry{{Header: track.Header{ID: 1}, Point: track.Point{Longitude: 1.0, Associated: true}}})
	s.CreateTrackCommand([][4]track.Point{fourPoints(5.0)})
	s.MergeCommand(10, 11)
	s.DrawPointCommand([]track.Point{{Longitude: 9.0}})

	go s.Run(ctx)
	defer s.Stop()

	waitForSnapshot(t, sink, 1)
	s.Stop()

	sink.mu.Lock()
	calls := append([]string(nil), sink.calls...)
	sink.mu.Unlock()

	require.NotEmpty(t, calls)
	assert.Equal(t, "draw", calls[0], "draw must be dispatched before the snapshot reflecting merge/create/add")

	entries := hook.AllEntries()
	foundMergeFailure := false
	for _, e := range entries {
		if e.Message == "scheduler: merge_tracks failed" {
			foundMergeFailure = true
		}
	}
	assert.True(t, foundMergeFailure, "merge with unknown ids must be logged as a failure")

	// CREATE (priority above ADD) assigns id=1 before ADD is processed,
	// so the ADD targeting id=1 finds a live track and succeeds — the
	// same id=1 coincidence the spec's worked example calls out.
	ids := store.ListActiveIDs()
	require.Len(t, ids, 1)
	h, ok := store.BorrowHeader(ids[0])
	require.True(t, ok)
	assert.Equal(t, uint32(5), h.PointCount, "4 from CREATE + 1 from the successful ADD")
}

func TestSchedulerSameClassFIFOOrder(t *testing.T) {
	store := track.NewStore(4, 8)
	sink := &recordingSink{}
	logger, _ := newTestLogger()
	s := New(store, sink, logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	defer s.Stop()

	s.DrawPointCommand([]track.Point{{Longitude: 1.0}})
	s.DrawPointCommand([]track.Point{{Longitude: 2.0}})
	s.DrawPointCommand([]track.Point{{Longitude: 3.0}})

	deadline := time.After(2 * time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.draws)
		sink.mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for draw commands to process")
		case <-time.After(time.Millisecond):
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.draws, 3)
	assert.Equal(t, 1.0, sink.draws[0][0].Longitude)
	assert.Equal(t, 2.0, sink.draws[1][0].Longitude)
	assert.Equal(t, 3.0, sink.draws[2][0].Longitude)
}

func TestSchedulerCreateRollsBackOnPushFailure(t *testing.T) {
	// Drives create_track's single push_point failure path: four
	// unassociated points in one CREATE batch terminate the track before
	// the batch finishes, which must roll back via delete_track.
	store := track.NewStore(1, 8)
	sink := &recordingSink{}
	logger, _ := newTestLogger()
	s := New(store, sink, logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	defer s.Stop()

	var unassociated [4]track.Point
	for i := range unassociated {
		unassociated[i] = track.Point{Longitude: float64(i), Associated: false}
	}
	s.CreateTrackCommand([][4]track.Point{unassociated})

	waitForSnapshot(t, sink, 1)
	s.Stop()

	// 4 unassociated pushes exceed MaxExtrapolation(3) on the 4th, so
	// the track terminates and is rolled back: nothing should remain.
	assert.Empty(t, store.ListActiveIDs())
}

func TestSchedulerClearAll(t *testing.T) {
	store := track.NewStore(4, 8)
	sink := &recordingSink{}
	logger, _ := newTestLogger()
	s := New(store, sink, logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	defer s.Stop()

	s.CreateTrackCommand([][4]track.Point{fourPoints(1.0), fourPoints(2.0)})
	waitForSnapshot(t, sink, 1)

	s.ClearAllCommand()
	waitForSnapshot(t, sink, 2)

	assert.Empty(t, store.ListActiveIDs())
	assert.Equal(t, uint32(1), store.NextID())
}

func TestSchedulerStopIsIdempotentAndUnblocksRun(t *testing.T) {
	store := track.NewStore(2, 8)
	logger, _ := newTestLogger()
	s := New(store, nil, logger, nil)

	ctx := context.Background()
	runDone := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(runDone)
	}()

	s.Stop()
	s.Stop()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestSchedulerRecordsMetrics(t *testing.T) {
	store := track.NewStore(4, 8)
	sink := &recordingSink{}
	logger, _ := newTestLogger()
	met := metrics.New(prometheus.NewRegistry())
	s := New(store, sink, logger, met)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	defer s.Stop()

	s.CreateTrackCommand([][4]track.Point{fourPoints(1.0)})
	s.MergeCommand(100, 101) // both unknown: counted as a failure

	waitForSnapshot(t, sink, 1)
	s.Stop()

	assert.Equal(t, float64(1), testutil.ToFloat64(met.TracksActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(met.TracksCreatedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(met.MergeFailuresTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(met.CommandsProcessedTotal.WithLabelValues("merge", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(met.CommandsProcessedTotal.WithLabelValues("create", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(met.CommandsQueuedTotal.WithLabelValues("create")))
}
