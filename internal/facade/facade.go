// Package facade implements the service façade (spec component F): the
// top-level object a pipeline integrator constructs, which owns a track
// store, a command scheduler, a datagram transport, and a config loader,
// and exposes the two inbound verbs upstream stages call.
//
// Facade is go1090's Application genericized: construct config →
// construct components → start goroutines → context+WaitGroup shutdown.
package facade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"trackmand/internal/config"
	"trackmand/internal/metrics"
	"trackmand/internal/scheduler"
	"trackmand/internal/track"
	"trackmand/internal/transport"
	"trackmand/internal/visualizer"
)

// ReloadInterval is how often the façade re-reads the config file on its
// own ticker, independent of any fsnotify event (§4.6).
const ReloadInterval = time.Minute

// fsnotifyDebounce coalesces a burst of filesystem events (an editor's
// write-then-rename, for instance) into a single reload attempt.
const fsnotifyDebounce = 200 * time.Millisecond

// pipelineQueueCapacity bounds the façade's inbound pipeline-buffer
// queue; OnPipelineComplete drops and logs rather than blocking the
// caller once it's full.
const pipelineQueueCapacity = 256

// inboundPollInterval is how often the service thread drains the
// transport's accumulated receive buffer into fusion commands.
const inboundPollInterval = 100 * time.Millisecond

// mergeWordsPerCommand is the wire convention this façade uses for the
// words the transport receiver accumulates after TRACK_MERGE_COMMAND
// filtering: each accepted datagram's payload is exactly two u32 words,
// [source_id, target_id]. original_source leaves this wiring
// unspecified (its own example drives onTrackFusion locally, never from
// TrackerComm::readReceivedData); this is this repository's resolution,
// recorded in DESIGN.md.
const mergeWordsPerCommand = 2

// Facade owns the core's components and runs the façade service thread.
type Facade struct {
	log *logrus.Logger
	met *metrics.Metrics

	store     *track.Store
	sched     *scheduler.Scheduler
	sink      *visualizer.LogSink
	transport *transport.Transport
	cfgLoader *config.Loader

	configPath string

	pipelineCh chan PipelineBuffer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures New.
type Options struct {
	ConfigPath    string
	TrackCapacity int
	PointCapacity int
}

// New loads configPath, constructs the store/scheduler/transport, and
// returns a Facade whose transport is already receiving (transport.New
// starts its receive goroutine); the scheduler worker and the service
// thread start only when Run is called. A failed first config load is fatal at the caller's
// discretion per §4.4/§7; New surfaces the error rather than aborting
// the process itself.
func New(ctx context.Context, opts Options, log *logrus.Logger, met *metrics.Metrics) (*Facade, error) {
	loader := config.NewLoader()
	if err := loader.Load(opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("facade: initial config load: %w", err)
	}
	cfg := loader.Snapshot()

	store := track.NewStore(opts.TrackCapacity, opts.PointCapacity)
	sink := visualizer.NewLogSink(log)
	sched := scheduler.New(store, sink, log, met)

	tr, err := transport.New(ctx, cfg, log, met)
	if err != nil {
		return nil, fmt.Errorf("facade: %w", err)
	}

	return &Facade{
		log:        log,
		met:        met,
		store:      store,
		sched:      sched,
		sink:       sink,
		transport:  tr,
		cfgLoader:  loader,
		configPath: opts.ConfigPath,
		pipelineCh: make(chan PipelineBuffer, pipelineQueueCapacity),
	}, nil
}

// OnPipelineComplete hands a processing cycle's results to the façade.
// Fire-and-forget: it enqueues and returns immediately. If the internal
// queue is full the buffer is dropped and logged — the inbound pipeline
// contract never blocks its caller.
func (f *Facade) OnPipelineComplete(buf PipelineBuffer) {
	select {
	case f.pipelineCh <- buf:
	default:
		f.log.WithField("batch_id", buf.BatchID).Warn("facade: pipeline queue full, dropping buffer")
	}
}

// OnTrackFusion requests that source be fused into target. Fire-and-
// forget: it forwards directly to the scheduler's own fire-and-forget
// MergeCommand.
func (f *Facade) OnTrackFusion(sourceID, targetID uint32) {
	f.sched.MergeCommand(sourceID, targetID)
}

// Run starts the scheduler worker, the transport (already receiving
// since New), and the façade's own service thread, and blocks until ctx
// is cancelled or Stop is called.
func (f *Facade) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		f.sched.Run(runCtx)
	}()
	go func() {
		defer f.wg.Done()
		f.serviceLoop(runCtx)
	}()

	<-runCtx.Done()
	f.wg.Wait()
}

// Stop cancels the façade's run context and blocks until every goroutine
// started by Run has exited, then closes the transport.
func (f *Facade) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	f.transport.Close()
}

func (f *Facade) serviceLoop(ctx context.Context) {
	reloadTicker := time.NewTicker(ReloadInterval)
	defer reloadTicker.Stop()

	inboundTicker := time.NewTicker(inboundPollInterval)
	defer inboundTicker.Stop()

	watcher, watchEvents := f.startConfigWatcher()
	if watcher != nil {
		defer watcher.Close()
	}

	var debounceTimer *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case buf := <-f.pipelineCh:
			f.dispatchPipelineBuffer(buf)

		case <-inboundTicker.C:
			f.dispatchInboundMergeWords()

		case <-reloadTicker.C:
			f.reloadConfig()

		case <-watchEvents:
			if debounceTimer == nil {
				debounceTimer = time.NewTimer(fsnotifyDebounce)
			} else {
				debounceTimer.Reset(fsnotifyDebounce)
			}
			debounceC = debounceTimer.C

		case <-debounceC:
			debounceC = nil
			f.reloadConfig()
		}
	}
}

// startConfigWatcher best-effort watches the config file for changes, in
// addition to (never instead of) the 1-minute reload ticker: a watcher
// that fails to start, or that misses an event, must never delay a
// reload past ReloadInterval.
func (f *Facade) startConfigWatcher() (*fsnotify.Watcher, <-chan fsnotify.Event) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.log.WithError(err).Warn("facade: fsnotify unavailable, relying on reload ticker only")
		return nil, nil
	}
	if err := watcher.Add(f.configPath); err != nil {
		f.log.WithError(err).Warn("facade: could not watch config path, relying on reload ticker only")
		watcher.Close()
		return nil, nil
	}
	return watcher, watcher.Events
}

func (f *Facade) reloadConfig() {
	prev := f.cfgLoader.Snapshot()

	if err := f.cfgLoader.Load(f.configPath); err != nil {
		f.log.WithError(err).Warn("facade: config reload failed, previous configuration retained")
		if f.met != nil {
			f.met.ConfigReloadsTotal.WithLabelValues("failure").Inc()
		}
		return
	}

	if f.met != nil {
		f.met.ConfigReloadsTotal.WithLabelValues("success").Inc()
	}

	next := f.cfgLoader.Snapshot()
	f.log.WithFields(logrus.Fields{
		"recv_port": next.RecvPort,
		"dest_port": next.DestPort,
		"site_lat":  next.SiteLatitude,
		"site_lon":  next.SiteLongitude,
	}).Info("facade: config reloaded")

	if next.RecvPort != prev.RecvPort {
		if err := f.transport.Reload(next); err != nil {
			f.log.WithError(err).Error("facade: transport reload failed")
		}
	}
}

func (f *Facade) dispatchPipelineBuffer(buf PipelineBuffer) {
	log := f.log.WithFields(logrus.Fields{
		"batch_id":    buf.BatchID,
		"observed_at": buf.ObservedAt,
	})

	if len(buf.UpdatedPoints) > 0 {
		points := make([]track.Point, len(buf.UpdatedPoints))
		entries := make([]scheduler.AddEntry, len(buf.UpdatedPoints))
		for i, u := range buf.UpdatedPoints {
			points[i] = u.Point
			entries[i] = scheduler.AddEntry{Header: track.Header{ID: u.TrackID}, Point: u.Point}
		}
		f.sched.DrawPointCommand(points)
		f.sched.AddTrackCommand(entries)
	}

	if len(buf.NewTracks) > 0 {
		f.sched.CreateTrackCommand(buf.NewTracks)
	}

	log.WithFields(logrus.Fields{
		"updated_points": len(buf.UpdatedPoints),
		"new_tracks":     len(buf.NewTracks),
	}).Debug("facade: dispatched pipeline buffer")
}

func (f *Facade) dispatchInboundMergeWords() {
	words := f.transport.TakeAll()
	for len(words) >= mergeWordsPerCommand {
		sourceID, targetID := words[0], words[1]
		words = words[mergeWordsPerCommand:]
		f.OnTrackFusion(sourceID, targetID)
	}
	if len(words) > 0 {
		f.log.WithField("leftover_words", len(words)).Debug("facade: inbound merge words did not divide evenly, discarding remainder")
	}
}

// Store exposes the underlying store. The store does no internal locking
// and the scheduler worker mutates it while Run is active, so any access
// from another goroutine during that time is unsynchronized with the
// worker; callers must not mutate it directly.
func (f *Facade) Store() *track.Store { return f.store }

// Visualizer exposes the façade's visualizer sink for diagnostics.
func (f *Facade) Visualizer() *visualizer.LogSink { return f.sink }
