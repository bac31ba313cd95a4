// Package syncer runs the background synchronization loop that keeps
// the twin consistent with the producer's topology.
//
// One iteration is fetch -> version gate -> diff -> reconcile, strictly
// sequential; the next iteration's delay only starts once the previous
// one completed or was skipped. The loop never terminates itself over a
// bad iteration; only Stop ends it.
package syncer

import (
	"context"
	"log"
	"sync"
	"time"

	"netmirror/internal/telemetry"
	"netmirror/internal/topo"
	"netmirror/internal/twin"
)

// State is the observable lifecycle state of the loop.
type State string

const (
	StateOff         State = "off"
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateDiffing     State = "diffing"
	StateReconciling State = "reconciling"
)

// FetchFunc performs one single-attempt, silent snapshot fetch.
type FetchFunc func(ctx context.Context) (*topo.Snapshot, error)

// Recorder journals completed reconciliation passes. May be nil.
type Recorder interface {
	Record(ctx context.Context, fromVersion, toVersion uint64, rep *twin.Report) error
}

// DefaultInterval is the delay between sync iterations.
const DefaultInterval = 10 * time.Second

// joinTimeout bounds how long Stop waits for an in-flight iteration.
const joinTimeout = 2 * time.Second

// Syncer owns the last-applied snapshot and the target state, and
// mutates both only from its own goroutine.
type Syncer struct {
	fetch      FetchFunc
	reconciler *twin.Reconciler
	target     *twin.TargetState
	recorder   Recorder
	interval   time.Duration

	mu          sync.Mutex
	state       State
	lastApplied *topo.Snapshot

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	trigger chan struct{}
}

// New creates a stopped syncer. initial is the snapshot the twin was
// built from; it becomes the first last-applied snapshot.
func New(fetch FetchFunc, rec *twin.Reconciler, target *twin.TargetState, initial *topo.Snapshot) *Syncer {
	return &Syncer{
		fetch:       fetch,
		reconciler:  rec,
		target:      target,
		interval:    DefaultInterval,
		state:       StateOff,
		lastApplied: initial,
		trigger:     make(chan struct{}, 1),
	}
}

// WithInterval overrides the iteration interval.
func (s *Syncer) WithInterval(d time.Duration) *Syncer {
	if d > 0 {
		s.interval = d
	}
	return s
}

// WithRecorder attaches a journal.
func (s *Syncer) WithRecorder(r Recorder) *Syncer {
	s.recorder = r
	return s
}

// State returns the current loop state. Safe for concurrent use.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastApplied returns the snapshot the twin last reconciled to. The
// returned snapshot is immutable. Safe for concurrent use.
func (s *Syncer) LastApplied() *topo.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastApplied
}

func (s *Syncer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Trigger requests an out-of-band iteration, e.g. after a snapshot file
// change. Coalesces when an iteration is already pending.
func (s *Syncer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start launches the background loop. Starting a running syncer is a
// no-op.
func (s *Syncer) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Printf("Sync already running")
		return
	}
	s.running = true
	s.state = StateIdle
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop()
	log.Printf("Started topology synchronization (interval: %s)", s.interval)
}

// Stop requests cooperative shutdown and joins the loop with a bounded
// wait; an in-flight iteration finishes naturally.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(joinTimeout):
		log.Printf("Sync loop did not finish within %s, detaching", joinTimeout)
	}

	s.setState(StateOff)
	log.Printf("Stopped topology sync")
}

func (s *Syncer) loop() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case <-time.After(s.interval):
		case <-s.trigger:
		}

		// A stop racing the timer wins; never start a new iteration
		// after Stop was requested.
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.iterate(context.Background())
	}
}

// iterate runs one fetch/diff/reconcile cycle. The last-applied pointer
// advances only after the reconciliation pass fully completes, so a
// partial pass is retried in full on the next successful fetch.
func (s *Syncer) iterate(ctx context.Context) {
	defer s.setState(StateIdle)
	defer telemetry.SyncCycles.Inc()

	s.setState(StateFetching)
	snap, err := s.fetch(ctx)
	if err != nil {
		telemetry.FetchFailures.Inc()
		return
	}

	last := s.LastApplied()
	if snap.Version <= last.Version {
		// Stale or unchanged source; nothing to do.
		return
	}

	log.Printf("TOPOLOGY CHANGE DETECTED (v%d -> v%d)", last.Version, snap.Version)

	s.setState(StateDiffing)
	delta := topo.Diff(last, snap)

	s.setState(StateReconciling)
	rep := s.reconciler.Apply(delta, s.target)
	s.observe(rep)

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, last.Version, snap.Version, rep); err != nil {
			log.Printf("Failed to journal sync cycle: %v", err)
		}
	}

	s.mu.Lock()
	s.lastApplied = snap
	s.mu.Unlock()
	telemetry.LastAppliedVersion.Set(float64(snap.Version))

	log.Printf("Twin updated to version %d (%d applied, %d skipped, %d failed)",
		snap.Version, rep.Applied, rep.Skipped, rep.Failures)
}

func (s *Syncer) observe(rep *twin.Report) {
	for _, item := range rep.Items {
		if item.OK {
			telemetry.ItemsApplied.WithLabelValues(string(item.Kind)).Inc()
		}
		if item.Kind == twin.ItemUnsupported || item.Kind == twin.ItemSwitchSet {
			telemetry.UnsupportedChanges.Inc()
		}
	}
	if rep.Failures > 0 {
		telemetry.ItemFailures.Add(float64(rep.Failures))
	}
}
