package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netmirror/internal/topo"
	"netmirror/internal/twin"
	"netmirror/internal/twin/emulator"
)

func testSnapshot(version uint64, withLink bool, hosts []topo.Host) *topo.Snapshot {
	s := &topo.Snapshot{
		Version: version,
		Switches: map[uint64]topo.Switch{
			1: {DPID: 1, Ports: []int{1, 2}},
			2: {DPID: 2, Ports: []int{1, 2}},
		},
		Links: map[topo.LinkID]topo.Link{},
		Hosts: map[string]topo.Host{},
	}
	if withLink {
		l := topo.Link{
			A: topo.Endpoint{DPID: 1, Port: 1},
			B: topo.Endpoint{DPID: 2, Port: 1},
		}
		s.Links[l.Canonical()] = l
	}
	for _, h := range hosts {
		s.Hosts[topo.NormalizeMAC(h.MAC)] = h
	}
	return s
}

// stubSource hands out queued fetch results, one per call.
type stubSource struct {
	mu      sync.Mutex
	results []*topo.Snapshot
	err     error
}

func (s *stubSource) fetch(context.Context) (*topo.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) == 0 {
		return nil, errors.New("no snapshot queued")
	}
	snap := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return snap, nil
}

func newTestSyncer(t *testing.T, initial *topo.Snapshot, source *stubSource) (*Syncer, *emulator.Network) {
	t.Helper()
	env := emulator.New(initial)
	state := twin.Capture(env, initial)
	s := New(source.fetch, twin.NewReconciler(env), state, initial).
		WithInterval(time.Hour) // iterations driven via Trigger
	return s, env
}

func TestSyncerLifecycle(t *testing.T) {
	initial := testSnapshot(1, true, nil)
	s, _ := newTestSyncer(t, initial, &stubSource{err: errors.New("down")})

	assert.Equal(t, StateOff, s.State())

	s.Start()
	defer s.Stop()
	assert.NotEqual(t, StateOff, s.State())

	// Starting again is a no-op.
	s.Start()

	s.Stop()
	assert.Equal(t, StateOff, s.State())

	// Stopping a stopped syncer is safe.
	s.Stop()
}

func TestSyncerAppliesNewVersion(t *testing.T) {
	initial := testSnapshot(1, true, nil)
	source := &stubSource{results: []*topo.Snapshot{
		testSnapshot(2, true, []topo.Host{{MAC: "aa:bb:cc:dd:ee:ff", IPv4: "10.0.0.9", DPID: 1, Port: 2}}),
	}}
	s, env := newTestSyncer(t, initial, source)

	s.Start()
	defer s.Stop()
	s.Trigger()

	require.Eventually(t, func() bool {
		return s.LastApplied().Version == 2
	}, 2*time.Second, 10*time.Millisecond)

	// The twin gained the reported host.
	found := false
	for _, h := range env.Hosts() {
		if h.MAC() == "aa:bb:cc:dd:ee:ff" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSyncerVersionGate(t *testing.T) {
	initial := testSnapshot(5, true, nil)

	t.Run("equal version skipped", func(t *testing.T) {
		source := &stubSource{results: []*topo.Snapshot{testSnapshot(5, false, nil)}}
		s, env := newTestSyncer(t, initial, source)

		s.Start()
		defer s.Stop()
		s.Trigger()

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, uint64(5), s.LastApplied().Version)

		// The (stale) link removal was never applied.
		l, ok := env.FindLinkBetween(env.Switches()[0], env.Switches()[1])
		require.True(t, ok)
		require.NoError(t, env.SetLinkUp(l)) // would be a no-op if still up
	})

	t.Run("older version skipped", func(t *testing.T) {
		source := &stubSource{results: []*topo.Snapshot{testSnapshot(3, false, nil)}}
		s, _ := newTestSyncer(t, initial, source)

		s.Start()
		defer s.Stop()
		s.Trigger()

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, uint64(5), s.LastApplied().Version)
	})
}

func TestSyncerFetchFailureSkipsIteration(t *testing.T) {
	initial := testSnapshot(1, true, nil)
	s, _ := newTestSyncer(t, initial, &stubSource{err: errors.New("producer down")})

	s.Start()
	defer s.Stop()
	s.Trigger()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, uint64(1), s.LastApplied().Version)
	assert.NotEqual(t, StateOff, s.State(), "loop survives a bad iteration")
}

func TestSyncerAdvancesOnlyAfterApply(t *testing.T) {
	initial := testSnapshot(1, true, nil)
	v2 := testSnapshot(2, false, nil) // link removed upstream
	source := &stubSource{results: []*topo.Snapshot{v2}}
	s, env := newTestSyncer(t, initial, source)

	s.Start()
	defer s.Stop()
	s.Trigger()

	require.Eventually(t, func() bool {
		return s.LastApplied().Version == 2
	}, 2*time.Second, 10*time.Millisecond)

	// After the pass the twin link is down; a further identical fetch
	// yields an empty delta (idempotence).
	s.Trigger()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, uint64(2), s.LastApplied().Version)

	assert.False(t, env.Reachable("00:00:00:00:00:01", "00:00:00:00:00:02"))
}

type recordingJournal struct {
	mu     sync.Mutex
	cycles int
	lastTo uint64
}

func (r *recordingJournal) Record(_ context.Context, _, to uint64, _ *twin.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
	r.lastTo = to
	return nil
}

func TestSyncerRecordsAppliedCycles(t *testing.T) {
	initial := testSnapshot(1, true, nil)
	source := &stubSource{results: []*topo.Snapshot{testSnapshot(2, false, nil)}}
	s, _ := newTestSyncer(t, initial, source)

	rec := &recordingJournal{}
	s.WithRecorder(rec)

	s.Start()
	defer s.Stop()
	s.Trigger()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.cycles == 1 && rec.lastTo == 2
	}, 2*time.Second, 10*time.Millisecond)
}
