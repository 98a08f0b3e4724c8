package locsampler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/OrderPulse/internal/integrations/geosource"
	geofake "github.com/BearBump/OrderPulse/internal/integrations/geosource/fake"
)

type failingGeo struct {
	mu    sync.Mutex
	fails int
	inner geosource.Client
	opts  []geosource.Options
}

func (f *failingGeo) CurrentPosition(ctx context.Context, opts geosource.Options) (geosource.Fix, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	fail := f.fails > 0
	if fail {
		f.fails--
	}
	f.mu.Unlock()

	if fail {
		return geosource.Fix{}, geosource.ErrUnavailable
	}
	return f.inner.CurrentPosition(ctx, opts)
}

func (f *failingGeo) seen() []geosource.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]geosource.Options(nil), f.opts...)
}

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	calls     []string
}

func (t *fakeTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) Invoke(_ context.Context, target string, _ ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, target)
	return nil
}

func (t *fakeTransport) count(target string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		if c == target {
			n++
		}
	}
	return n
}

// blockingTransport holds the StartLocationSharing round-trip until release
// is closed.
type blockingTransport struct {
	fakeTransport
	release chan struct{}
}

func (t *blockingTransport) Invoke(ctx context.Context, target string, args ...any) error {
	if target == InvokeStartSharing {
		<-t.release
	}
	return t.fakeTransport.Invoke(ctx, target, args...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSampler_StartSharesImmediatelyThenTicks(t *testing.T) {
	geo := &failingGeo{inner: geofake.New("BK-1")}
	tr := &fakeTransport{connected: true}
	s := New("BK-1", geo, tr, WithInterval(10*time.Millisecond))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 1, tr.count(InvokeStartSharing))
	require.Equal(t, 1, tr.count(InvokeShare)) // immediate fix, before any tick

	waitFor(t, func() bool { return tr.count(InvokeShare) >= 3 })

	opts := geo.seen()
	require.Zero(t, opts[0].MaxAge) // first fix must be fresh
	require.True(t, opts[0].HighAccuracy)
	require.Equal(t, fixTimeout, opts[0].Timeout)
	require.Equal(t, periodicMaxAge, opts[1].MaxAge) // ticks accept a recent cached fix
}

func TestSampler_FirstFixFailureStillArmsTicker(t *testing.T) {
	geo := &failingGeo{inner: geofake.New("BK-1"), fails: 1}
	tr := &fakeTransport{connected: true}
	s := New("BK-1", geo, tr, WithInterval(10*time.Millisecond))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	err := s.Start(context.Background())
	require.ErrorIs(t, err, geosource.ErrUnavailable)
	require.Equal(t, 1, tr.count(InvokeStartSharing)) // sharing is announced regardless

	// Ticker survives the failed first fix.
	waitFor(t, func() bool { return tr.count(InvokeShare) >= 1 })
	require.GreaterOrEqual(t, s.Stats().Failures, uint64(1))
}

func TestSampler_StartIdempotent(t *testing.T) {
	geo := &failingGeo{inner: geofake.New("BK-1")}
	tr := &fakeTransport{connected: true}
	s := New("BK-1", geo, tr, WithInterval(time.Hour))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 1, tr.count(InvokeStartSharing))
	require.Equal(t, 1, tr.count(InvokeShare))
}

func TestSampler_NoGeoSource(t *testing.T) {
	tr := &fakeTransport{connected: true}
	s := New("BK-1", nil, tr)

	require.ErrorIs(t, s.Start(context.Background()), ErrUnsupported)
	require.Empty(t, tr.calls)
}

func TestSampler_StopIsIdempotentAndTellsHubOnce(t *testing.T) {
	geo := &failingGeo{inner: geofake.New("BK-1")}
	tr := &fakeTransport{connected: true}
	s := New("BK-1", geo, tr, WithInterval(time.Hour))

	require.NoError(t, s.Stop(context.Background())) // before Start: no-op

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, 1, tr.count(InvokeStopSharing))
	require.False(t, s.Stats().Running)
}

func TestSampler_StopNotBlockedByStartAnnounce(t *testing.T) {
	geo := &failingGeo{inner: geofake.New("BK-1")}
	tr := &blockingTransport{fakeTransport: fakeTransport{connected: true}, release: make(chan struct{})}
	s := New("BK-1", geo, tr, WithInterval(time.Hour))

	startDone := make(chan error, 1)
	go func() { startDone <- s.Start(context.Background()) }()
	time.Sleep(20 * time.Millisecond) // announce is in flight now

	stopDone := make(chan error, 1)
	go func() { stopDone <- s.Stop(context.Background()) }()

	select {
	case err := <-stopDone:
		require.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop blocked behind the sharing announcement")
	}

	close(tr.release)
	require.NoError(t, <-startDone)

	// The aborted start rolls sharing back and never samples.
	require.False(t, s.Stats().Running)
	require.Zero(t, tr.count(InvokeShare))
	require.Equal(t, 1, tr.count(InvokeStopSharing))
}

func TestSampler_StopOfflineSkipsHubCall(t *testing.T) {
	geo := &failingGeo{inner: geofake.New("BK-1")}
	tr := &fakeTransport{connected: true}
	s := New("BK-1", geo, tr, WithInterval(time.Hour))

	require.NoError(t, s.Start(context.Background()))
	tr.mu.Lock()
	tr.connected = false
	tr.mu.Unlock()

	require.NoError(t, s.Stop(context.Background()))
	require.Zero(t, tr.count(InvokeStopSharing))
}
