package internal_coordinator

import (
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	internal_asset "github.com/affirmai/engine/api/engine-api/internal/asset"
	internal_audio "github.com/affirmai/engine/api/engine-api/internal/audio"
	internal_fileops "github.com/affirmai/engine/api/engine-api/internal/fileops"
	internal_interruption "github.com/affirmai/engine/api/engine-api/internal/interruption"
	internal_processing "github.com/affirmai/engine/api/engine-api/internal/processing"
	internal_recovery "github.com/affirmai/engine/api/engine-api/internal/recovery"
	internal_script "github.com/affirmai/engine/api/engine-api/internal/script"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/configs"
	"github.com/affirmai/engine/pkg/connectors"
)

// =============================================================================
// Devices
// =============================================================================

type fakeCaptureStream struct {
	frames chan []byte
	once   sync.Once
	closed atomic.Bool
}

func (s *fakeCaptureStream) Frames() <-chan []byte { return s.frames }

func (s *fakeCaptureStream) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.frames)
	})
	return nil
}

// fakeCapture is exclusive like the real bridge: a second open fails until
// the first stream is closed.
type fakeCapture struct {
	mu      sync.Mutex
	streams []*fakeCaptureStream
	fail    bool
}

func (d *fakeCapture) OpenCapture(ctx context.Context) (internal_type.CaptureStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return nil, errors.New("capture unavailable")
	}
	if n := len(d.streams); n > 0 {
		if !d.streams[n-1].closed.Load() {
			return nil, errors.New("capture busy")
		}
	}
	s := &fakeCaptureStream{frames: make(chan []byte, 64)}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeCapture) opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

func (d *fakeCapture) current() *fakeCaptureStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

type fakePlaybackStream struct {
	mu     sync.Mutex
	calls  []string
	closed bool
}

func (s *fakePlaybackStream) record(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return nil
}

func (s *fakePlaybackStream) Start() error  { return s.record("start") }
func (s *fakePlaybackStream) Pause() error  { return s.record("pause") }
func (s *fakePlaybackStream) Resume() error { return s.record("resume") }

func (s *fakePlaybackStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.record("close")
}

func (s *fakePlaybackStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakePlaybackStream) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakePlayback struct {
	mu      sync.Mutex
	streams []*fakePlaybackStream
}

func (d *fakePlayback) OpenPlayback(ctx context.Context, path string) (internal_type.PlaybackStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakePlaybackStream{}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakePlayback) current() *fakePlaybackStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

type fakePermission struct{ denied atomic.Bool }

func (p *fakePermission) MicrophoneAuthorized(ctx context.Context) (bool, error) {
	return !p.denied.Load(), nil
}

// fakeMonitor delivers events unbuffered so each send is applied in order.
type fakeMonitor struct {
	events   chan internal_interruption.Event
	attached atomic.Bool
}

func (m *fakeMonitor) Events() <-chan internal_interruption.Event { return m.events }
func (m *fakeMonitor) PrivateOutputAttached() bool                { return m.attached.Load() }
func (m *fakeMonitor) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

type countingPresenter struct {
	mu        sync.Mutex
	presented []*internal_recovery.Decision
	withdrawn int
}

func (p *countingPresenter) Present(d *internal_recovery.Decision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presented = append(p.presented, d)
}

func (p *countingPresenter) Withdraw(d *internal_recovery.Decision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.withdrawn++
}

func (p *countingPresenter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.presented)
}

func (p *countingPresenter) withdrawals() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.withdrawn
}

func (p *countingPresenter) last() *internal_recovery.Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presented[len(p.presented)-1]
}

// gatedPipeline wraps the real pipeline so a test can fail it or hold it.
type gatedPipeline struct {
	next internal_processing.Pipeline
	fail atomic.Bool
	gate atomic.Pointer[chan struct{}]
}

func (p *gatedPipeline) hold() chan struct{} {
	ch := make(chan struct{})
	p.gate.Store(&ch)
	return ch
}

func (p *gatedPipeline) Process(ctx context.Context, job internal_processing.Job) (*internal_processing.Result, error) {
	if g := p.gate.Swap(nil); g != nil {
		select {
		case <-*g:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.fail.Load() {
		return nil, internal_type.NewError(internal_type.KindProcessingFailed, "pipeline", job.Target, errors.New("encoder exploded"))
	}
	return p.next.Process(ctx, job)
}

// echoTranscriber answers with the language. While held it blocks without
// honouring cancellation, like a provider that finishes its request anyway.
type echoTranscriber struct {
	mu       sync.Mutex
	gate     chan struct{}
	finished atomic.Int32
}

func (e *echoTranscriber) Name() string { return "echo" }

// hold blocks transcriptions until the returned release runs. Release is
// idempotent and also runs at test cleanup.
func (e *echoTranscriber) hold(t *testing.T) (release func()) {
	gate := make(chan struct{})
	e.mu.Lock()
	e.gate = gate
	e.mu.Unlock()
	var once sync.Once
	release = func() {
		once.Do(func() {
			e.mu.Lock()
			e.gate = nil
			e.mu.Unlock()
			close(gate)
		})
	}
	t.Cleanup(release)
	return release
}

func (e *echoTranscriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	defer e.finished.Add(1)
	e.mu.Lock()
	gate := e.gate
	e.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return "affirmation in " + language, nil
}

// =============================================================================
// Fixture
// =============================================================================

type fixture struct {
	c           *coordinator
	capture     *fakeCapture
	playback    *fakePlayback
	permission  *fakePermission
	monitor     *fakeMonitor
	presenter   *countingPresenter
	pipeline    *gatedPipeline
	transcriber *echoTranscriber
	assets      internal_asset.Store
	scripts     internal_script.Store
	files       internal_fileops.FileOps
	ticks       chan time.Time
	free        atomic.Uint64
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)

	dir := t.TempDir()
	sql := connectors.NewSQLConnector(configs.DatabaseConfig{
		Dialect: "sqlite",
		DSN:     filepath.Join(dir, "engine.db"),
	}, logger)
	require.NoError(t, sql.Connect(context.Background()))
	t.Cleanup(func() { sql.Disconnect(context.Background()) })

	f := &fixture{
		capture:     &fakeCapture{},
		playback:    &fakePlayback{},
		permission:  &fakePermission{},
		monitor:     &fakeMonitor{events: make(chan internal_interruption.Event)},
		presenter:   &countingPresenter{},
		ticks:       make(chan time.Time),
		transcriber: &echoTranscriber{},
	}
	f.free.Store(1 << 40)
	f.files = internal_fileops.NewFileOps(logger,
		internal_fileops.WithFs(afero.NewOsFs()),
		internal_fileops.WithDelay(time.Millisecond),
		internal_fileops.WithSpaceProbe(func(string) (uint64, error) { return f.free.Load(), nil }),
	)
	root := filepath.Join(dir, "assets")
	f.assets = internal_asset.NewStore(sql, f.files, logger, root)
	require.NoError(t, f.assets.Migrate(context.Background()))
	f.scripts = internal_script.NewStore(sql, logger)
	require.NoError(t, f.scripts.Migrate(context.Background()))
	f.pipeline = &gatedPipeline{next: internal_processing.NewPipeline(logger, f.files, f.assets)}

	all := append([]Option{WithTicker(f.ticks), WithAssetRoot(root)}, opts...)
	f.c = NewCoordinator(logger, Dependencies{
		Capture:     f.capture,
		Playback:    f.playback,
		Permission:  f.permission,
		Files:       f.files,
		Assets:      f.assets,
		Scripts:     f.scripts,
		Pipeline:    f.pipeline,
		Transcriber: f.transcriber,
		Monitor:     f.monitor,
		Presenter:   f.presenter,
	}, all...).(*coordinator)

	ctx, cancel := context.WithCancel(context.Background())
	go f.c.Run(ctx)
	t.Cleanup(func() {
		f.c.Close()
		cancel()
	})
	return f
}

// sync returns once every event queued before it has been applied.
func (f *fixture) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, f.c.do(context.Background(), func() error { return nil }))
}

func (f *fixture) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f.ticks <- time.Now()
	}
	f.sync(t)
}

func (f *fixture) state(t *testing.T) internal_type.State {
	t.Helper()
	f.sync(t)
	return f.c.Snapshot().State
}

func (f *fixture) emit(ev internal_interruption.Event) {
	f.monitor.events <- ev
}

func (f *fixture) interrupt(t *testing.T, began bool) {
	t.Helper()
	f.emit(internal_interruption.Event{Interruption: &internal_type.InterruptionEvent{
		Began: began, Cause: internal_type.CauseCall, At: time.Now(),
	}})
	f.sync(t)
}

func (f *fixture) route(t *testing.T, attached bool) {
	t.Helper()
	f.monitor.attached.Store(attached)
	f.emit(internal_interruption.Event{Route: &internal_type.RouteChange{
		PrivateOutputAttached: attached, Reason: "test", At: time.Now(),
	}})
	f.sync(t)
}

// seed stores a valid asset of the given length directly.
func (f *fixture) seed(t *testing.T, target string, seconds float64) *internal_asset.RecordingAsset {
	t.Helper()
	ctx := context.Background()
	cfg := internal_audio.ENGINE_AUDIO_CONFIG
	staged := f.assets.StagingPath(target)
	err := f.files.WriteFile(ctx, staged, func(w io.WriteSeeker) error {
		return internal_audio.WriteWAV(w, cfg, tone(seconds, 0.3))
	})
	require.NoError(t, err)
	asset, err := f.assets.Replace(ctx, target, staged, seconds)
	require.NoError(t, err)
	return asset
}

// record pushes seconds of tone through the capture device and waits until
// the recorder has it.
func (f *fixture) record(t *testing.T, seconds float64) {
	t.Helper()
	before := f.captured(t)
	pcm := tone(seconds, 0.3)
	stream := f.capture.current()
	const frame = 3200
	for len(pcm) > 0 {
		n := frame
		if n > len(pcm) {
			n = len(pcm)
		}
		stream.frames <- pcm[:n]
		pcm = pcm[n:]
	}
	want := before + time.Duration(seconds*float64(time.Second))
	require.Eventually(t, func() bool {
		return f.captured(t) >= want
	}, 2*time.Second, 5*time.Millisecond)
}

// captured reads the active recorder's duration on the loop.
func (f *fixture) captured(t *testing.T) time.Duration {
	t.Helper()
	var d time.Duration
	require.NoError(t, f.c.do(context.Background(), func() error {
		if cs, ok := f.c.active.(*captureSession); ok {
			d = cs.recorder.Duration()
		}
		return nil
	}))
	return d
}

func (f *fixture) waitFor(t *testing.T, phase internal_type.Phase, target string) internal_type.Snapshot {
	t.Helper()
	var snap internal_type.Snapshot
	require.Eventually(t, func() bool {
		f.sync(t)
		snap = f.c.Snapshot()
		return snap.State.Phase == phase && snap.State.Target == target
	}, 5*time.Second, 5*time.Millisecond, "waiting for %s(%s)", phase, target)
	return snap
}

func tone(seconds, amplitude float64) []byte {
	n := int(seconds * float64(internal_audio.ENGINE_AUDIO_CONFIG.SampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*440*float64(i)/16000)
	}
	return internal_audio.PCM(samples)
}

// phases collapses the snapshots buffered on ch into the sequence of distinct
// phases they passed through.
func phases(ch <-chan internal_type.Snapshot) []internal_type.Phase {
	var out []internal_type.Phase
	for {
		select {
		case snap := <-ch:
			if n := len(out); n == 0 || out[n-1] != snap.State.Phase {
				out = append(out, snap.State.Phase)
			}
		default:
			return out
		}
	}
}
