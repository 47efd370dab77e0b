// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	internal_asset "github.com/affirmai/engine/api/engine-api/internal/asset"
	internal_audio "github.com/affirmai/engine/api/engine-api/internal/audio"
	internal_audio_recorder "github.com/affirmai/engine/api/engine-api/internal/audio/recorder"
	internal_fileops "github.com/affirmai/engine/api/engine-api/internal/fileops"
	internal_interruption "github.com/affirmai/engine/api/engine-api/internal/interruption"
	internal_processing "github.com/affirmai/engine/api/engine-api/internal/processing"
	internal_recovery "github.com/affirmai/engine/api/engine-api/internal/recovery"
	internal_script "github.com/affirmai/engine/api/engine-api/internal/script"
	internal_telemetry "github.com/affirmai/engine/api/engine-api/internal/telemetry"
	internal_transcription "github.com/affirmai/engine/api/engine-api/internal/transcription"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/utils"
)

var ErrClosed = errors.New("coordinator is closed")

// Coordinator owns the single audio session. Every intent, tick, device
// frame, background completion and platform event is applied on one loop
// goroutine in arrival order; callers only ever see published snapshots.
type Coordinator interface {
	// Run drives the event loop until ctx is done or Close is called.
	Run(ctx context.Context) error
	Close()

	StartRecording(ctx context.Context, target string) error
	// StopRecording hands the capture to the pipeline and returns at once.
	StopRecording(ctx context.Context) error
	// RetryProcessing re-runs the pipeline on a capture retained after a failure.
	RetryProcessing(ctx context.Context, target string) error

	// Play starts a session. repetitions < 1 and intervalSeconds < 0 fall
	// back to the script's stored values.
	Play(ctx context.Context, target string, repetitions int, intervalSeconds float64) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	StopPlayback(ctx context.Context) error

	RequestTranscription(ctx context.Context, target, language string) error
	DeleteRecording(ctx context.Context, target string) error

	Snapshot() internal_type.Snapshot
	// Subscribe delivers the current snapshot and every later one until
	// cancel is called. A subscriber that falls behind misses intermediate
	// snapshots, never the latest.
	Subscribe() (<-chan internal_type.Snapshot, func())
}

// RouteState answers whether a private output is attached right now.
type RouteState interface {
	PrivateOutputAttached() bool
}

// Dependencies are the collaborators a coordinator is wired with.
type Dependencies struct {
	Capture    internal_type.CaptureDevice
	Playback   internal_type.PlaybackDevice
	Permission internal_type.PermissionChecker

	Files    internal_fileops.FileOps
	Assets   internal_asset.Store
	Scripts  internal_script.Store
	Pipeline internal_processing.Pipeline

	// Transcriber may be nil when transcription is disabled.
	Transcriber     internal_type.Transcriber
	TranscriptCache internal_transcription.Cache

	// Monitor may be nil; then no platform events arrive and no private
	// output is ever attached.
	Monitor   internal_interruption.Monitor
	Presenter internal_recovery.Presenter
}

type Option func(*coordinator)

// WithTicker replaces the internal ticker. Each received tick advances the
// timeline by the nominal tick interval.
func WithTicker(ticks <-chan time.Time) Option {
	return func(c *coordinator) { c.ticks = ticks }
}

func WithTickInterval(d time.Duration) Option {
	return func(c *coordinator) {
		if d > 0 {
			c.tick = d
		}
	}
}

func WithLevelHistory(n int) Option {
	return func(c *coordinator) {
		if n > 0 {
			c.levelHistory = n
		}
	}
}

func WithAudioConfig(cfg internal_audio.AudioConfig) Option {
	return func(c *coordinator) { c.audioConfig = cfg }
}

// WithAssetRoot is the directory the pre-recording space check probes.
func WithAssetRoot(dir string) Option {
	return func(c *coordinator) { c.assetRoot = dir }
}

func WithDefaultLanguage(language string) Option {
	return func(c *coordinator) { c.defaultLanguage = language }
}

// WithTranscribeOnSave starts transcription after every successful save.
func WithTranscribeOnSave(enabled bool) Option {
	return func(c *coordinator) { c.transcribeOnSave = enabled }
}

func WithMetrics(m *internal_telemetry.Metrics) Option {
	return func(c *coordinator) { c.metrics = m }
}

func WithRecorderFactory(fn func() internal_type.Recorder) Option {
	return func(c *coordinator) { c.newRecorder = fn }
}

type noRoute struct{}

func (noRoute) PrivateOutputAttached() bool { return false }

type coordinator struct {
	logger commons.Logger
	deps   Dependencies

	metrics          *internal_telemetry.Metrics
	transcripts      internal_transcription.Manager
	routes           RouteState
	monitorEvents    <-chan internal_interruption.Event
	newRecorder      func() internal_type.Recorder
	audioConfig      internal_audio.AudioConfig
	assetRoot        string
	defaultLanguage  string
	transcribeOnSave bool
	levelHistory     int
	tick             time.Duration
	ticks            <-chan time.Time

	events  chan func()
	quit    chan struct{}
	done    chan struct{}
	running atomic.Bool
	closing sync.Once
	ctx     context.Context
	cancel  context.CancelFunc

	// ---- owned by the loop goroutine ----
	state      internal_type.State
	active     session
	asset      *internal_type.AssetView
	transcript string
	generation uint64
	processing uint64
	retained   map[string]*retainedCapture
	decision   *internal_recovery.Decision

	// transcribing holds the token of the one transcription job per target
	// whose result may still be applied.
	transcribing map[string]uint64

	// script writes run in the order the loop queued them
	writes     chan func(ctx context.Context)
	writesDone chan struct{}

	// ---- published ----
	snapMu   sync.RWMutex
	snapshot internal_type.Snapshot
	sequence uint64
	subMu    sync.Mutex
	subs     map[uint64]chan internal_type.Snapshot
	subSeq   uint64
}

// NewCoordinator builds a coordinator in Idle. It does nothing until Run.
func NewCoordinator(logger commons.Logger, deps Dependencies, opts ...Option) Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &coordinator{
		logger:          logger,
		deps:            deps,
		metrics:         internal_telemetry.NopMetrics(),
		routes:          noRoute{},
		audioConfig:     internal_audio.ENGINE_AUDIO_CONFIG,
		defaultLanguage: "en-US",
		levelHistory:    50,
		tick:            50 * time.Millisecond,
		events:          make(chan func(), 256),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
		state:           internal_type.Idle(),
		retained:        make(map[string]*retainedCapture),
		transcribing:    make(map[string]uint64),
		writes:          make(chan func(ctx context.Context), 64),
		writesDone:      make(chan struct{}),
		subs:            make(map[uint64]chan internal_type.Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.newRecorder == nil {
		c.newRecorder = func() internal_type.Recorder {
			return internal_audio_recorder.GetRecorder(c.logger, c.audioConfig)
		}
	}
	if deps.Monitor != nil {
		c.routes = deps.Monitor
		c.monitorEvents = deps.Monitor.Events()
	}
	if deps.Presenter == nil {
		c.deps.Presenter = internal_recovery.NewMailbox(logger)
	}
	cacheOpt := internal_transcription.WithCache(internal_transcription.NopCache())
	if deps.TranscriptCache != nil {
		cacheOpt = internal_transcription.WithCache(deps.TranscriptCache)
	}
	c.transcripts = internal_transcription.NewManager(logger, deps.Transcriber, c.onTranscript,
		cacheOpt, internal_transcription.WithMetrics(c.metrics))
	c.snapshot = internal_type.Snapshot{State: c.state, At: time.Now()}
	return c
}

// =============================================================================
// Event loop
// =============================================================================

func (c *coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("coordinator is already running")
	}
	defer close(c.done)

	ticks := c.ticks
	if ticks == nil {
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		ticks = ticker.C
	}

	utils.Go(c.ctx, c.drainWrites)

	c.logger.Infof("coordinator started: tick=%s", c.tick)
	c.publish()
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-c.quit:
			c.shutdown()
			return nil
		case fn := <-c.events:
			fn()
		case <-ticks:
			c.onTick(c.tick)
		case ev, ok := <-c.monitorEvents:
			if !ok {
				c.monitorEvents = nil
				continue
			}
			c.onPlatformEvent(ev)
		}
	}
}

func (c *coordinator) shutdown() {
	c.cancel()
	if c.active != nil {
		c.active.release()
		c.active = nil
	}
	if c.decision != nil {
		c.deps.Presenter.Withdraw(c.decision)
		c.decision = nil
	}
	close(c.writes)
	<-c.writesDone
	c.logger.Infof("coordinator stopped in %s", c.state)
}

// drainWrites applies queued script writes one at a time. Writes queued
// before shutdown still land.
func (c *coordinator) drainWrites() {
	defer close(c.writesDone)
	ctx := context.WithoutCancel(c.ctx)
	for write := range c.writes {
		write(ctx)
	}
}

// write queues a script update; it must be called on the loop.
func (c *coordinator) write(op, target string, fn func(ctx context.Context) error) {
	c.writes <- func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			c.logger.Errorf("script %s for %s failed: %v", op, target, err)
		}
	}
}

func (c *coordinator) Close() {
	c.closing.Do(func() {
		close(c.quit)
		if c.running.Load() {
			<-c.done
		}
		c.cancel()
		c.transcripts.Close()
	})
}

// post queues fn on the loop. It is dropped once the loop has stopped.
func (c *coordinator) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	case <-c.quit:
	}
}

// do runs fn on the loop and waits for its result.
func (c *coordinator) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.events <- func() { reply <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrClosed
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// =============================================================================
// State publication
// =============================================================================

func (c *coordinator) setState(next internal_type.State) {
	prev := c.state
	c.state = next
	if prev.Phase != next.Phase {
		c.metrics.Transitions.WithLabelValues(prev.Phase.String(), next.Phase.String()).Inc()
		c.logger.Infof("coordinator: %s -> %s", prev, next)
	}
	c.publish()
}

func (c *coordinator) publish() {
	snap := internal_type.Snapshot{
		State:         c.state,
		Asset:         c.asset,
		Transcript:    c.transcript,
		PrivateOutput: c.routes.PrivateOutputAttached(),
		At:            time.Now(),
	}
	if cs, ok := c.active.(*captureSession); ok {
		snap.Elapsed = cs.recorder.Duration()
		if c.state.Phase == internal_type.PhaseRecording {
			snap.Level = cs.level
			snap.Levels = append([]float64(nil), cs.levels...)
		}
	}

	c.snapMu.Lock()
	c.sequence++
	snap.Sequence = c.sequence
	c.snapshot = snap
	c.snapMu.Unlock()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// drop the oldest so the newest always lands
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (c *coordinator) Snapshot() internal_type.Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snapshot
}

func (c *coordinator) Subscribe() (<-chan internal_type.Snapshot, func()) {
	ch := make(chan internal_type.Snapshot, 1024)
	c.subMu.Lock()
	c.subSeq++
	id := c.subSeq
	c.subs[id] = ch
	ch <- c.Snapshot()
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}
