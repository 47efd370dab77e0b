// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transcription

import (
	"context"
	"errors"
	"sync"
	"time"

	internal_telemetry "github.com/affirmai/engine/api/engine-api/internal/telemetry"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/utils"
)

// Result is delivered once per job that is still the newest for its target.
type Result struct {
	Target   string
	Language string
	Text     string
	Cached   bool
	Err      error
	// Token is the value Start returned for this job.
	Token uint64
}

// Manager runs at most one transcription job per target. Starting a job for
// a target cancels the previous one, and a job that finishes after it was
// superseded is dropped even if it ignored cancellation.
type Manager interface {
	// Start returns the job token, or 0 once the manager is closed.
	Start(ctx context.Context, target, language string, wav []byte) uint64
	Cancel(target string)
	// Active reports whether target has a job in flight.
	Active(target string) bool
	Close()
}

type job struct {
	token  uint64
	cancel context.CancelFunc
}

type manager struct {
	logger      commons.Logger
	transcriber internal_type.Transcriber
	cache       Cache
	metrics     *internal_telemetry.Metrics
	timeout     time.Duration
	onResult    func(Result)

	mu    sync.Mutex
	next  uint64
	jobs  map[string]*job
	wg    sync.WaitGroup
	close bool
}

type Option func(*manager)

func WithCache(c Cache) Option {
	return func(m *manager) { m.cache = c }
}

func WithMetrics(metrics *internal_telemetry.Metrics) Option {
	return func(m *manager) { m.metrics = metrics }
}

func WithTimeout(d time.Duration) Option {
	return func(m *manager) { m.timeout = d }
}

// NewManager delivers results through onResult, which must not block.
func NewManager(logger commons.Logger, transcriber internal_type.Transcriber, onResult func(Result), opts ...Option) Manager {
	m := &manager{
		logger:      logger,
		transcriber: transcriber,
		cache:       NopCache(),
		metrics:     internal_telemetry.NopMetrics(),
		timeout:     2 * time.Minute,
		onResult:    onResult,
		jobs:        make(map[string]*job),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *manager) provider() string {
	if m.transcriber == nil {
		return "none"
	}
	return m.transcriber.Name()
}

func (m *manager) Start(ctx context.Context, target, language string, wav []byte) uint64 {
	m.mu.Lock()
	if m.close {
		m.mu.Unlock()
		return 0
	}
	if prev, ok := m.jobs[target]; ok {
		prev.cancel()
		m.metrics.TranscriptionResults.WithLabelValues(m.provider(), "superseded").Inc()
	}
	m.next++
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	j := &job{token: m.next, cancel: cancel}
	m.jobs[target] = j
	m.wg.Add(1)
	m.mu.Unlock()

	utils.Go(jobCtx, func() {
		defer m.wg.Done()
		defer cancel()
		res := m.run(jobCtx, target, language, wav)
		res.Token = j.token
		if !m.finish(target, j.token) {
			m.logger.Debugf("dropping superseded transcription for %s (%s)", target, language)
			return
		}
		if res.Err != nil && errors.Is(res.Err, context.Canceled) {
			return
		}
		m.onResult(res)
	})
	return j.token
}

// finish clears the job slot if token is still current.
func (m *manager) finish(target string, token uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.jobs[target]
	if !ok || cur.token != token {
		return false
	}
	delete(m.jobs, target)
	return true
}

func (m *manager) run(ctx context.Context, target, language string, wav []byte) Result {
	res := Result{Target: target, Language: language}
	if m.transcriber == nil {
		res.Err = internal_type.NewError(internal_type.KindTranscriptionFailed, "transcription", target, errors.New("no transcription provider configured"))
		return res
	}

	digest := Digest(wav)
	if text, ok, err := m.cache.Get(ctx, digest, language); err != nil {
		m.logger.Warnf("transcript cache unavailable: %v", err)
	} else if ok {
		res.Text, res.Cached = text, true
		m.metrics.TranscriptionResults.WithLabelValues(m.provider(), "cached").Inc()
		return res
	}

	start := time.Now()
	text, err := m.transcriber.Transcribe(ctx, wav, language)
	m.metrics.ObserveStage("transcribe", start)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			res.Err = context.Canceled
			return res
		}
		m.logger.Errorf("transcription failed for %s (%s): %v", target, language, err)
		m.metrics.TranscriptionResults.WithLabelValues(m.provider(), "failed").Inc()
		res.Err = internal_type.NewError(internal_type.KindTranscriptionFailed, "transcription", target, err)
		return res
	}
	m.metrics.TranscriptionResults.WithLabelValues(m.provider(), "ok").Inc()
	if err := m.cache.Set(ctx, digest, language, text); err != nil {
		m.logger.Warnf("failed to cache transcript for %s: %v", target, err)
	}
	res.Text = text
	return res
}

func (m *manager) Cancel(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[target]; ok {
		j.cancel()
		delete(m.jobs, target)
	}
}

func (m *manager) Active(target string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[target]
	return ok
}

func (m *manager) Close() {
	m.mu.Lock()
	m.close = true
	for target, j := range m.jobs {
		j.cancel()
		delete(m.jobs, target)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
