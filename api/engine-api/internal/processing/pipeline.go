// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_processing

import (
	"context"
	"fmt"
	"io"
	"time"

	internal_asset "github.com/affirmai/engine/api/engine-api/internal/asset"
	internal_audio "github.com/affirmai/engine/api/engine-api/internal/audio"
	internal_fileops "github.com/affirmai/engine/api/engine-api/internal/fileops"
	internal_telemetry "github.com/affirmai/engine/api/engine-api/internal/telemetry"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
)

// AssetWriter is the part of the asset store the pipeline needs.
type AssetWriter interface {
	StagingPath(target string) string
	Replace(ctx context.Context, target, stagedPath string, duration float64) (*internal_asset.RecordingAsset, error)
}

// Job is one finished capture handed over by the coordinator.
type Job struct {
	Target string
	PCM    []byte
	Config internal_audio.AudioConfig
}

// Result describes the asset a job produced.
type Result struct {
	Target   string
	Asset    *internal_asset.RecordingAsset
	Duration time.Duration
	Trimmed  bool
	Enhanced bool
}

// Pipeline turns a raw capture into a validated asset.
type Pipeline interface {
	Process(ctx context.Context, job Job) (*Result, error)
}

type pipeline struct {
	logger      commons.Logger
	files       internal_fileops.FileOps
	assets      AssetWriter
	metrics     *internal_telemetry.Metrics
	trim        bool
	sensitivity Sensitivity
	enhance     bool
}

type Option func(*pipeline)

func WithTrim(enabled bool, sensitivity Sensitivity) Option {
	return func(p *pipeline) {
		p.trim = enabled
		p.sensitivity = sensitivity
	}
}

func WithEnhance(enabled bool) Option {
	return func(p *pipeline) { p.enhance = enabled }
}

func WithMetrics(m *internal_telemetry.Metrics) Option {
	return func(p *pipeline) { p.metrics = m }
}

func NewPipeline(logger commons.Logger, files internal_fileops.FileOps, assets AssetWriter, opts ...Option) Pipeline {
	p := &pipeline{
		logger:      logger,
		files:       files,
		assets:      assets,
		metrics:     internal_telemetry.NopMetrics(),
		trim:        true,
		sensitivity: SensitivityMedium,
		enhance:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func failed(target string, err error) error {
	return internal_type.NewError(internal_type.KindProcessingFailed, "processing", target, err)
}

func (p *pipeline) Process(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	defer p.metrics.ObserveStage("total", start)

	if len(job.PCM) == 0 {
		return nil, failed(job.Target, ErrEmptyAudio)
	}
	samples := internal_audio.Samples(job.PCM)
	result := &Result{Target: job.Target}

	if p.trim {
		stageStart := time.Now()
		trimmed, err := Trim(samples, job.Config.SampleRate, p.sensitivity)
		p.metrics.ObserveStage("trim", stageStart)
		if err != nil {
			p.logger.Warnf("trim failed for %s, keeping untrimmed capture: %v", job.Target, err)
		} else {
			samples = trimmed
			result.Trimmed = true
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, failed(job.Target, err)
	}

	if p.enhance {
		stageStart := time.Now()
		enhanced, err := Enhance(samples, job.Config.SampleRate)
		p.metrics.ObserveStage("enhance", stageStart)
		if err != nil {
			p.logger.Warnf("enhancement failed for %s, keeping unenhanced audio: %v", job.Target, err)
		} else {
			samples = enhanced
			result.Enhanced = true
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, failed(job.Target, err)
	}

	pcm := internal_audio.PCM(samples)
	result.Duration = job.Config.Duration(len(pcm))
	if result.Duration <= 0 {
		return nil, failed(job.Target, ErrEmptyAudio)
	}

	stageStart := time.Now()
	staged := p.assets.StagingPath(job.Target)
	err := p.files.WriteFile(ctx, staged, func(w io.WriteSeeker) error {
		return internal_audio.WriteWAV(w, job.Config, pcm)
	})
	if err != nil {
		return nil, failed(job.Target, fmt.Errorf("write staged recording: %w", err))
	}
	asset, err := p.assets.Replace(ctx, job.Target, staged, result.Duration.Seconds())
	p.metrics.ObserveStage("write", stageStart)
	if err != nil {
		p.files.Delete(context.Background(), staged)
		return nil, failed(job.Target, err)
	}
	result.Asset = asset

	p.logger.Benchmark("pipeline.Process", time.Since(start))
	p.logger.Infow("processed recording",
		"target", job.Target,
		"duration", result.Duration.Seconds(),
		"trimmed", result.Trimmed,
		"enhanced", result.Enhanced)
	return result, nil
}
