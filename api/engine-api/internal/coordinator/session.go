// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_coordinator

import (
	"time"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/utils"
)

// session is the single active-session slot: a capture or a playback, never
// both.
type session interface {
	target() string
	// release gives the hardware back. It is safe to call twice.
	release()
}

// captureSession survives an interruption with stream == nil so the same
// recorder can continue after the gap.
type captureSession struct {
	name     string
	started  time.Time
	stream   internal_type.CaptureStream
	recorder internal_type.Recorder
	level    float64
	levels   []float64
}

func (s *captureSession) target() string { return s.name }

func (s *captureSession) release() {
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
}

func (s *captureSession) sample(level float64, history int) {
	s.levels = append(s.levels, level)
	if len(s.levels) > history {
		s.levels = s.levels[len(s.levels)-history:]
	}
}

// retainedCapture is raw audio kept until its pipeline run succeeds.
type retainedCapture struct {
	pcm []byte
}

// playbackSession keeps the timeline in durations so that N repetitions of
// length d separated by interval i take exactly N*d + (N-1)*i.
type playbackSession struct {
	name        string
	asset       *internal_type.AssetView
	stream      internal_type.PlaybackStream
	private     bool
	repetitions int
	repetition  int
	length      time.Duration
	interval    time.Duration
	elapsed     time.Duration
	waiting     bool
	waited      time.Duration
	released    bool
}

func (s *playbackSession) target() string { return s.name }

func (s *playbackSession) release() {
	if !s.released {
		s.released = true
		s.stream.Close()
	}
}

func fraction(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return utils.ClampFloat64(float64(part)/float64(whole), 0, 1)
}

// current is the Playing or IntervalWait state the session is in.
func (s *playbackSession) current() internal_type.State {
	if s.waiting {
		return internal_type.IntervalWait(s.name, s.repetition, s.repetitions, fraction(s.waited, s.interval))
	}
	return internal_type.Playing(s.name, s.repetition, s.repetitions, fraction(s.elapsed, s.length))
}
