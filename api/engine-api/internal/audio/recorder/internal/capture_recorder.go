// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	internal_audio "github.com/affirmai/engine/api/engine-api/internal/audio"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
)

// chunk is a captured frame placed at a byte offset in the waveform.
type chunk struct {
	ByteOffset int
	Data       []byte
	Segment    int
}

// segment marks one uninterrupted stretch of capture. A new segment starts
// every time Start is called after the first, e.g. when a recording continues
// after an interruption. Segments are appended back to back; the gap is not
// represented in the waveform.
type segment struct {
	StartedAt time.Time
	Offset    int
}

type captureRecorder struct {
	logger   commons.Logger
	config   internal_audio.AudioConfig
	mu       sync.Mutex
	started  bool
	segments []segment
	chunks   []chunk
	// cursor is the byte position just past the last written byte.
	cursor int
	// pending holds a trailing partial frame until its other half arrives.
	pending []byte
	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

func NewCaptureRecorder(logger commons.Logger, config internal_audio.AudioConfig) internal_type.Recorder {
	return &captureRecorder{
		logger: logger,
		config: config,
		clock:  time.Now,
	}
}

// Start opens a new capture segment. Calling it again after frames were
// recorded continues the same waveform.
func (r *captureRecorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	r.segments = append(r.segments, segment{StartedAt: r.clock(), Offset: r.cursor})
	if len(r.segments) > 1 {
		r.logger.Debugf("capture continued at %.2fs (segment %d)",
			r.config.Duration(r.cursor).Seconds(), len(r.segments))
	}
}

// Record appends a frame at the cursor. Frames arriving before Start are
// dropped; the session has not opened the timeline yet.
func (r *captureRecorder) Record(ctx context.Context, frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return fmt.Errorf("capture not started")
	}

	data := make([]byte, 0, len(r.pending)+len(frame))
	data = append(data, r.pending...)
	data = append(data, frame...)
	frameSize := r.config.FrameSize()
	aligned := (len(data) / frameSize) * frameSize
	r.pending = append(r.pending[:0], data[aligned:]...)
	if aligned == 0 {
		return nil
	}

	r.chunks = append(r.chunks, chunk{
		ByteOffset: r.cursor,
		Data:       data[:aligned],
		Segment:    len(r.segments) - 1,
	})
	r.cursor += aligned
	return nil
}

func (r *captureRecorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config.Duration(r.cursor)
}

// Persist renders the captured chunks into one contiguous PCM buffer.
func (r *captureRecorder) Persist() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.chunks) == 0 {
		return nil, fmt.Errorf("no audio chunks to persist")
	}

	pcm := make([]byte, r.cursor)
	for _, c := range r.chunks {
		copy(pcm[c.ByteOffset:], c.Data)
	}

	r.logger.Info(fmt.Sprintf(
		"Capture persist: audio=%d (%.2fs), segments=%d, chunks=%d",
		len(pcm), r.config.Duration(len(pcm)).Seconds(), len(r.segments), len(r.chunks),
	))
	return pcm, nil
}
