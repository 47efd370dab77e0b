// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"context"
	"time"
)

// CaptureDevice opens the microphone input exclusively.
type CaptureDevice interface {
	OpenCapture(ctx context.Context) (CaptureStream, error)
}

// CaptureStream delivers LINEAR16 PCM frames until closed.
type CaptureStream interface {
	// Frames is closed when the stream ends or Close is called.
	Frames() <-chan []byte
	Close() error
}

// PlaybackDevice renders an asset file to the current output route.
type PlaybackDevice interface {
	OpenPlayback(ctx context.Context, path string) (PlaybackStream, error)
}

// PlaybackStream controls one opened asset. Start rewinds to the beginning.
type PlaybackStream interface {
	Start() error
	Pause() error
	Resume() error
	Close() error
}

// PermissionChecker answers whether microphone capture is authorised.
type PermissionChecker interface {
	MicrophoneAuthorized(ctx context.Context) (bool, error)
}

// Recorder accumulates a capture session's frames into one waveform.
type Recorder interface {
	// Start begins the recording timeline.
	Start()
	// Record appends one PCM frame.
	Record(ctx context.Context, frame []byte) error
	// Duration is the audio captured so far.
	Duration() time.Duration
	// Persist returns the accumulated LINEAR16 PCM.
	Persist() ([]byte, error)
}

// Transcriber turns a WAV payload into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, wav []byte, language string) (string, error)
}
