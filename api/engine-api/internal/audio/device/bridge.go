// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_device

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
)

var (
	ErrCaptureBusy     = errors.New("capture device is already open")
	ErrNoActiveCapture = errors.New("no capture session is open")
	ErrStreamClosed    = errors.New("stream is closed")
)

const (
	captureBuffer = 256
	commandBuffer = 64
)

const (
	ActionStart  = "start"
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionStop   = "stop"
)

// PlaybackCommand tells the platform audio bridge what to render.
type PlaybackCommand struct {
	Session string    `json:"session"`
	Action  string    `json:"action"`
	Path    string    `json:"path,omitempty"`
	At      time.Time `json:"at"`
}

// Bridge is the engine side of the platform audio bridge: the host process
// pushes microphone frames in and consumes playback commands. It implements
// CaptureDevice, PlaybackDevice and PermissionChecker.
type Bridge struct {
	logger     commons.Logger
	authorized atomic.Bool

	mu       sync.Mutex
	capture  *captureStream
	commands chan PlaybackCommand
}

func NewBridge(logger commons.Logger) *Bridge {
	b := &Bridge{
		logger:   logger,
		commands: make(chan PlaybackCommand, commandBuffer),
	}
	b.authorized.Store(true)
	return b
}

func (b *Bridge) MicrophoneAuthorized(ctx context.Context) (bool, error) {
	return b.authorized.Load(), nil
}

// SetMicrophoneAuthorized records the platform's permission answer.
func (b *Bridge) SetMicrophoneAuthorized(ok bool) {
	b.authorized.Store(ok)
}

func (b *Bridge) OpenCapture(ctx context.Context) (internal_type.CaptureStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capture != nil {
		return nil, ErrCaptureBusy
	}
	s := &captureStream{bridge: b, frames: make(chan []byte, captureBuffer)}
	b.capture = s
	b.logger.Infof("capture opened")
	return s, nil
}

// CaptureOpen reports whether a capture session is waiting for frames.
func (b *Bridge) CaptureOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capture != nil
}

// PushFrame hands one PCM frame to the open capture session. Frames are
// dropped when the consumer falls behind.
func (b *Bridge) PushFrame(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capture == nil {
		return ErrNoActiveCapture
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	select {
	case b.capture.frames <- buf:
	default:
		b.logger.Warnf("capture consumer is behind, dropping %d byte frame", len(frame))
	}
	return nil
}

func (b *Bridge) releaseCapture(s *captureStream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capture == s {
		b.capture = nil
		close(s.frames)
		b.logger.Infof("capture closed")
	}
}

func (b *Bridge) OpenPlayback(ctx context.Context, path string) (internal_type.PlaybackStream, error) {
	return &playbackStream{bridge: b, session: uuid.NewString(), path: path}, nil
}

// Commands is the playback command feed for the platform bridge.
func (b *Bridge) Commands() <-chan PlaybackCommand {
	return b.commands
}

func (b *Bridge) emit(cmd PlaybackCommand) {
	cmd.At = time.Now()
	select {
	case b.commands <- cmd:
	default:
		b.logger.Warnf("playback command feed is full, dropping %s for %s", cmd.Action, cmd.Session)
	}
}

type captureStream struct {
	bridge *Bridge
	frames chan []byte
	once   sync.Once
}

func (s *captureStream) Frames() <-chan []byte {
	return s.frames
}

func (s *captureStream) Close() error {
	s.once.Do(func() { s.bridge.releaseCapture(s) })
	return nil
}

type playbackStream struct {
	bridge  *Bridge
	session string
	path    string
	mu      sync.Mutex
	closed  bool
}

func (p *playbackStream) send(action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrStreamClosed
	}
	cmd := PlaybackCommand{Session: p.session, Action: action}
	if action == ActionStart {
		cmd.Path = p.path
	}
	p.bridge.emit(cmd)
	return nil
}

func (p *playbackStream) Start() error  { return p.send(ActionStart) }
func (p *playbackStream) Pause() error  { return p.send(ActionPause) }
func (p *playbackStream) Resume() error { return p.send(ActionResume) }

func (p *playbackStream) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.bridge.emit(PlaybackCommand{Session: p.session, Action: ActionStop})
	return nil
}
