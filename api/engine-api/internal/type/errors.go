// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed set of failures the engine reports.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// permission: microphone access denied, never retried
	KindPermissionDenied
	// policy: private output required for audible playback
	KindPrivateModeActive
	// resource
	KindInsufficientDiskSpace
	KindFileOperationFailed
	// data
	KindFileCorrupted
	KindFileNotFound
	KindNoRecording
	// pipeline
	KindProcessingFailed
	KindTranscriptionFailed
	// intent issued from a state that cannot honour it
	KindInvalidState
)

var kindNames = map[ErrorKind]string{
	KindUnknown:               "unknown",
	KindPermissionDenied:      "permission_denied",
	KindPrivateModeActive:     "private_mode_active",
	KindInsufficientDiskSpace: "insufficient_disk_space",
	KindFileOperationFailed:   "file_operation_failed",
	KindFileCorrupted:         "file_corrupted",
	KindFileNotFound:          "file_not_found",
	KindNoRecording:           "no_recording",
	KindProcessingFailed:      "processing_failed",
	KindTranscriptionFailed:   "transcription_failed",
	KindInvalidState:          "invalid_state",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// EngineError carries a kind plus the operation and target it happened on.
// Two EngineErrors match under errors.Is when their kinds are equal.
type EngineError struct {
	Kind   ErrorKind
	Op     string
	Target string
	Err    error
}

func (e *EngineError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(strings.ReplaceAll(e.Kind.String(), "_", " "))
	if e.Target != "" {
		b.WriteString(" (")
		b.WriteString(e.Target)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *EngineError) Unwrap() error { return e.Err }

func (e *EngineError) Is(target error) bool {
	var other *EngineError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrPermissionDenied      = &EngineError{Kind: KindPermissionDenied}
	ErrPrivateModeActive     = &EngineError{Kind: KindPrivateModeActive}
	ErrInsufficientDiskSpace = &EngineError{Kind: KindInsufficientDiskSpace}
	ErrFileOperationFailed   = &EngineError{Kind: KindFileOperationFailed}
	ErrFileCorrupted         = &EngineError{Kind: KindFileCorrupted}
	ErrFileNotFound          = &EngineError{Kind: KindFileNotFound}
	ErrNoRecording           = &EngineError{Kind: KindNoRecording}
	ErrProcessingFailed      = &EngineError{Kind: KindProcessingFailed}
	ErrTranscriptionFailed   = &EngineError{Kind: KindTranscriptionFailed}
	ErrInvalidState          = &EngineError{Kind: KindInvalidState}
)

// NewError wraps err with a kind, an operation name and an optional target.
func NewError(kind ErrorKind, op, target string, err error) *EngineError {
	return &EngineError{Kind: kind, Op: op, Target: target, Err: err}
}

// KindOf returns the kind of the outermost EngineError in err's chain.
func KindOf(err error) ErrorKind {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNoRecording reports whether err means the target has nothing playable.
// Not-found and corrupted files fall back to "no recording" rather than a crash.
func IsNoRecording(err error) bool {
	switch KindOf(err) {
	case KindNoRecording, KindFileNotFound, KindFileCorrupted:
		return true
	}
	return false
}
