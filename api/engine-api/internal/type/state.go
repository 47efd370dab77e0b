// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"fmt"
	"time"
)

// Phase names the coordinator state variant.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseProcessing
	PhaseReady
	PhasePlaying
	PhaseIntervalWait
	PhasePaused
	PhaseInterrupted
	PhaseError
)

var phaseNames = [...]string{
	PhaseIdle:         "idle",
	PhaseRecording:    "recording",
	PhaseProcessing:   "processing",
	PhaseReady:        "ready",
	PhasePlaying:      "playing",
	PhaseIntervalWait: "interval_wait",
	PhasePaused:       "paused",
	PhaseInterrupted:  "interrupted",
	PhaseError:        "error",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// InterruptionCause classifies a system audio interruption.
type InterruptionCause string

const (
	CauseCall  InterruptionCause = "call"
	CauseOther InterruptionCause = "other"
)

// InterruptionRecord is produced when an interruption truncates a recording
// and is consumed exactly once by the recovery prompt.
type InterruptionRecord struct {
	Target           string            `json:"target"`
	Cause            InterruptionCause `json:"cause"`
	CapturedDuration time.Duration     `json:"capturedDuration"`
	At               time.Time         `json:"at"`
}

// Resolution is the single decision collected by the recovery prompt.
type Resolution string

const (
	ResolutionContinue    Resolution = "continue"
	ResolutionSavePartial Resolution = "save_partial"
	ResolutionDiscard     Resolution = "discard"
)

func (r Resolution) Valid() bool {
	switch r {
	case ResolutionContinue, ResolutionSavePartial, ResolutionDiscard:
		return true
	}
	return false
}

// State is one variant of the coordinator state machine. Only the fields
// relevant to Phase are set; Resume is set only while Paused and holds the
// Playing or IntervalWait sub-state to restore.
type State struct {
	Phase        Phase               `json:"phase"`
	Target       string              `json:"target,omitempty"`
	Repetition   int                 `json:"repetition,omitempty"`
	Repetitions  int                 `json:"repetitions,omitempty"`
	Progress     float64             `json:"progress"`
	Resume       *State              `json:"resume,omitempty"`
	Interruption *InterruptionRecord `json:"interruption,omitempty"`
	Error        ErrorKind           `json:"-"`
	ErrorName    string              `json:"error,omitempty"`
}

func Idle() State { return State{Phase: PhaseIdle} }

func Recording(target string) State { return State{Phase: PhaseRecording, Target: target} }

func Processing(target string) State { return State{Phase: PhaseProcessing, Target: target} }

func Ready(target string) State { return State{Phase: PhaseReady, Target: target} }

func Playing(target string, repetition, repetitions int, progress float64) State {
	return State{Phase: PhasePlaying, Target: target, Repetition: repetition, Repetitions: repetitions, Progress: progress}
}

func IntervalWait(target string, repetition, repetitions int, progress float64) State {
	return State{Phase: PhaseIntervalWait, Target: target, Repetition: repetition, Repetitions: repetitions, Progress: progress}
}

// Paused wraps the playback sub-state it will resume into.
func Paused(resume State) State {
	r := resume
	return State{Phase: PhasePaused, Target: resume.Target, Repetition: resume.Repetition, Repetitions: resume.Repetitions, Resume: &r}
}

func Interrupted(record InterruptionRecord) State {
	r := record
	return State{Phase: PhaseInterrupted, Target: record.Target, Interruption: &r}
}

func Failed(target string, kind ErrorKind) State {
	return State{Phase: PhaseError, Target: target, Error: kind, ErrorName: kind.String()}
}

// IsPlayback reports whether the state is actively producing or waiting
// between repetitions.
func (s State) IsPlayback() bool {
	return s.Phase == PhasePlaying || s.Phase == PhaseIntervalWait
}

// Equal compares two states including the paused sub-state.
func (s State) Equal(o State) bool {
	if s.Phase != o.Phase || s.Target != o.Target || s.Repetition != o.Repetition ||
		s.Repetitions != o.Repetitions || s.Progress != o.Progress || s.Error != o.Error {
		return false
	}
	if (s.Resume == nil) != (o.Resume == nil) {
		return false
	}
	if s.Resume != nil && !s.Resume.Equal(*o.Resume) {
		return false
	}
	return true
}

func (s State) String() string {
	switch s.Phase {
	case PhasePlaying, PhaseIntervalWait:
		return fmt.Sprintf("%s(%d/%d, %.3f)", s.Phase, s.Repetition, s.Repetitions, s.Progress)
	case PhasePaused:
		if s.Resume != nil {
			return fmt.Sprintf("paused(%s)", s.Resume)
		}
	case PhaseError:
		return fmt.Sprintf("error(%s)", s.Error)
	}
	return s.Phase.String()
}

// AssetView is the read-only asset metadata published with snapshots.
type AssetView struct {
	Target   string  `json:"target"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	Valid    bool    `json:"valid"`
}

// Snapshot is an immutable view of the coordinator published to the UI.
type Snapshot struct {
	Sequence uint64 `json:"sequence"`
	State    State  `json:"state"`
	// Level is the voice-activity level (0..1) while Recording.
	Level float64 `json:"level"`
	// Levels is the recent level history, oldest first.
	Levels []float64 `json:"levels,omitempty"`
	// Elapsed is the capture duration while Recording or Interrupted.
	Elapsed       time.Duration `json:"elapsed"`
	Asset         *AssetView    `json:"asset,omitempty"`
	Transcript    string        `json:"transcript,omitempty"`
	PrivateOutput bool          `json:"privateOutput"`
	At            time.Time     `json:"at"`
}

// InterruptionEvent is emitted by the interruption monitor.
type InterruptionEvent struct {
	Began bool
	Cause InterruptionCause
	At    time.Time
}

// RouteChange is emitted when the audio output route changes.
type RouteChange struct {
	PrivateOutputAttached bool
	Reason                string
	At                    time.Time
}
