// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_coordinator

import (
	"context"
	"errors"
	"time"

	internal_audio "github.com/affirmai/engine/api/engine-api/internal/audio"
	internal_interruption "github.com/affirmai/engine/api/engine-api/internal/interruption"
	internal_processing "github.com/affirmai/engine/api/engine-api/internal/processing"
	internal_recovery "github.com/affirmai/engine/api/engine-api/internal/recovery"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/utils"
)

// =============================================================================
// Recording intents
// =============================================================================

func (c *coordinator) StartRecording(ctx context.Context, target string) error {
	if utils.IsEmpty(target) {
		return internal_type.NewError(internal_type.KindInvalidState, "coordinator.start_recording", "", errors.New("target is required"))
	}
	// preconditions run on the caller's goroutine; no state changes on failure
	ok, err := c.deps.Permission.MicrophoneAuthorized(ctx)
	if err != nil {
		return internal_type.NewError(internal_type.KindPermissionDenied, "coordinator.start_recording", target, err)
	}
	if !ok {
		return internal_type.NewError(internal_type.KindPermissionDenied, "coordinator.start_recording", target, nil)
	}
	if err := c.deps.Files.EnsureSpace(ctx, c.assetRoot); err != nil {
		return err
	}
	return c.do(ctx, func() error { return c.startRecording(target) })
}

func (c *coordinator) startRecording(target string) error {
	if c.state.Phase == internal_type.PhaseInterrupted {
		return internal_type.NewError(internal_type.KindInvalidState, "coordinator.start_recording", target, errors.New("an interrupted recording is awaiting a decision"))
	}
	c.stopActive()

	stream, err := c.deps.Capture.OpenCapture(c.ctx)
	if err != nil {
		c.logger.Errorf("failed to open capture for %s: %v", target, err)
		return internal_type.NewError(internal_type.KindUnknown, "coordinator.start_recording", target, err)
	}
	cs := &captureSession{
		name:     target,
		started:  time.Now(),
		recorder: c.newRecorder(),
	}
	cs.recorder.Start()
	c.attachCapture(cs, stream)
	c.active = cs
	c.asset = nil
	c.transcript = ""
	c.setState(internal_type.Recording(target))
	return nil
}

// attachCapture pumps device frames into the loop until the stream ends.
func (c *coordinator) attachCapture(cs *captureSession, stream internal_type.CaptureStream) {
	cs.stream = stream
	utils.Go(c.ctx, func() {
		for frame := range stream.Frames() {
			f := frame
			c.post(func() { c.onFrame(cs, stream, f) })
		}
		c.post(func() { c.onCaptureEnded(cs, stream) })
	})
}

func (c *coordinator) onFrame(cs *captureSession, stream internal_type.CaptureStream, frame []byte) {
	if c.active != cs || cs.stream != stream || c.state.Phase != internal_type.PhaseRecording {
		return
	}
	if err := cs.recorder.Record(c.ctx, frame); err != nil {
		c.logger.Warnf("dropping capture frame: %v", err)
		return
	}
	cs.level = internal_audio.Level(internal_audio.RMS(frame))
}

// onCaptureEnded handles a device that stops delivering on its own; what was
// captured so far is processed rather than dropped.
func (c *coordinator) onCaptureEnded(cs *captureSession, stream internal_type.CaptureStream) {
	if c.active != cs || cs.stream != stream || c.state.Phase != internal_type.PhaseRecording {
		return
	}
	c.logger.Warnf("capture device ended the stream for %s, saving what was captured", cs.name)
	c.finishCapture(cs)
}

func (c *coordinator) StopRecording(ctx context.Context) error {
	return c.do(ctx, func() error {
		cs, ok := c.active.(*captureSession)
		if !ok || c.state.Phase != internal_type.PhaseRecording {
			return internal_type.NewError(internal_type.KindInvalidState, "coordinator.stop_recording", c.state.Target, errors.New("not recording"))
		}
		c.finishCapture(cs)
		return nil
	})
}

// stopActive releases whatever session holds the hardware. A capture is
// saved, a playback returns to Ready.
func (c *coordinator) stopActive() {
	switch s := c.active.(type) {
	case *captureSession:
		c.logger.Infof("implicitly stopping recording of %s", s.name)
		c.finishCapture(s)
	case *playbackSession:
		c.logger.Infof("implicitly stopping playback of %s", s.name)
		c.stopPlayback(s)
	}
}

// finishCapture releases the device and hands the capture to the pipeline.
func (c *coordinator) finishCapture(cs *captureSession) {
	cs.release()
	c.active = nil
	pcm, err := cs.recorder.Persist()
	if err != nil {
		c.logger.Warnf("nothing was captured for %s: %v", cs.name, err)
		c.setState(internal_type.Failed(cs.name, internal_type.KindNoRecording))
		return
	}
	c.logger.Infof("capture of %s finished: %.2fs of audio over %s",
		cs.name, cs.recorder.Duration().Seconds(), time.Since(cs.started).Round(time.Millisecond))
	rc := &retainedCapture{pcm: pcm}
	c.retained[cs.name] = rc
	c.process(cs.name, rc)
}

// =============================================================================
// Processing
// =============================================================================

// processed is what a pipeline run hands back to the loop. On failure prior
// is the asset still on disk for the target, if any.
type processed struct {
	gen        uint64
	target     string
	rc         *retainedCapture
	res        *internal_processing.Result
	err        error
	wav        []byte
	prior      *internal_type.AssetView
	transcript string
}

// process runs the pipeline in the background. Only the newest job drives
// published state; an older one still writes its asset.
func (c *coordinator) process(target string, rc *retainedCapture) {
	c.generation++
	gen := c.generation
	c.processing = gen
	c.setState(internal_type.Processing(target))

	job := internal_processing.Job{Target: target, PCM: rc.pcm, Config: c.audioConfig}
	utils.Go(c.ctx, func() {
		out := processed{gen: gen, target: target, rc: rc}
		out.res, out.err = c.deps.Pipeline.Process(c.ctx, job)
		switch {
		case out.err != nil:
			if prior, err := c.deps.Assets.Get(c.ctx, target); err == nil {
				out.prior = prior.View()
				if script, sErr := c.deps.Scripts.Get(c.ctx, target); sErr == nil {
					out.transcript = script.TranscribedText
				}
			}
		case c.transcribeOnSave:
			if b, err := c.deps.Files.ReadFile(c.ctx, out.res.Asset.Path); err == nil {
				out.wav = b
			} else {
				c.logger.Warnf("cannot read %s for transcription: %v", out.res.Asset.Path, err)
			}
		}
		c.post(func() { c.onProcessed(out) })
	})
}

func (c *coordinator) onProcessed(out processed) {
	target := out.target
	current := c.state.Phase == internal_type.PhaseProcessing && c.processing == out.gen
	if out.err != nil {
		c.logger.Errorf("processing failed for %s: %v", target, out.err)
		if current {
			c.asset = out.prior
			c.transcript = out.transcript
			c.setState(internal_type.Failed(target, internal_type.KindProcessingFailed))
		}
		return
	}

	if c.retained[target] == out.rc {
		delete(c.retained, target)
	}
	// the audio changed, so no earlier transcript may land on it
	c.cancelTranscription(target)
	asset := out.res.Asset
	c.write("apply_recording", target, func(ctx context.Context) error {
		return c.deps.Scripts.ApplyRecording(ctx, target, asset.Path, asset.Duration)
	})
	if out.wav != nil {
		c.startTranscription(target, c.defaultLanguage, out.wav)
	}
	if !current {
		c.logger.Infof("background processing finished for %s", target)
		return
	}
	c.asset = asset.View()
	c.transcript = ""
	c.setState(internal_type.Ready(target))
}

func (c *coordinator) RetryProcessing(ctx context.Context, target string) error {
	return c.do(ctx, func() error {
		rc, ok := c.retained[target]
		if !ok {
			return internal_type.NewError(internal_type.KindNoRecording, "coordinator.retry_processing", target, errors.New("no retained capture"))
		}
		switch c.state.Phase {
		case internal_type.PhaseIdle, internal_type.PhaseReady, internal_type.PhaseError:
		default:
			return internal_type.NewError(internal_type.KindInvalidState, "coordinator.retry_processing", target, errors.New(c.state.String()))
		}
		c.process(target, rc)
		return nil
	})
}

// =============================================================================
// Interruptions and recovery
// =============================================================================

func (c *coordinator) onPlatformEvent(ev internal_interruption.Event) {
	if ev.Route != nil {
		c.onRouteChange(*ev.Route)
	}
	if ev.Interruption != nil {
		c.onInterruption(*ev.Interruption)
	}
}

func (c *coordinator) onInterruption(ev internal_type.InterruptionEvent) {
	if !ev.Began {
		// ending an interruption never resumes anything by itself
		c.logger.Infof("interruption (%s) ended in %s", ev.Cause, c.state)
		return
	}
	c.metrics.Interruptions.WithLabelValues(string(ev.Cause), c.state.Phase.String()).Inc()

	switch c.state.Phase {
	case internal_type.PhaseRecording:
		cs := c.active.(*captureSession)
		cs.release()
		record := internal_type.InterruptionRecord{
			Target:           cs.name,
			Cause:            ev.Cause,
			CapturedDuration: cs.recorder.Duration(),
			At:               ev.At,
		}
		c.setState(internal_type.Interrupted(record))
		c.present(record)
	case internal_type.PhasePlaying, internal_type.PhaseIntervalWait:
		c.pause()
	default:
		c.logger.Debugf("interruption (%s) ignored in %s", ev.Cause, c.state)
	}
}

// present shows exactly one prompt for the Interrupted state just entered.
func (c *coordinator) present(record internal_type.InterruptionRecord) {
	d := internal_recovery.NewDecision(record)
	c.decision = d
	c.deps.Presenter.Present(d)
	utils.Go(c.ctx, func() {
		select {
		case choice, ok := <-d.Done():
			if ok {
				c.post(func() { c.resolve(d, choice) })
			}
		case <-c.ctx.Done():
		}
	})
}

func (c *coordinator) resolve(d *internal_recovery.Decision, choice internal_type.Resolution) {
	if c.decision != d || c.state.Phase != internal_type.PhaseInterrupted {
		c.logger.Warnf("ignoring stale recovery decision %s", d.ID())
		return
	}
	c.decision = nil
	c.deps.Presenter.Withdraw(d)
	cs := c.active.(*captureSession)
	c.logger.Infof("recovery for %s resolved: %s", cs.name, choice)

	switch choice {
	case internal_type.ResolutionContinue:
		stream, err := c.deps.Capture.OpenCapture(c.ctx)
		if err != nil {
			c.logger.Errorf("cannot reopen capture for %s, saving partial instead: %v", cs.name, err)
			c.finishCapture(cs)
			return
		}
		cs.recorder.Start()
		c.attachCapture(cs, stream)
		c.setState(internal_type.Recording(cs.name))
	case internal_type.ResolutionSavePartial:
		c.finishCapture(cs)
	case internal_type.ResolutionDiscard:
		c.active = nil
		c.setState(internal_type.Idle())
	}
}

// =============================================================================
// Clock
// =============================================================================

func (c *coordinator) onTick(dt time.Duration) {
	switch c.state.Phase {
	case internal_type.PhaseRecording:
		cs := c.active.(*captureSession)
		cs.sample(cs.level, c.levelHistory)
		c.publish()
	case internal_type.PhasePlaying, internal_type.PhaseIntervalWait:
		c.advance(c.active.(*playbackSession), dt)
	}
}
