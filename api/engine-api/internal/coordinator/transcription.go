// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_coordinator

import (
	"context"
	"errors"

	internal_transcription "github.com/affirmai/engine/api/engine-api/internal/transcription"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
)

// onTranscript runs on the transcription worker and hands the result to the
// loop.
func (c *coordinator) onTranscript(res internal_transcription.Result) {
	c.post(func() { c.applyTranscript(res) })
}

// applyTranscript accepts only the result of the job the loop last started
// for the target. The script write is queued behind every earlier one.
func (c *coordinator) applyTranscript(res internal_transcription.Result) {
	if token, ok := c.transcribing[res.Target]; !ok || token != res.Token {
		c.logger.Debugf("dropping stale transcription for %s (%s)", res.Target, res.Language)
		return
	}
	delete(c.transcribing, res.Target)
	if res.Err != nil {
		c.logger.Warnf("transcription for %s (%s) not applied: %v", res.Target, res.Language, res.Err)
		return
	}
	c.write("apply_transcript", res.Target, func(ctx context.Context) error {
		return c.deps.Scripts.ApplyTranscript(ctx, res.Target, res.Text, res.Language)
	})
	if c.asset == nil || c.asset.Target != res.Target {
		return
	}
	c.transcript = res.Text
	c.publish()
}

func (c *coordinator) startTranscription(target, language string, wav []byte) {
	if token := c.transcripts.Start(c.ctx, target, language, wav); token != 0 {
		c.transcribing[target] = token
	}
}

// cancelTranscription drops any in-flight job for target, including a result
// already queued on the loop.
func (c *coordinator) cancelTranscription(target string) {
	c.transcripts.Cancel(target)
	delete(c.transcribing, target)
}

// RequestTranscription transcribes the target's current asset. An earlier
// job for the same target is superseded.
func (c *coordinator) RequestTranscription(ctx context.Context, target, language string) error {
	if c.deps.Transcriber == nil {
		return internal_type.NewError(internal_type.KindTranscriptionFailed, "coordinator.request_transcription", target, errors.New("transcription is disabled"))
	}
	asset, err := c.deps.Assets.Get(ctx, target)
	if err != nil {
		return err
	}
	if language == "" {
		if script, sErr := c.deps.Scripts.Get(ctx, target); sErr == nil && script.TranscriptionLanguage != "" {
			language = script.TranscriptionLanguage
		} else {
			language = c.defaultLanguage
		}
	}
	wav, err := c.deps.Files.ReadFile(ctx, asset.Path)
	if err != nil {
		return err
	}
	c.logger.Infof("transcription requested for %s in %s", target, language)
	return c.do(ctx, func() error {
		c.startTranscription(target, language, wav)
		return nil
	})
}

// DeleteRecording removes the target's asset. A playback of the target is
// stopped first; a capture or processing run for it must finish first.
func (c *coordinator) DeleteRecording(ctx context.Context, target string) error {
	err := c.do(ctx, func() error {
		if c.state.Target == target {
			switch c.state.Phase {
			case internal_type.PhaseRecording, internal_type.PhaseInterrupted, internal_type.PhaseProcessing:
				return internal_type.NewError(internal_type.KindInvalidState, "coordinator.delete_recording", target, errors.New(c.state.String()))
			}
		}
		if ps, ok := c.active.(*playbackSession); ok && ps.name == target {
			c.stopPlayback(ps)
		}
		c.cancelTranscription(target)
		return nil
	})
	if err != nil {
		return err
	}

	if err := c.deps.Assets.Delete(ctx, target); err != nil {
		return err
	}

	return c.do(ctx, func() error {
		c.write("clear_recording", target, func(ctx context.Context) error {
			return c.deps.Scripts.ClearRecording(ctx, target)
		})
		delete(c.retained, target)
		if c.asset != nil && c.asset.Target == target {
			c.asset = nil
			c.transcript = ""
		}
		if c.state.Target == target && (c.state.Phase == internal_type.PhaseReady || c.state.Phase == internal_type.PhaseError) {
			c.setState(internal_type.Idle())
			return nil
		}
		c.publish()
		return nil
	})
}
