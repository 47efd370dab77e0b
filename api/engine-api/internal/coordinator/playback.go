// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_coordinator

import (
	"context"
	"errors"
	"math"
	"time"

	internal_asset "github.com/affirmai/engine/api/engine-api/internal/asset"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
)

type playRequest struct {
	asset       *internal_asset.RecordingAsset
	private     bool
	repetitions int
	interval    time.Duration
	transcript  string
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (c *coordinator) Play(ctx context.Context, target string, repetitions int, intervalSeconds float64) error {
	// validation reads the file; keep it off the loop
	asset, err := c.deps.Assets.Get(ctx, target)
	if err != nil {
		return err
	}
	req := playRequest{asset: asset, repetitions: repetitions, interval: seconds(intervalSeconds)}

	script, err := c.deps.Scripts.Get(ctx, target)
	switch {
	case err == nil:
		req.private = script.PrivateModeEnabled
		req.transcript = script.TranscribedText
		if repetitions < 1 {
			req.repetitions = script.Repetitions
		}
		if intervalSeconds < 0 {
			req.interval = seconds(script.IntervalSeconds)
		}
	case internal_type.KindOf(err) == internal_type.KindNoRecording:
		// the asset exists without a script row; play with the given values
	default:
		return err
	}
	if req.repetitions < 1 {
		req.repetitions = 1
	}
	if req.interval < 0 {
		req.interval = 0
	}
	return c.do(ctx, func() error { return c.play(target, req) })
}

func (c *coordinator) play(target string, req playRequest) error {
	if c.state.Phase == internal_type.PhaseInterrupted {
		return internal_type.NewError(internal_type.KindInvalidState, "coordinator.play", target, errors.New("an interrupted recording is awaiting a decision"))
	}
	if req.private && !c.routes.PrivateOutputAttached() {
		return internal_type.NewError(internal_type.KindPrivateModeActive, "coordinator.play", target, nil)
	}
	c.stopActive()

	stream, err := c.deps.Playback.OpenPlayback(c.ctx, req.asset.Path)
	if err != nil {
		c.logger.Errorf("failed to open playback for %s: %v", target, err)
		return internal_type.NewError(internal_type.KindUnknown, "coordinator.play", target, err)
	}
	ps := &playbackSession{
		name:        target,
		asset:       req.asset.View(),
		stream:      stream,
		private:     req.private,
		repetitions: req.repetitions,
		repetition:  1,
		length:      seconds(req.asset.Duration),
		interval:    req.interval,
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return internal_type.NewError(internal_type.KindUnknown, "coordinator.play", target, err)
	}
	c.active = ps
	c.asset = ps.asset
	c.transcript = req.transcript
	c.logger.Infow("playback started",
		"target", target,
		"repetitions", ps.repetitions,
		"interval", ps.interval.Seconds(),
		"length", ps.length.Seconds())
	c.setState(ps.current())
	return nil
}

// advance moves the timeline by dt, carrying the remainder across
// boundaries so a coarse tick never loses time.
func (c *coordinator) advance(ps *playbackSession, dt time.Duration) {
	for dt > 0 {
		if ps.waiting {
			remaining := ps.interval - ps.waited
			if dt < remaining {
				ps.waited += dt
				break
			}
			dt -= remaining
			ps.waiting = false
			ps.waited = 0
			ps.repetition++
			ps.elapsed = 0
			if err := ps.stream.Start(); err != nil {
				c.logger.Warnf("playback restart failed for %s: %v", ps.name, err)
			}
			c.setState(ps.current())
			continue
		}

		remaining := ps.length - ps.elapsed
		if dt < remaining {
			ps.elapsed += dt
			break
		}
		dt -= remaining
		ps.elapsed = ps.length
		if ps.repetition >= ps.repetitions {
			c.finishPlayback(ps)
			return
		}
		// the wait is published even for a zero interval
		ps.waiting = true
		c.setState(ps.current())
	}
	c.setState(ps.current())
}

func (c *coordinator) finishPlayback(ps *playbackSession) {
	ps.release()
	c.active = nil
	c.logger.Infof("playback of %s completed %d repetitions", ps.name, ps.repetitions)
	c.setState(internal_type.Ready(ps.name))
}

func (c *coordinator) stopPlayback(ps *playbackSession) {
	ps.release()
	c.active = nil
	c.setState(internal_type.Ready(ps.name))
}

// pause captures the sub-state exactly; it is a no-op outside playback.
func (c *coordinator) pause() {
	ps, ok := c.active.(*playbackSession)
	if !ok || !c.state.IsPlayback() {
		return
	}
	if !ps.waiting {
		if err := ps.stream.Pause(); err != nil {
			c.logger.Warnf("device pause failed for %s: %v", ps.name, err)
		}
	}
	c.setState(internal_type.Paused(ps.current()))
}

func (c *coordinator) Pause(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.pause()
		return nil
	})
}

func (c *coordinator) Resume(ctx context.Context) error {
	return c.do(ctx, func() error {
		ps, ok := c.active.(*playbackSession)
		if !ok || c.state.Phase != internal_type.PhasePaused {
			return nil
		}
		if ps.private && !c.routes.PrivateOutputAttached() {
			return internal_type.NewError(internal_type.KindPrivateModeActive, "coordinator.resume", ps.name, nil)
		}
		if !ps.waiting {
			if err := ps.stream.Resume(); err != nil {
				c.logger.Warnf("device resume failed for %s: %v", ps.name, err)
			}
		}
		c.setState(*c.state.Resume)
		return nil
	})
}

func (c *coordinator) StopPlayback(ctx context.Context) error {
	return c.do(ctx, func() error {
		ps, ok := c.active.(*playbackSession)
		if !ok {
			return nil
		}
		c.stopPlayback(ps)
		return nil
	})
}

// onRouteChange forces a pause when the private output disappears under a
// private-mode session.
func (c *coordinator) onRouteChange(ev internal_type.RouteChange) {
	ps, ok := c.active.(*playbackSession)
	if ok && ps.private && !ev.PrivateOutputAttached && c.state.IsPlayback() {
		c.logger.Infof("private output removed (%s), pausing %s", ev.Reason, ps.name)
		c.pause()
		return
	}
	c.publish()
}
