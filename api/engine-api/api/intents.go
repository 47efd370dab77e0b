// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package engine_api

import (
	"github.com/gin-gonic/gin"
)

type playRequest struct {
	Repetitions int `json:"repetitions" binding:"omitempty,min=1,max=100"`
	// nil uses the script's stored interval
	IntervalSeconds *float64 `json:"intervalSeconds" binding:"omitempty,min=0,max=600"`
}

type transcriptionRequest struct {
	Language string `json:"language" binding:"omitempty,bcp47_language_tag"`
}

// @Router /v1/recordings/:target/start [post]
func (e *EngineApi) StartRecording(c *gin.Context) {
	if err := e.coordinator.StartRecording(c.Request.Context(), c.Param("target")); err != nil {
		e.fail(c, "start recording", err)
		return
	}
	e.accepted(c)
}

// @Router /v1/recordings/stop [post]
func (e *EngineApi) StopRecording(c *gin.Context) {
	if err := e.coordinator.StopRecording(c.Request.Context()); err != nil {
		e.fail(c, "stop recording", err)
		return
	}
	e.accepted(c)
}

// @Router /v1/recordings/:target/retry [post]
func (e *EngineApi) RetryProcessing(c *gin.Context) {
	if err := e.coordinator.RetryProcessing(c.Request.Context(), c.Param("target")); err != nil {
		e.fail(c, "retry processing", err)
		return
	}
	e.accepted(c)
}

// @Router /v1/recordings/:target [delete]
func (e *EngineApi) DeleteRecording(c *gin.Context) {
	if err := e.coordinator.DeleteRecording(c.Request.Context(), c.Param("target")); err != nil {
		e.fail(c, "delete recording", err)
		return
	}
	e.accepted(c)
}

// @Router /v1/recordings/:target/transcription [post]
func (e *EngineApi) RequestTranscription(c *gin.Context) {
	var req transcriptionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			e.badRequest(c, err)
			return
		}
	}
	if err := e.coordinator.RequestTranscription(c.Request.Context(), c.Param("target"), req.Language); err != nil {
		e.fail(c, "request transcription", err)
		return
	}
	e.accepted(c)
}

// @Router /v1/playback/:target/play [post]
func (e *EngineApi) Play(c *gin.Context) {
	var req playRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			e.badRequest(c, err)
			return
		}
	}
	interval := -1.0
	if req.IntervalSeconds != nil {
		interval = *req.IntervalSeconds
	}
	if err := e.coordinator.Play(c.Request.Context(), c.Param("target"), req.Repetitions, interval); err != nil {
		e.fail(c, "play", err)
		return
	}
	e.accepted(c)
}

// @Router /v1/playback/pause [post]
func (e *EngineApi) Pause(c *gin.Context) {
	if err := e.coordinator.Pause(c.Request.Context()); err != nil {
		e.fail(c, "pause", err)
		return
	}
	e.accepted(c)
}

// @Router /v1/playback/resume [post]
func (e *EngineApi) Resume(c *gin.Context) {
	if err := e.coordinator.Resume(c.Request.Context()); err != nil {
		e.fail(c, "resume", err)
		return
	}
	e.accepted(c)
}

// @Router /v1/playback/stop [post]
func (e *EngineApi) StopPlayback(c *gin.Context) {
	if err := e.coordinator.StopPlayback(c.Request.Context()); err != nil {
		e.fail(c, "stop playback", err)
		return
	}
	e.accepted(c)
}
