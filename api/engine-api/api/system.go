// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package engine_api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	internal_device "github.com/affirmai/engine/api/engine-api/internal/audio/device"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
)

type interruptionRequest struct {
	Began *bool  `json:"began" binding:"required"`
	Cause string `json:"cause" binding:"omitempty,oneof=call other"`
}

type routeRequest struct {
	PrivateOutputAttached *bool  `json:"privateOutputAttached" binding:"required"`
	Reason                string `json:"reason"`
}

type permissionRequest struct {
	Authorized *bool `json:"authorized" binding:"required"`
}

// Interruption is posted by the platform bridge when the OS audio session is
// interrupted or the interruption ends.
//
// @Router /v1/system/interruptions [post]
func (e *EngineApi) Interruption(c *gin.Context) {
	var req interruptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		e.badRequest(c, err)
		return
	}
	cause := internal_type.CauseOther
	if req.Cause != "" {
		cause = internal_type.InterruptionCause(req.Cause)
	}
	if err := e.system.Interruption(c.Request.Context(), *req.Began, cause); err != nil {
		e.fail(c, "interruption", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// @Router /v1/system/route [post]
func (e *EngineApi) Route(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		e.badRequest(c, err)
		return
	}
	if err := e.system.Route(c.Request.Context(), *req.PrivateOutputAttached, req.Reason); err != nil {
		e.fail(c, "route", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// @Router /v1/system/permission [post]
func (e *EngineApi) Permission(c *gin.Context) {
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		e.badRequest(c, err)
		return
	}
	e.bridge.SetMicrophoneAuthorized(*req.Authorized)
	c.JSON(http.StatusOK, gin.H{"success": true, "authorized": *req.Authorized})
}

// CaptureFrames receives microphone PCM from the platform bridge as binary
// websocket messages. Frames sent while nothing is recording are dropped.
//
// @Router /v1/bridge/capture [get]
func (e *EngineApi) CaptureFrames(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		e.logger.Errorf("capture bridge upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	dropped := 0
	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			if dropped > 0 {
				e.logger.Debugf("capture bridge closed, %d frames arrived outside a capture", dropped)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if err := e.bridge.PushFrame(frame); err != nil {
			if errors.Is(err, internal_device.ErrNoActiveCapture) {
				dropped++
				continue
			}
			e.logger.Warnf("capture frame rejected: %v", err)
		}
	}
}

// PlaybackCommands streams render commands to the platform bridge.
//
// @Router /v1/bridge/playback [get]
func (e *EngineApi) PlaybackCommands(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		e.logger.Errorf("playback bridge upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	commands := e.bridge.Commands()
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case cmd := <-commands:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(cmd); err != nil {
				e.logger.Warnf("playback bridge write failed, command %s for %s lost: %v", cmd.Action, cmd.Session, err)
				return
			}
		}
	}
}
