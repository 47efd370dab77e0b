// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package engine_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/affirmai/engine/api/engine-api/config"
	internal_device "github.com/affirmai/engine/api/engine-api/internal/audio/device"
	internal_coordinator "github.com/affirmai/engine/api/engine-api/internal/coordinator"
	internal_interruption "github.com/affirmai/engine/api/engine-api/internal/interruption"
	internal_recovery "github.com/affirmai/engine/api/engine-api/internal/recovery"
	internal_script "github.com/affirmai/engine/api/engine-api/internal/script"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
)

// EngineApi is the local control surface the UI process talks to. It never
// touches the audio session directly; every intent goes to the coordinator.
type EngineApi struct {
	cfg         *config.AppConfig
	logger      commons.Logger
	coordinator internal_coordinator.Coordinator
	scripts     internal_script.Store
	mailbox     *internal_recovery.Mailbox
	system      *internal_interruption.ChannelSource
	bridge      *internal_device.Bridge
}

func NewEngineApi(
	cfg *config.AppConfig,
	logger commons.Logger,
	coordinator internal_coordinator.Coordinator,
	scripts internal_script.Store,
	mailbox *internal_recovery.Mailbox,
	system *internal_interruption.ChannelSource,
	bridge *internal_device.Bridge,
) *EngineApi {
	return &EngineApi{
		cfg:         cfg,
		logger:      logger,
		coordinator: coordinator,
		scripts:     scripts,
		mailbox:     mailbox,
		system:      system,
		bridge:      bridge,
	}
}

// StatusOf maps an engine error to the HTTP status the UI acts on.
func StatusOf(err error) int {
	switch internal_type.KindOf(err) {
	case internal_type.KindPrivateModeActive, internal_type.KindInvalidState:
		return http.StatusConflict
	case internal_type.KindPermissionDenied:
		return http.StatusForbidden
	case internal_type.KindInsufficientDiskSpace:
		return http.StatusInsufficientStorage
	case internal_type.KindNoRecording, internal_type.KindFileNotFound:
		return http.StatusNotFound
	case internal_type.KindFileCorrupted:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, internal_coordinator.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (e *EngineApi) fail(c *gin.Context, op string, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		e.logger.Errorf("%s failed: %v", op, err)
	} else {
		e.logger.Debugf("%s rejected: %v", op, err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"kind":    internal_type.KindOf(err).String(),
		"error":   err.Error(),
	})
}

func (e *EngineApi) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}

// accepted answers an intent with the snapshot it produced.
func (e *EngineApi) accepted(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "snapshot": e.coordinator.Snapshot()})
}
