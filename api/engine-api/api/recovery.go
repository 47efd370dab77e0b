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

	internal_recovery "github.com/affirmai/engine/api/engine-api/internal/recovery"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
)

type resolveRequest struct {
	Id         string `json:"id" binding:"required"`
	Resolution string `json:"resolution" binding:"required,oneof=continue save_partial discard"`
}

// @Router /v1/recovery [get]
func (e *EngineApi) GetRecovery(c *gin.Context) {
	d := e.mailbox.Pending()
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no recovery decision is pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": d.ID(), "record": d.Record()})
}

// @Router /v1/recovery [post]
func (e *EngineApi) ResolveRecovery(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		e.badRequest(c, err)
		return
	}
	d := e.mailbox.Pending()
	if d == nil || d.ID() != req.Id {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "decision is no longer pending"})
		return
	}
	if err := d.Resolve(internal_type.Resolution(req.Resolution)); err != nil {
		if errors.Is(err, internal_recovery.ErrAlreadyResolved) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
			return
		}
		e.badRequest(c, err)
		return
	}
	e.logger.Infof("recovery decision %s resolved as %s", req.Id, req.Resolution)
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}
