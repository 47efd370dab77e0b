// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package engine_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	internal_script "github.com/affirmai/engine/api/engine-api/internal/script"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
)

type scriptRequest struct {
	Text                  string  `json:"text"`
	PrivateModeEnabled    bool    `json:"privateModeEnabled"`
	Repetitions           int     `json:"repetitions" binding:"omitempty,min=1,max=100"`
	IntervalSeconds       float64 `json:"intervalSeconds" binding:"min=0,max=600"`
	TranscriptionLanguage string  `json:"transcriptionLanguage" binding:"omitempty,bcp47_language_tag"`
}

// @Router /v1/scripts/:id [get]
func (e *EngineApi) GetScript(c *gin.Context) {
	script, err := e.scripts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		e.fail(c, "get script", err)
		return
	}
	c.JSON(http.StatusOK, script)
}

// SaveScript upserts the user-editable fields. Audio and transcript fields
// are owned by the engine and kept as they are.
//
// @Router /v1/scripts/:id [put]
func (e *EngineApi) SaveScript(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		e.badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	script, err := e.scripts.Get(ctx, id)
	if err != nil {
		if internal_type.KindOf(err) != internal_type.KindNoRecording {
			e.fail(c, "save script", err)
			return
		}
		script = &internal_script.Script{Id: id}
	}
	script.Text = req.Text
	script.PrivateModeEnabled = req.PrivateModeEnabled
	script.Repetitions = req.Repetitions
	script.IntervalSeconds = req.IntervalSeconds
	if req.TranscriptionLanguage != "" {
		script.TranscriptionLanguage = req.TranscriptionLanguage
	}
	saved, err := e.scripts.Save(ctx, script)
	if err != nil {
		e.fail(c, "save script", err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
