// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio_recorder

import (
	internal_audio "github.com/affirmai/engine/api/engine-api/internal/audio"
	internal_recorder "github.com/affirmai/engine/api/engine-api/internal/audio/recorder/internal"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
)

// GetRecorder returns a fresh capture recorder for one capture session.
func GetRecorder(logger commons.Logger, config internal_audio.AudioConfig) internal_type.Recorder {
	return internal_recorder.NewCaptureRecorder(logger, config)
}
