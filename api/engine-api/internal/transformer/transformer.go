// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer

import (
	"context"
	"fmt"

	internal_transformer_deepgram "github.com/affirmai/engine/api/engine-api/internal/transformer/deepgram"
	internal_transformer_google "github.com/affirmai/engine/api/engine-api/internal/transformer/google"
	internal_transformer_openai "github.com/affirmai/engine/api/engine-api/internal/transformer/openai"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/configs"
	"github.com/affirmai/engine/pkg/utils"
)

type TranscriberIdentifier string

const (
	NONE     TranscriberIdentifier = "none"
	GOOGLE   TranscriberIdentifier = "google"
	OPENAI   TranscriberIdentifier = "openai"
	DEEPGRAM TranscriberIdentifier = "deepgram"
)

func credentials(cfg configs.TranscriptionConfig) utils.Option {
	return utils.Option{
		"key":                 cfg.APIKey,
		"project_id":          cfg.Project,
		"service_account_key": cfg.CredentialsJSON,
	}
}

func modelOptions(cfg configs.TranscriptionConfig, language string) utils.Option {
	return utils.Option{
		"listen.language": language,
		"listen.model":    cfg.Model,
		"listen.region":   cfg.Region,
	}
}

// GetTranscriber returns the configured provider, or nil for NONE.
func GetTranscriber(ctx context.Context, logger commons.Logger, cfg configs.TranscriptionConfig, defaultLanguage string) (internal_type.Transcriber, error) {
	switch TranscriberIdentifier(cfg.Provider) {
	case GOOGLE:
		return internal_transformer_google.NewGoogleTranscriber(ctx, logger, credentials(cfg), modelOptions(cfg, defaultLanguage))
	case OPENAI:
		return internal_transformer_openai.NewOpenAITranscriber(logger, credentials(cfg), modelOptions(cfg, defaultLanguage))
	case DEEPGRAM:
		return internal_transformer_deepgram.NewDeepgramTranscriber(logger, credentials(cfg), modelOptions(cfg, defaultLanguage))
	case NONE, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("illegal transcription provider %q", cfg.Provider)
	}
}
