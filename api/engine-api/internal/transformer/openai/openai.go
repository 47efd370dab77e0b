// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/utils"
)

const DefaultModel = openai.AudioModelWhisper1

type openaiOption struct {
	logger  commons.Logger
	key     string
	baseURL string
	mdlOpts utils.Option
}

// NewOpenAIOption reads the api key (required) and optional base url.
func NewOpenAIOption(logger commons.Logger, credential utils.Option, opts utils.Option) (*openaiOption, error) {
	key, err := credential.GetString("key")
	if err != nil || key == "" {
		return nil, fmt.Errorf("openai: illegal vault config, key is required")
	}
	baseURL, _ := credential.GetString("base_url")
	return &openaiOption{logger: logger, key: key, baseURL: baseURL, mdlOpts: opts}, nil
}

func (o *openaiOption) GetKey() string {
	return o.key
}

func (o *openaiOption) GetModel() openai.AudioModel {
	if model, err := o.mdlOpts.GetString("listen.model"); err == nil && model != "" {
		return openai.AudioModel(model)
	}
	return DefaultModel
}

// Language converts a BCP-47 tag to the ISO-639-1 code Whisper expects.
func Language(language string) string {
	language = strings.TrimSpace(language)
	if i := strings.IndexAny(language, "-_"); i > 0 {
		language = language[:i]
	}
	return strings.ToLower(language)
}

func (o *openaiOption) ClientOptions() []option.RequestOption {
	opts := []option.RequestOption{option.WithAPIKey(o.key)}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}
	return opts
}

type openaiTranscriber struct {
	*openaiOption
	client openai.Client
}

func NewOpenAITranscriber(logger commons.Logger, credential utils.Option, opts utils.Option, extra ...option.RequestOption) (internal_type.Transcriber, error) {
	oOpt, err := NewOpenAIOption(logger, credential, opts)
	if err != nil {
		return nil, err
	}
	client := openai.NewClient(append(oOpt.ClientOptions(), extra...)...)
	return &openaiTranscriber{openaiOption: oOpt, client: client}, nil
}

func (o *openaiTranscriber) Name() string {
	return "openai"
}

func (o *openaiTranscriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "recording.wav", "audio/wav"),
		Model: o.GetModel(),
	}
	if lang := Language(language); lang != "" {
		params.Language = openai.String(lang)
	}
	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai-stt: transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
