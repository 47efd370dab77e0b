// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_deepgram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/utils"
)

const (
	DefaultBaseURL  = "https://api.deepgram.com"
	DefaultModel    = "nova-2"
	DefaultLanguage = "en-US"
)

type deepgramOption struct {
	logger  commons.Logger
	key     string
	baseURL string
	mdlOpts utils.Option
}

// ListenOptions are the query parameters of a pre-recorded /v1/listen call.
type ListenOptions struct {
	Model       string
	Language    string
	SmartFormat bool
	Punctuate   bool
}

func (l ListenOptions) Query() map[string]string {
	return map[string]string{
		"model":        l.Model,
		"language":     l.Language,
		"smart_format": strconv.FormatBool(l.SmartFormat),
		"punctuate":    strconv.FormatBool(l.Punctuate),
	}
}

func NewDeepgramOption(logger commons.Logger, credential utils.Option, opts utils.Option) (*deepgramOption, error) {
	key, err := credential.GetString("key")
	if err != nil || key == "" {
		return nil, fmt.Errorf("deepgram: illegal vault config, key is required")
	}
	baseURL, _ := credential.GetString("base_url")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &deepgramOption{logger: logger, key: key, baseURL: baseURL, mdlOpts: opts}, nil
}

func (d *deepgramOption) GetKey() string {
	return d.key
}

func (d *deepgramOption) SpeechToTextOptions(language string) ListenOptions {
	opts := ListenOptions{
		Model:       DefaultModel,
		Language:    DefaultLanguage,
		SmartFormat: true,
		Punctuate:   true,
	}
	if model, err := d.mdlOpts.GetString("listen.model"); err == nil && model != "" {
		opts.Model = model
	}
	if language == "" {
		if l, err := d.mdlOpts.GetString("listen.language"); err == nil {
			language = l
		}
	}
	if language != "" {
		opts.Language = language
	}
	return opts
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type deepgramTranscriber struct {
	*deepgramOption
	client *resty.Client
}

func NewDeepgramTranscriber(logger commons.Logger, credential utils.Option, opts utils.Option) (internal_type.Transcriber, error) {
	dOpt, err := NewDeepgramOption(logger, credential, opts)
	if err != nil {
		return nil, err
	}
	client := resty.New().
		SetBaseURL(dOpt.baseURL).
		SetTimeout(60*time.Second).
		SetHeader("Authorization", "Token "+dOpt.key)
	return &deepgramTranscriber{deepgramOption: dOpt, client: client}, nil
}

func (d *deepgramTranscriber) Name() string {
	return "deepgram"
}

func (d *deepgramTranscriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	var out listenResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "audio/wav").
		SetQueryParams(d.SpeechToTextOptions(language).Query()).
		SetBody(wav).
		SetResult(&out).
		Post("/v1/listen")
	if err != nil {
		return "", fmt.Errorf("deepgram-stt: request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("deepgram-stt: unexpected status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if len(out.Results.Channels) == 0 || len(out.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Results.Channels[0].Alternatives[0].Transcript), nil
}
