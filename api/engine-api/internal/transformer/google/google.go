// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_google

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/utils"
)

// Introduced constants for default values
const (
	DefaultLanguageCode = "en-US" // Default language code for Speech-to-Text
	DefaultModel        = "long"  // Default model used for Speech recognition
)

// googleOption is the primary configuration structure for Google services
type googleOption struct {
	logger       commons.Logger
	clientOptons []option.ClientOption
	mdlOpts      utils.Option
	projectId    string
}

// NewGoogleOption initializes googleOption with provided credentials and model options.
func NewGoogleOption(logger commons.Logger, credential utils.Option, opts utils.Option) (*googleOption, error) {
	co := make([]option.ClientOption, 0)
	var projectID string
	if key, err := credential.GetString("key"); err == nil && key != "" {
		co = append(co, option.WithAPIKey(key))
	}
	if prj, err := credential.GetString("project_id"); err == nil && prj != "" {
		projectID = prj
		co = append(co, option.WithQuotaProject(prj))
	}
	if serviceCrd, err := credential.GetString("service_account_key"); err == nil && serviceCrd != "" {
		co = append(co, option.WithCredentialsJSON([]byte(serviceCrd)))
	}
	return &googleOption{
		logger:       logger,
		mdlOpts:      opts,
		clientOptons: co,
		projectId:    projectID,
	}, nil
}

// GetClientOptions returns all configured Google API client options.
func (gO *googleOption) GetClientOptions() []option.ClientOption {
	return gO.clientOptons
}

// RecognitionConfig builds a batch recognition config. The asset is a WAV
// file so the header carries the encoding; language falls back to the
// configured default, then to DefaultLanguageCode.
func (gog *googleOption) RecognitionConfig(language string) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		DecodingConfig: &speechpb.RecognitionConfig_AutoDecodingConfig{
			AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
		},
		Features: &speechpb.RecognitionFeatures{
			EnableAutomaticPunctuation: true,
		},
		LanguageCodes: []string{DefaultLanguageCode},
		Model:         DefaultModel,
	}

	if language == "" {
		if l, err := gog.mdlOpts.GetString("listen.language"); err == nil {
			language = l
		}
	}
	if language != "" {
		codes := strings.Split(language, commons.SEPARATOR)
		nonEmptyCodes := []string{}
		for _, code := range codes {
			code = strings.TrimSpace(code)
			if code != "" {
				nonEmptyCodes = append(nonEmptyCodes, code)
			}
		}
		if len(nonEmptyCodes) > 0 {
			cfg.LanguageCodes = nonEmptyCodes
		}
	} else {
		gog.logger.Warn("Language not specified, defaulting to " + DefaultLanguageCode)
	}

	if model, err := gog.mdlOpts.GetString("listen.model"); err == nil && model != "" {
		cfg.Model = model
	}
	return cfg
}

func (gog *googleOption) GetRecognizer() string {
	if region, err := gog.mdlOpts.GetString("listen.region"); err == nil && region != "" {
		if region != "global" {
			return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", gog.projectId, region)
		}
	}
	return fmt.Sprintf("projects/%s/locations/global/recognizers/_", gog.projectId)
}

func (gog *googleOption) GetSpeechToTextClientOptions() []option.ClientOption {
	if region, err := gog.mdlOpts.GetString("listen.region"); err == nil && region != "" {
		if region != "global" {
			return append(gog.clientOptons, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:443", region)))
		}
	}
	return gog.clientOptons
}

// RecognizeRequest wraps a WAV file into a synchronous recognize call.
func (gog *googleOption) RecognizeRequest(wav []byte, language string) *speechpb.RecognizeRequest {
	return &speechpb.RecognizeRequest{
		Recognizer:  gog.GetRecognizer(),
		Config:      gog.RecognitionConfig(language),
		AudioSource: &speechpb.RecognizeRequest_Content{Content: wav},
	}
}

type googleTranscriber struct {
	*googleOption
	client *speech.Client
}

// NewGoogleTranscriber dials Speech-to-Text v2.
func NewGoogleTranscriber(ctx context.Context, logger commons.Logger, credential utils.Option, opts utils.Option) (internal_type.Transcriber, error) {
	gOpt, err := NewGoogleOption(logger, credential, opts)
	if err != nil {
		return nil, err
	}
	client, err := speech.NewClient(ctx, gOpt.GetSpeechToTextClientOptions()...)
	if err != nil {
		logger.Errorf("google-stt: failed to create client: %v", err)
		return nil, fmt.Errorf("google-stt: failed to create client: %w", err)
	}
	return &googleTranscriber{googleOption: gOpt, client: client}, nil
}

func (g *googleTranscriber) Name() string {
	return "google"
}

func (g *googleTranscriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	resp, err := g.client.Recognize(ctx, g.RecognizeRequest(wav, language))
	if err != nil {
		return "", fmt.Errorf("google-stt: recognize failed: %w", err)
	}
	return JoinResults(resp), nil
}

func (g *googleTranscriber) Close() error {
	return g.client.Close()
}

// JoinResults concatenates the top alternative of every result.
func JoinResults(resp *speechpb.RecognizeResponse) string {
	parts := make([]string, 0, len(resp.GetResults()))
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
