// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transcription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/affirmai/engine/pkg/commons"
)

const cachePrefix = "affirm:transcript"

// Cache remembers transcripts of identical audio per language.
type Cache interface {
	Get(ctx context.Context, digest, language string) (string, bool, error)
	Set(ctx context.Context, digest, language, text string) error
}

// Digest identifies audio content independent of its file name.
func Digest(wav []byte) string {
	sum := sha256.Sum256(wav)
	return hex.EncodeToString(sum[:])
}

func cacheKey(digest, language string) string {
	return fmt.Sprintf("%s:%s:%s", cachePrefix, digest, language)
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger commons.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger commons.Logger) Cache {
	return &redisCache{client: client, ttl: ttl, logger: logger}
}

func (c *redisCache) Get(ctx context.Context, digest, language string) (string, bool, error) {
	text, err := c.client.Get(ctx, cacheKey(digest, language)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("transcript cache get: %w", err)
	}
	return text, true, nil
}

func (c *redisCache) Set(ctx context.Context, digest, language, text string) error {
	if err := c.client.Set(ctx, cacheKey(digest, language), text, c.ttl).Err(); err != nil {
		return fmt.Errorf("transcript cache set: %w", err)
	}
	return nil
}

type nopCache struct{}

// NopCache never hits.
func NopCache() Cache { return nopCache{} }

func (nopCache) Get(context.Context, string, string) (string, bool, error) { return "", false, nil }
func (nopCache) Set(context.Context, string, string, string) error         { return nil }
