// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_script

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/connectors"
)

// Script is the slice of an affirmation record the engine reads and writes.
// Tags, categories and the rest of the record belong to the host application.
type Script struct {
	Id                    string    `json:"id" gorm:"column:id;type:varchar(36);primaryKey"`
	Text                  string    `json:"text" gorm:"column:text;type:text"`
	AudioFilePath         string    `json:"audioFilePath" gorm:"column:audio_file_path;type:text"`
	AudioDuration         float64   `json:"audioDuration" gorm:"column:audio_duration;not null;default:0"`
	PrivateModeEnabled    bool      `json:"privateModeEnabled" gorm:"column:private_mode_enabled;not null;default:false"`
	Repetitions           int       `json:"repetitions" gorm:"column:repetitions;not null;default:1"`
	IntervalSeconds       float64   `json:"intervalSeconds" gorm:"column:interval_seconds;not null;default:0"`
	TranscribedText       string    `json:"transcribedText" gorm:"column:transcribed_text;type:text"`
	TranscriptionLanguage string    `json:"transcriptionLanguage" gorm:"column:transcription_language;type:varchar(35)"`
	CreatedDate           time.Time `json:"createdDate" gorm:"column:created_date;not null;<-:create"`
	UpdatedDate           time.Time `json:"updatedDate" gorm:"column:updated_date"`
}

func (Script) TableName() string {
	return "scripts"
}

func (s *Script) BeforeCreate(tx *gorm.DB) (err error) {
	if s.Id == "" {
		s.Id = uuid.NewString()
	}
	if s.CreatedDate.IsZero() {
		s.CreatedDate = time.Now()
	}
	if s.Repetitions < 1 {
		s.Repetitions = 1
	}
	return nil
}

// Store is the narrow persistence contract the engine depends on.
type Store interface {
	Migrate(ctx context.Context) error
	Get(ctx context.Context, id string) (*Script, error)
	Save(ctx context.Context, script *Script) (*Script, error)
	// ApplyRecording is called when post-processing completes for id. The
	// previous transcript no longer matches the audio and is cleared.
	ApplyRecording(ctx context.Context, id, path string, duration float64) error
	// ApplyTranscript is called with the newest transcription result for id.
	ApplyTranscript(ctx context.Context, id, text, language string) error
	// ClearRecording resets the audio fields after an asset is deleted.
	ClearRecording(ctx context.Context, id string) error
}

type gormStore struct {
	sql    connectors.SQLConnector
	logger commons.Logger
}

func NewStore(sql connectors.SQLConnector, logger commons.Logger) Store {
	return &gormStore{sql: sql, logger: logger}
}

func (s *gormStore) Migrate(ctx context.Context) error {
	if err := s.sql.DB(ctx).AutoMigrate(&Script{}); err != nil {
		return fmt.Errorf("failed to migrate scripts: %w", err)
	}
	return nil
}

func (s *gormStore) Get(ctx context.Context, id string) (*Script, error) {
	var script Script
	err := s.sql.DB(ctx).Where("id = ?", id).First(&script).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal_type.NewError(internal_type.KindNoRecording, "script.get", id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load script %s: %w", id, err)
	}
	return &script, nil
}

func (s *gormStore) Save(ctx context.Context, script *Script) (*Script, error) {
	if script.Repetitions < 1 {
		script.Repetitions = 1
	}
	if script.IntervalSeconds < 0 {
		script.IntervalSeconds = 0
	}
	script.UpdatedDate = time.Now()
	if err := s.sql.DB(ctx).Save(script).Error; err != nil {
		return nil, fmt.Errorf("failed to save script %s: %w", script.Id, err)
	}
	return script, nil
}

func (s *gormStore) update(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_date"] = time.Now()
	tx := s.sql.DB(ctx).Model(&Script{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return fmt.Errorf("failed to update script %s: %w", id, tx.Error)
	}
	if tx.RowsAffected == 0 {
		s.logger.Warnf("script %s not found while applying engine update", id)
	}
	return nil
}

func (s *gormStore) ApplyRecording(ctx context.Context, id, path string, duration float64) error {
	return s.update(ctx, id, map[string]interface{}{
		"audio_file_path":        path,
		"audio_duration":         duration,
		"transcribed_text":       "",
		"transcription_language": "",
	})
}

func (s *gormStore) ApplyTranscript(ctx context.Context, id, text, language string) error {
	return s.update(ctx, id, map[string]interface{}{
		"transcribed_text":       text,
		"transcription_language": language,
	})
}

func (s *gormStore) ClearRecording(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]interface{}{
		"audio_file_path":        "",
		"audio_duration":         0,
		"transcribed_text":       "",
		"transcription_language": "",
	})
}
