// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_asset

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
)

// RecordingAsset is the persisted, validated audio file for one script.
//
// Duration > 0 implies the file at Path exists and validates; a row with
// duration 0 means "no recording". The row is the swap point: a re-record
// writes a new file under a new name, then points the row at it, and only
// then removes the old file, so a reader resolving the row never sees a
// partially written file.
type RecordingAsset struct {
	Id          string    `json:"id" gorm:"column:id;type:varchar(36);primaryKey"`
	Target      string    `json:"target" gorm:"column:target;type:varchar(36);not null;uniqueIndex"`
	Path        string    `json:"path" gorm:"column:path;type:text;not null"`
	Duration    float64   `json:"duration" gorm:"column:duration;not null;default:0"`
	CreatedDate time.Time `json:"createdDate" gorm:"column:created_date;not null;<-:create"`
	UpdatedDate time.Time `json:"updatedDate" gorm:"column:updated_date"`

	// Valid is computed on read, never stored.
	Valid bool `json:"valid" gorm:"-"`
}

func (RecordingAsset) TableName() string {
	return "recording_assets"
}

func (a *RecordingAsset) BeforeCreate(tx *gorm.DB) (err error) {
	if a.Id == "" {
		a.Id = uuid.NewString()
	}
	if a.CreatedDate.IsZero() {
		a.CreatedDate = time.Now()
	}
	return nil
}

// HasRecording reports whether the asset claims a playable file.
func (a *RecordingAsset) HasRecording() bool {
	return a != nil && a.Duration > 0 && a.Path != ""
}

// View converts the row into the snapshot representation.
func (a *RecordingAsset) View() *internal_type.AssetView {
	if a == nil {
		return nil
	}
	return &internal_type.AssetView{
		Target:   a.Target,
		Path:     a.Path,
		Duration: a.Duration,
		Valid:    a.Valid,
	}
}

// ValidationReport is one row of a ValidateAll sweep.
type ValidationReport struct {
	Target string
	Path   string
	Kind   internal_type.ErrorKind
	Err    error
}
