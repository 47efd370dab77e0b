// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_asset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	internal_fileops "github.com/affirmai/engine/api/engine-api/internal/fileops"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/connectors"
)

const stagingDir = "staging"

// Store maps a script identifier to its recording file and owns the file's
// lifecycle. All disk access goes through the file safety layer.
type Store interface {
	// Migrate creates the recording_assets table.
	Migrate(ctx context.Context) error

	// Get resolves the asset for target and validates its file. A missing row
	// or zero duration yields ErrNoRecording; a missing or corrupt file yields
	// ErrFileNotFound / ErrFileCorrupted.
	Get(ctx context.Context, target string) (*RecordingAsset, error)

	// Lookup returns the stored row without touching the file, or nil.
	Lookup(ctx context.Context, target string) (*RecordingAsset, error)

	// StagingPath returns a fresh path the pipeline may write a new file to.
	StagingPath(target string) string

	// Replace validates the staged file, moves it into place under a new name,
	// points the row at it and only then deletes the previous file.
	Replace(ctx context.Context, target, stagedPath string, duration float64) (*RecordingAsset, error)

	// Delete removes the row and its file.
	Delete(ctx context.Context, target string) error

	// ValidateAll checks every stored asset and reports the invalid ones.
	ValidateAll(ctx context.Context) ([]ValidationReport, error)
}

type store struct {
	sql    connectors.SQLConnector
	files  internal_fileops.FileOps
	logger commons.Logger
	root   string
	// per-target locks serialise Replace/Delete of the same asset
	locks sync.Map
}

// NewStore creates an asset store rooted at root.
func NewStore(sql connectors.SQLConnector, files internal_fileops.FileOps, logger commons.Logger, root string) Store {
	return &store{
		sql:    sql,
		files:  files,
		logger: logger,
		root:   root,
	}
}

func (s *store) lock(target string) func() {
	v, _ := s.locks.LoadOrStore(target, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *store) Migrate(ctx context.Context) error {
	if err := s.sql.DB(ctx).AutoMigrate(&RecordingAsset{}); err != nil {
		return fmt.Errorf("failed to migrate recording assets: %w", err)
	}
	if err := s.files.CreateDirectory(ctx, filepath.Join(s.root, stagingDir)); err != nil {
		return fmt.Errorf("failed to prepare staging directory: %w", err)
	}
	return nil
}

func (s *store) Lookup(ctx context.Context, target string) (*RecordingAsset, error) {
	var asset RecordingAsset
	err := s.sql.DB(ctx).Where("target = ?", target).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recording asset %s: %w", target, err)
	}
	return &asset, nil
}

func (s *store) Get(ctx context.Context, target string) (*RecordingAsset, error) {
	asset, err := s.Lookup(ctx, target)
	if err != nil {
		return nil, err
	}
	if !asset.HasRecording() {
		return nil, internal_type.NewError(internal_type.KindNoRecording, "asset.get", target, nil)
	}
	if _, err := s.files.Validate(ctx, asset.Path); err != nil {
		s.logger.Warnf("recording asset %s failed validation: %v", target, err)
		return nil, internal_type.NewError(internal_type.KindOf(err), "asset.get", target, err)
	}
	asset.Valid = true
	return asset, nil
}

func (s *store) StagingPath(target string) string {
	return filepath.Join(s.root, stagingDir, fmt.Sprintf("%s-%s.wav", target, uuid.NewString()))
}

func (s *store) finalPath(target string) string {
	return filepath.Join(s.root, target, uuid.NewString()+".wav")
}

func (s *store) Replace(ctx context.Context, target, stagedPath string, duration float64) (*RecordingAsset, error) {
	if duration <= 0 {
		return nil, internal_type.NewError(internal_type.KindNoRecording, "asset.replace", target, fmt.Errorf("duration %.3f", duration))
	}
	unlock := s.lock(target)
	defer unlock()

	if _, err := s.files.Validate(ctx, stagedPath); err != nil {
		return nil, fmt.Errorf("staged recording for %s is not valid: %w", target, err)
	}

	dst := s.finalPath(target)
	if err := s.files.CreateDirectory(ctx, filepath.Dir(dst)); err != nil {
		return nil, err
	}
	if err := s.files.Move(ctx, stagedPath, dst); err != nil {
		return nil, err
	}
	if _, err := s.files.Validate(ctx, dst); err != nil {
		s.files.Delete(ctx, dst)
		return nil, fmt.Errorf("moved recording for %s is not valid: %w", target, err)
	}

	var previous string
	var asset RecordingAsset
	err := s.sql.DB(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("target = ?", target).First(&asset).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			asset = RecordingAsset{Target: target, Path: dst, Duration: duration, UpdatedDate: time.Now()}
			return tx.Create(&asset).Error
		case err != nil:
			return err
		}
		previous = asset.Path
		asset.Path = dst
		asset.Duration = duration
		asset.UpdatedDate = time.Now()
		return tx.Model(&RecordingAsset{}).
			Where("id = ?", asset.Id).
			Updates(map[string]interface{}{
				"path":         dst,
				"duration":     duration,
				"updated_date": asset.UpdatedDate,
			}).Error
	})
	if err != nil {
		// the previous row still points at the previous file; drop the orphan
		s.files.Delete(ctx, dst)
		return nil, fmt.Errorf("failed to swap recording asset %s: %w", target, err)
	}

	if previous != "" && previous != dst {
		if err := s.files.Delete(ctx, previous); err != nil {
			s.logger.Warnf("failed to remove replaced recording %s: %v", previous, err)
		}
	}
	asset.Valid = true
	s.logger.Infof("replaced recording asset: target=%s, path=%s, duration=%.2fs", target, dst, duration)
	return &asset, nil
}

func (s *store) Delete(ctx context.Context, target string) error {
	unlock := s.lock(target)
	defer unlock()

	asset, err := s.Lookup(ctx, target)
	if err != nil {
		return err
	}
	if asset == nil {
		return nil
	}
	if err := s.sql.DB(ctx).Where("id = ?", asset.Id).Delete(&RecordingAsset{}).Error; err != nil {
		return fmt.Errorf("failed to delete recording asset %s: %w", target, err)
	}
	if asset.Path != "" {
		if err := s.files.Delete(ctx, asset.Path); err != nil {
			return err
		}
	}
	s.logger.Infof("deleted recording asset: target=%s", target)
	return nil
}

func (s *store) ValidateAll(ctx context.Context) ([]ValidationReport, error) {
	var assets []RecordingAsset
	if err := s.sql.DB(ctx).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to list recording assets: %w", err)
	}

	var mu sync.Mutex
	reports := make([]ValidationReport, 0)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, a := range assets {
		a := a
		if !a.HasRecording() {
			continue
		}
		g.Go(func() error {
			if _, err := s.files.Validate(gCtx, a.Path); err != nil {
				mu.Lock()
				reports = append(reports, ValidationReport{
					Target: a.Target,
					Path:   a.Path,
					Kind:   internal_type.KindOf(err),
					Err:    err,
				})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Infof("validated %d recording assets, %d invalid", len(assets), len(reports))
	return reports, nil
}
