// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	internal_audio "github.com/affirmai/engine/api/engine-api/internal/audio"
	internal_telemetry "github.com/affirmai/engine/api/engine-api/internal/telemetry"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/utils"
)

const (
	DefaultAttempts     = 3
	DefaultDelay        = 200 * time.Millisecond
	DefaultMinFreeBytes = 50 << 20 // 50 MiB floor regardless of operation size
)

// FileOps is the retrying, space-aware file layer every storage path goes
// through. Every primitive retries transient failures a fixed number of times
// with a fixed delay and, once exhausted, returns an *OpError wrapped in an
// engine error whose kind distinguishes space, missing, corrupt and generic
// I/O failures.
type FileOps interface {
	Fs() afero.Fs

	// EnsureSpace refuses when free space at dir is below the configured floor.
	EnsureSpace(ctx context.Context, dir string) error

	Copy(ctx context.Context, src, dst string) error
	Move(ctx context.Context, src, dst string) error
	// Delete removes a file; a missing file is not an error.
	Delete(ctx context.Context, path string) error
	CreateDirectory(ctx context.Context, path string) error
	// Validate checks existence, non-zero size and the WAV header.
	Validate(ctx context.Context, path string) (*FileInfo, error)

	// WriteFile writes through a temp file in the destination directory and
	// renames it into place so readers never see a partial file.
	WriteFile(ctx context.Context, path string, write func(w io.WriteSeeker) error) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// FileInfo is the result of a successful validation.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

type fileOps struct {
	logger       commons.Logger
	metrics      *internal_telemetry.Metrics
	fs           afero.Fs
	attempts     int
	delay        time.Duration
	minFreeBytes uint64
	spaceProbe   func(path string) (uint64, error)
}

type Option func(*fileOps)

func WithFs(fs afero.Fs) Option {
	return func(f *fileOps) { f.fs = fs }
}

func WithAttempts(n int) Option {
	return func(f *fileOps) {
		if n > 0 {
			f.attempts = n
		}
	}
}

func WithDelay(d time.Duration) Option {
	return func(f *fileOps) {
		if d >= 0 {
			f.delay = d
		}
	}
}

func WithMinFreeBytes(n uint64) Option {
	return func(f *fileOps) { f.minFreeBytes = n }
}

// WithSpaceProbe replaces the statfs probe, e.g. for in-memory filesystems.
func WithSpaceProbe(probe func(path string) (uint64, error)) Option {
	return func(f *fileOps) { f.spaceProbe = probe }
}

func WithMetrics(m *internal_telemetry.Metrics) Option {
	return func(f *fileOps) { f.metrics = m }
}

func NewFileOps(logger commons.Logger, opts ...Option) FileOps {
	f := &fileOps{
		logger:       logger,
		fs:           afero.NewOsFs(),
		attempts:     DefaultAttempts,
		delay:        DefaultDelay,
		minFreeBytes: DefaultMinFreeBytes,
		spaceProbe:   diskFree,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.metrics == nil {
		f.metrics = internal_telemetry.NopMetrics()
	}
	return f
}

func (f *fileOps) Fs() afero.Fs {
	return f.fs
}

// retry runs fn until it succeeds, fails permanently, or runs out of
// attempts. The returned error always names the last underlying failure.
func (f *fileOps) retry(ctx context.Context, op, path string, fn func() error) error {
	attempts := 0
	var last error
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.delay), uint64(f.attempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		last = err
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		f.metrics.FileOpRetries.WithLabelValues(op).Inc()
		f.logger.Warnw("file operation failed, retrying",
			"op", op, "path", path, "attempt", attempts, "wait", wait.String(), "error", err)
	})
	if err == nil {
		return nil
	}
	if last == nil {
		last = err
	}
	opErr := &OpError{Op: op, Path: path, Attempts: attempts, Err: last}
	kind := classify(last)
	f.metrics.FileOpFailures.WithLabelValues(op, kind.String()).Inc()
	f.logger.Errorw("file operation failed", "op", op, "path", path, "attempts", attempts, "error", last)
	return internal_type.NewError(kind, "fileops."+op, "", opErr)
}

// existingAncestor walks up from path until it finds a directory that exists,
// so the space probe works for not-yet-created destinations.
func (f *fileOps) existingAncestor(path string) string {
	dir := path
	for {
		if _, err := f.fs.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func (f *fileOps) EnsureSpace(ctx context.Context, dir string) error {
	if f.minFreeBytes == 0 {
		return nil
	}
	probePath := f.existingAncestor(dir)
	free, err := f.spaceProbe(probePath)
	if err != nil {
		// an unreadable probe is not a reason to block the user's recording
		f.logger.Warnf("free space probe failed for %s: %v", probePath, err)
		return nil
	}
	if free < f.minFreeBytes {
		spaceErr := &SpaceError{Path: probePath, Available: free, Required: f.minFreeBytes}
		f.metrics.FileOpFailures.WithLabelValues("space", internal_type.KindInsufficientDiskSpace.String()).Inc()
		return internal_type.NewError(internal_type.KindInsufficientDiskSpace, "fileops.space", "", spaceErr)
	}
	return nil
}

func (f *fileOps) tempPath(dst string) string {
	return filepath.Join(filepath.Dir(dst), fmt.Sprintf(".%s.%s.tmp", filepath.Base(dst), uuid.NewString()))
}

func (f *fileOps) Copy(ctx context.Context, src, dst string) error {
	if err := f.EnsureSpace(ctx, filepath.Dir(dst)); err != nil {
		return err
	}
	return f.retry(ctx, "copy", src+" -> "+dst, func() error {
		return f.copyOnce(src, dst)
	})
}

func (f *fileOps) copyOnce(src, dst string) error {
	in, err := f.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := f.tempPath(dst)
	out, err := f.fs.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		f.fs.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		f.fs.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		f.fs.Remove(tmp)
		return err
	}
	if err := f.fs.Rename(tmp, dst); err != nil {
		f.fs.Remove(tmp)
		return err
	}
	return nil
}

func (f *fileOps) Move(ctx context.Context, src, dst string) error {
	if err := f.EnsureSpace(ctx, filepath.Dir(dst)); err != nil {
		return err
	}
	return f.retry(ctx, "move", src+" -> "+dst, func() error {
		err := f.fs.Rename(src, dst)
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.EXDEV) {
			return err
		}
		// cross-device: copy then remove the source
		if err := f.copyOnce(src, dst); err != nil {
			return err
		}
		return f.fs.Remove(src)
	})
}

func (f *fileOps) Delete(ctx context.Context, path string) error {
	return f.retry(ctx, "delete", path, func() error {
		err := f.fs.Remove(path)
		if err != nil && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	})
}

func (f *fileOps) CreateDirectory(ctx context.Context, path string) error {
	if err := f.EnsureSpace(ctx, path); err != nil {
		return err
	}
	return f.retry(ctx, "mkdir", path, func() error {
		return f.fs.MkdirAll(path, 0o755)
	})
}

func (f *fileOps) Validate(ctx context.Context, path string) (*FileInfo, error) {
	var info *FileInfo
	err := f.retry(ctx, "validate", path, func() error {
		st, err := f.fs.Stat(path)
		if err != nil {
			return err
		}
		if st.IsDir() {
			return &corruptError{reason: "is a directory"}
		}
		if st.Size() == 0 {
			return &corruptError{reason: "empty file"}
		}
		file, err := f.fs.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		if err := internal_audio.ProbeHeader(file); err != nil {
			return &corruptError{reason: err.Error()}
		}
		info = &FileInfo{Path: path, Size: st.Size(), ModTime: st.ModTime()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (f *fileOps) WriteFile(ctx context.Context, path string, write func(w io.WriteSeeker) error) error {
	if err := f.EnsureSpace(ctx, filepath.Dir(path)); err != nil {
		return err
	}
	return f.retry(ctx, "write", path, func() error {
		tmp := f.tempPath(path)
		out, err := f.fs.Create(tmp)
		if err != nil {
			return err
		}
		if err := write(out); err != nil {
			out.Close()
			f.fs.Remove(tmp)
			return err
		}
		if err := out.Sync(); err != nil {
			out.Close()
			f.fs.Remove(tmp)
			return err
		}
		if err := out.Close(); err != nil {
			f.fs.Remove(tmp)
			return err
		}
		if err := f.fs.Rename(tmp, path); err != nil {
			f.fs.Remove(tmp)
			return err
		}
		return nil
	})
}

func (f *fileOps) ReadFile(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := f.retry(ctx, "read", path, func() error {
		b, err := afero.ReadFile(f.fs, path)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	return data, err
}

// Async runs op on a background goroutine and delivers its result on the
// returned channel, for callers that must not block on disk I/O.
func Async(ctx context.Context, op func(ctx context.Context) error) <-chan error {
	result := make(chan error, 1)
	utils.Go(ctx, func() {
		result <- op(ctx)
	})
	return result
}
