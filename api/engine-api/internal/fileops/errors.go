// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_fileops

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
)

// OpError is returned once a primitive has exhausted its attempts. Err is the
// failure of the last attempt.
type OpError struct {
	Op       string
	Path     string
	Attempts int
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Op, e.Path, e.Attempts, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// SpaceError reports a free-space floor violation.
type SpaceError struct {
	Path      string
	Available uint64
	Required  uint64
}

func (e *SpaceError) Error() string {
	return fmt.Sprintf("free space at %s is %d bytes, below the %d byte floor", e.Path, e.Available, e.Required)
}

// corruptError marks a file that exists but failed validation.
type corruptError struct {
	reason string
}

func (e *corruptError) Error() string { return "file corrupted: " + e.reason }

func isPermanent(err error) bool {
	var corrupt *corruptError
	var space *SpaceError
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.As(err, &corrupt) ||
		errors.As(err, &space)
}

// classify maps a low-level failure onto the engine's error kinds so callers
// can tell space, missing and corrupt files apart from generic I/O failures.
func classify(err error) internal_type.ErrorKind {
	var corrupt *corruptError
	var space *SpaceError
	switch {
	case errors.As(err, &space), errors.Is(err, syscall.ENOSPC):
		return internal_type.KindInsufficientDiskSpace
	case errors.As(err, &corrupt):
		return internal_type.KindFileCorrupted
	case errors.Is(err, os.ErrNotExist):
		return internal_type.KindFileNotFound
	default:
		return internal_type.KindFileOperationFailed
	}
}
