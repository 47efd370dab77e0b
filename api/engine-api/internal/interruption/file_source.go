// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_interruption

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
)

// routeState is the JSON document the platform bridge writes.
type routeState struct {
	PrivateOutputAttached bool   `json:"privateOutputAttached"`
	Reason                string `json:"reason"`
}

type fileRouteSource struct {
	logger commons.Logger
	path   string
	last   *bool
}

// NewFileRouteSource watches a route-state file. The directory is watched
// rather than the file so atomic replace-by-rename is picked up.
func NewFileRouteSource(logger commons.Logger, path string) Source {
	return &fileRouteSource{logger: logger, path: filepath.Clean(path)}
}

func (f *fileRouteSource) Name() string { return "route-file" }

func (f *fileRouteSource) read() (*routeState, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var st routeState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("invalid route state %s: %w", f.path, err)
	}
	return &st, nil
}

func (f *fileRouteSource) publish(emit func(Event)) {
	st, err := f.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warnf("failed to read route state: %v", err)
		}
		return
	}
	if f.last != nil && *f.last == st.PrivateOutputAttached {
		return
	}
	attached := st.PrivateOutputAttached
	f.last = &attached
	emit(Event{Route: &internal_type.RouteChange{
		PrivateOutputAttached: attached,
		Reason:                st.Reason,
		At:                    time.Now(),
	}})
}

func (f *fileRouteSource) Run(ctx context.Context, emit func(Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create route watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}
	f.publish(emit)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				f.publish(emit)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warnf("route watcher error: %v", err)
		}
	}
}
