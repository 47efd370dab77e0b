// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_interruption

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
)

// Event carries exactly one of an interruption or a route change.
type Event struct {
	Interruption *internal_type.InterruptionEvent
	Route        *internal_type.RouteChange
}

// Source produces platform audio-session events until ctx is done.
type Source interface {
	Name() string
	Run(ctx context.Context, emit func(Event)) error
}

// Monitor merges all sources into one ordered feed and remembers the
// current output route. Interruption end is forwarded as an event only;
// nothing resumes on its own.
type Monitor interface {
	Events() <-chan Event
	PrivateOutputAttached() bool
	Run(ctx context.Context) error
}

type monitor struct {
	logger  commons.Logger
	sources []Source
	out     chan Event
	mu      sync.Mutex
	private atomic.Bool
}

func NewMonitor(logger commons.Logger, sources ...Source) Monitor {
	return &monitor{
		logger:  logger,
		sources: sources,
		out:     make(chan Event, 64),
	}
}

func (m *monitor) Events() <-chan Event {
	return m.out
}

func (m *monitor) PrivateOutputAttached() bool {
	return m.private.Load()
}

func (m *monitor) emitter(ctx context.Context, source string) func(Event) {
	return func(ev Event) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if ev.Route != nil {
			m.private.Store(ev.Route.PrivateOutputAttached)
			m.logger.Infow("audio route changed",
				"source", source,
				"privateOutput", ev.Route.PrivateOutputAttached,
				"reason", ev.Route.Reason)
		}
		if ev.Interruption != nil {
			m.logger.Infow("audio session interruption",
				"source", source,
				"began", ev.Interruption.Began,
				"cause", ev.Interruption.Cause)
		}
		select {
		case m.out <- ev:
		case <-ctx.Done():
		}
	}
}

func (m *monitor) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, s := range m.sources {
		s := s
		g.Go(func() error {
			err := s.Run(gCtx, m.emitter(gCtx, s.Name()))
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Errorf("interruption source %s stopped: %v", s.Name(), err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
