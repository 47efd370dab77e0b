// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_interruption

import (
	"context"
	"time"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
)

// ChannelSource is fed programmatically, e.g. by the system HTTP endpoints.
type ChannelSource struct {
	events chan Event
}

func NewChannelSource() *ChannelSource {
	return &ChannelSource{events: make(chan Event, 16)}
}

func (c *ChannelSource) Name() string { return "channel" }

func (c *ChannelSource) Run(ctx context.Context, emit func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			emit(ev)
		}
	}
}

// Interruption reports an interruption beginning or ending.
func (c *ChannelSource) Interruption(ctx context.Context, began bool, cause internal_type.InterruptionCause) error {
	return c.send(ctx, Event{Interruption: &internal_type.InterruptionEvent{Began: began, Cause: cause, At: time.Now()}})
}

// Route reports an output route change.
func (c *ChannelSource) Route(ctx context.Context, privateAttached bool, reason string) error {
	return c.send(ctx, Event{Route: &internal_type.RouteChange{PrivateOutputAttached: privateAttached, Reason: reason, At: time.Now()}})
}

func (c *ChannelSource) send(ctx context.Context, ev Event) error {
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
