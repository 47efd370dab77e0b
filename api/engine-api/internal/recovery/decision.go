// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_recovery

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
)

var ErrAlreadyResolved = errors.New("recovery decision already resolved")

// Decision is the single-use answer to one interruption. Exactly one of
// continue, save partial or discard can be submitted.
type Decision struct {
	id     string
	record internal_type.InterruptionRecord

	mu       sync.Mutex
	resolved bool
	choice   internal_type.Resolution
	done     chan internal_type.Resolution
}

func NewDecision(record internal_type.InterruptionRecord) *Decision {
	return &Decision{
		id:     uuid.NewString(),
		record: record,
		done:   make(chan internal_type.Resolution, 1),
	}
}

func (d *Decision) ID() string {
	return d.id
}

func (d *Decision) Record() internal_type.InterruptionRecord {
	return d.record
}

// Resolve submits the user's choice. Every call after the first fails with
// ErrAlreadyResolved, whatever the choice.
func (d *Decision) Resolve(choice internal_type.Resolution) error {
	if !choice.Valid() {
		return fmt.Errorf("unknown resolution %q", choice)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.resolved {
		return ErrAlreadyResolved
	}
	d.resolved = true
	d.choice = choice
	d.done <- choice
	close(d.done)
	return nil
}

// Done yields the resolution once, then is closed.
func (d *Decision) Done() <-chan internal_type.Resolution {
	return d.done
}

func (d *Decision) Resolution() (internal_type.Resolution, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.choice, d.resolved
}
