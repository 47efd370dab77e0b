// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_recovery

import (
	"sync"

	"github.com/affirmai/engine/pkg/commons"
)

// Presenter shows a recovery prompt. It is called once per Interrupted
// state and must not block.
type Presenter interface {
	Present(decision *Decision)
	// Withdraw removes a prompt that is no longer answerable.
	Withdraw(decision *Decision)
}

// Mailbox holds the outstanding prompt for a UI that polls or is notified
// over the state stream.
type Mailbox struct {
	logger  commons.Logger
	mu      sync.Mutex
	pending *Decision
	shown   int
}

func NewMailbox(logger commons.Logger) *Mailbox {
	return &Mailbox{logger: logger}
}

func (m *Mailbox) Present(decision *Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = decision
	m.shown++
	rec := decision.Record()
	m.logger.Infow("recovery prompt presented",
		"decision", decision.ID(),
		"target", rec.Target,
		"cause", rec.Cause,
		"captured", rec.CapturedDuration.Seconds())
}

func (m *Mailbox) Withdraw(decision *Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == decision {
		m.pending = nil
	}
}

// Pending returns the unresolved prompt, if any.
func (m *Mailbox) Pending() *Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	if _, resolved := m.pending.Resolution(); resolved {
		return nil
	}
	return m.pending
}

// Presented counts prompts shown since start.
func (m *Mailbox) Presented() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shown
}
