// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"time"

	"github.com/seakee/meshomaton/internal/automation"
)

// RunSilentNodeSweep walks every NodeSilent-triggered automation and emits
// a NodeSilent event for any node that has gone quiet longer than the
// automation's configured duration. Intended to be called on a
// DefaultSilentNodeInterval ticker by the caller that owns the Engine's
// lifecycle (bootstrap wiring owns the ticker; the Engine stays free of
// goroutine management of its own).
func (e *Engine) RunSilentNodeSweep(ctx context.Context) {
	now := e.now()

	for _, a := range e.repo.Automations() {
		if !a.Enabled || a.Trigger.Kind != automation.TriggerNodeSilent {
			continue
		}
		cfg, ok := a.Trigger.Config.(automation.NodeSilentConfig)
		if !ok {
			continue
		}

		for _, nodeNum := range e.silentNodeCandidates(cfg.NodeNum) {
			e.mu.Lock()
			lastHeard, known := e.nodeLastHeard[nodeNum]
			name := e.nodeName[nodeNum]
			e.mu.Unlock()
			if !known {
				continue
			}
			if now.Sub(lastHeard) < time.Duration(cfg.Minutes)*time.Minute {
				continue
			}

			e.ProcessEvent(ctx, automation.Event{
				Kind: automation.TriggerNodeSilent, NodeNum: nodeNum, NodeName: name, Timestamp: now,
			})
		}
	}
}

// silentNodeCandidates returns the single filtered node, or every known
// node when the automation's NodeSilentConfig has no node filter.
func (e *Engine) silentNodeCandidates(filter *uint32) []uint32 {
	if filter != nil {
		return []uint32{*filter}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]uint32, 0, len(e.nodeLastHeard))
	for n := range e.nodeLastHeard {
		out = append(out, n)
	}
	return out
}
