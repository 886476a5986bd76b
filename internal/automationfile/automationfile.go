// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package automationfile loads an optional YAML "starter pack" of example
// automations/schedules on first boot (spec.md's Non-goals exclude a
// graphical editor, not a seed file) and, for local development, watches
// it for changes the way the pack's ariadne/xg2g repos watch their own
// config files.
package automationfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/seakee/meshomaton/internal/automation"
	"github.com/seakee/meshomaton/internal/repository"
	"github.com/seakee/meshomaton/internal/scheduler"
)

// Pack is the on-disk starter-pack shape: loosely-typed maps so the YAML
// document speaks the same {"type":"...","config":{...}} shape the JSON
// Store persists, converted via a JSON round trip into the typed domain
// structs (Trigger/Condition/Action already know how to parse that
// envelope; duplicating their schema in YAML struct tags would just drift).
type Pack struct {
	Automations []map[string]interface{} `yaml:"automations"`
	Schedules   []map[string]interface{} `yaml:"schedules"`
}

// Load parses the YAML file at path into a Pack.
func Load(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read starter pack")
	}
	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, errors.Wrap(err, "parse starter pack yaml")
	}
	return &pack, nil
}

// SeedIfEmpty loads the starter pack at path into repo and appends its
// schedules to the Store, but only when repo currently holds zero
// automations — it never overwrites an existing install.
func SeedIfEmpty(path string, repo *repository.Repository, now time.Time, log *logger.Manager) error {
	if len(repo.Automations()) > 0 {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	pack, err := Load(path)
	if err != nil {
		return err
	}

	for _, raw := range pack.Automations {
		a, err := decodeAutomation(raw, now)
		if err != nil {
			if log != nil {
				log.Error(context.Background(), "skipping malformed starter-pack automation", zap.Error(err))
			}
			continue
		}
		if err := repo.Save(a); err != nil {
			if log != nil {
				log.Error(context.Background(), "failed to seed starter-pack automation", zap.String("name", a.Name), zap.Error(err))
			}
		}
	}
	return nil
}

func decodeAutomation(raw map[string]interface{}, now time.Time) (*automation.Automation, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "encode starter-pack automation")
	}

	var a automation.Automation
	if err := json.Unmarshal(encoded, &a); err != nil {
		return nil, errors.Wrap(err, "decode starter-pack automation")
	}
	if a.ID == "" {
		a.ID = deterministicID(a.Name)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func deterministicID(name string) string {
	return "starter-" + name
}

// DecodeSchedules converts a Pack's raw schedule maps into ScheduleSpecs.
func DecodeSchedules(pack *Pack) ([]scheduler.ScheduleSpec, error) {
	out := make([]scheduler.ScheduleSpec, 0, len(pack.Schedules))
	for _, raw := range pack.Schedules {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, errors.Wrap(err, "encode starter-pack schedule")
		}
		var spec scheduler.ScheduleSpec
		if err := json.Unmarshal(encoded, &spec); err != nil {
			return nil, errors.Wrap(err, "decode starter-pack schedule")
		}
		out = append(out, spec)
	}
	return out, nil
}

// Watcher hot-reloads the starter-pack file on change for local
// development, debounced the way the pack's xg2g config watcher is
// (github.com/ManuGH/xg2g/internal/config.ConfigHolder.watchLoop).
// Production deployments should not construct one.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	log      *logger.Manager
	onChange func()
}

// NewWatcher builds a Watcher over path; call Start to begin watching.
func NewWatcher(path string, log *logger.Manager, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create starter-pack watcher")
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, errors.Wrap(err, "watch starter-pack dir")
	}
	return &Watcher{path: path, watcher: fw, log: log, onChange: onChange}, nil
}

// Start runs the debounced watch loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	const debounce = 500 * time.Millisecond
	var timer *time.Timer
	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.onChange)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Error(ctx, "starter-pack watcher error", zap.Error(err))
			}
		}
	}
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	_ = w.watcher.Close()
}
