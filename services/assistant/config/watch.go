// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces editor write bursts into one reload.
const debounceWindow = 250 * time.Millisecond

// AvailabilitySink receives provider availability flips on reload. The
// provider gateway satisfies it.
type AvailabilitySink interface {
	SetAvailability(id string, available bool)
}

// Watcher re-reads the config file on change and pushes provider
// availability updates to the gateway. Only the availability flag is
// hot; structural changes (new providers, tier edits) still need a
// restart.
type Watcher struct {
	path    string
	sink    AvailabilitySink
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	stop    chan struct{}
}

// NewWatcher starts watching the config file's directory. Watching the
// directory instead of the file survives the rename-and-replace most
// editors and config management tools do.
func NewWatcher(path string, sink AvailabilitySink, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required for watching")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:    path,
		sink:    sink,
		watcher: fsw,
		logger:  logger.With(slog.String("component", "config_watcher")),
		stop:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watch error", slog.String("error", err.Error()))
		case <-reload:
			w.apply()
		}
	}
}

// apply re-reads the file and pushes availability flags. A file that no
// longer parses is ignored; the running config stays in force.
func (w *Watcher) apply() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("Ignoring unreadable config update",
			slog.String("error", err.Error()))
		return
	}

	for _, p := range cfg.Providers {
		w.sink.SetAvailability(p.ID, p.Available)
	}
	w.logger.Info("Provider availability reloaded",
		slog.Int("providers", len(cfg.Providers)))
}
