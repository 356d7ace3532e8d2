// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the structured loggers used across the
// assistant service.
//
// Every long-lived component takes a *slog.Logger scoped with a
// "component" attribute, so one grep on the component field isolates a
// subsystem's output. This package owns handler construction: format
// and level come from the environment, components never configure
// their own handlers.
//
// # Environment
//
//   - ASSISTANT_LOG_LEVEL: debug, info, warn, error (default info)
//   - ASSISTANT_LOG_FORMAT: json or text (default json)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls handler construction.
type Config struct {
	// Level is the minimum level that gets emitted.
	Level slog.Level

	// Format selects the handler: "json" or "text".
	Format string

	// Output receives the log stream. Defaults to os.Stdout.
	Output io.Writer

	// AddSource includes file:line in every record. Costly; meant
	// for debugging sessions, not steady-state operation.
	AddSource bool
}

// FromEnv builds a Config from ASSISTANT_LOG_LEVEL and
// ASSISTANT_LOG_FORMAT, falling back to info/json.
func FromEnv() Config {
	return Config{
		Level:  ParseLevel(os.Getenv("ASSISTANT_LOG_LEVEL")),
		Format: parseFormat(os.Getenv("ASSISTANT_LOG_FORMAT")),
	}
}

// ParseLevel maps a level name onto a slog.Level. Unknown or empty
// names resolve to Info so a typo in the environment never silences
// the service.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseFormat(name string) string {
	if strings.EqualFold(strings.TrimSpace(name), "text") {
		return "text"
	}
	return "json"
}

// New constructs a *slog.Logger from the config. JSON output unless
// text was asked for explicitly.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}

// Component returns a child logger tagged with the component name.
// A nil parent falls back to slog.Default().
func Component(parent *slog.Logger, name string) *slog.Logger {
	if parent == nil {
		parent = slog.Default()
	}
	return parent.With(slog.String("component", name))
}
