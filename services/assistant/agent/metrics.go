// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Agent run metrics, exposed on /metrics.
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_agent_runs_total",
		Help: "Completed agent runs by terminal state",
	}, []string{"state", "provider"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assistant_agent_run_duration_seconds",
		Help:    "Wall-clock duration of agent runs",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"state"})

	runIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assistant_agent_run_iterations",
		Help:    "Think/act iterations per run",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15},
	})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_agent_tool_calls_total",
		Help: "Tool invocations by tool name and outcome",
	}, []string{"tool", "outcome"})

	providerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_agent_provider_errors_total",
		Help: "Provider invocation failures by permanence",
	}, []string{"provider", "class"})
)

// observeRun records terminal metrics for a finished run.
func observeRun(result *RunResult) {
	runsTotal.WithLabelValues(string(result.State), result.Provider).Inc()
	runDuration.WithLabelValues(string(result.State)).Observe(result.ExecutionTime.Seconds())
	runIterations.Observe(float64(result.Iterations))
}

// observeToolCall records one dispatch outcome.
func observeToolCall(tool string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failure"
	}
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// observeProviderError records a gateway failure.
func observeProviderError(provider string, permanent bool) {
	class := "transient"
	if permanent {
		class = "permanent"
	}
	providerErrorsTotal.WithLabelValues(provider, class).Inc()
}
