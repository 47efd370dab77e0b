// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "affirm_engine"

// Metrics groups the engine's prometheus collectors.
type Metrics struct {
	Transitions          *prometheus.CounterVec
	FileOpRetries        *prometheus.CounterVec
	FileOpFailures       *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	TranscriptionResults *prometheus.CounterVec
	Interruptions        *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Coordinator state transitions by source and destination phase.",
		}, []string{"from", "to"}),
		FileOpRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fileops_retries_total",
			Help:      "File operation attempts that failed and were retried.",
		}, []string{"op"}),
		FileOpFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fileops_failures_total",
			Help:      "File operations that failed after exhausting retries.",
		}, []string{"op", "kind"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_seconds",
			Help:      "Post-processing stage latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"stage"}),
		TranscriptionResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Transcription jobs by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Interruptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "System interruptions by cause and the phase they hit.",
		}, []string{"cause", "phase"}),
	}
}

// NopMetrics returns collectors registered on a private registry.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ObserveStage records a pipeline stage latency since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
