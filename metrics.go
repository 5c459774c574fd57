package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics groups the server's prometheus collectors. Each Server registers
// its own set so tests can build servers side by side.
type metrics struct {
	registry        *prometheus.Registry
	actions         *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	snapshotFailure prometheus.Counter
	imports         *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crossword_actions_total",
			Help: "Actions dispatched to sessions by type",
		}, []string{"type"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crossword_active_sessions",
			Help: "Sessions currently open",
		}),
		snapshotFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crossword_snapshot_write_failures_total",
			Help: "Snapshot writes that failed",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crossword_puzzle_imports_total",
			Help: "Photo imports by result",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.actions, m.activeSessions, m.snapshotFailure, m.imports)
	return m
}
