// Package metrics holds the oracle's prometheus collectors, served by
// the health server at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SyncRuns counts completed task cycles by outcome
	// (ok, error, skipped).
	SyncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govoracle",
		Name:      "sync_runs_total",
		Help:      "Completed sync task runs by task and outcome.",
	}, []string{"task", "outcome"})

	// DocumentWrites counts store writes by document type and
	// operation (create, update, delete).
	DocumentWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govoracle",
		Name:      "documents_written_total",
		Help:      "Document store writes by type and operation.",
	}, []string{"type", "op"})

	// NextSuperblockBudget is the budget payable at the upcoming
	// superblock, refreshed by the proposal sync.
	NextSuperblockBudget = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "govoracle",
		Name:      "next_superblock_budget",
		Help:      "Total budget payable at the next superblock.",
	})
)

func init() {
	prometheus.MustRegister(SyncRuns, DocumentWrites, NextSuperblockBudget)
}
