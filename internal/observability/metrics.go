// Package observability holds the Prometheus collectors shared by the api,
// the approval service and the worker.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ApprovalDecisions counts recorded reviewer decisions by level and outcome.
	ApprovalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_approval_decisions_total",
		Help: "Total number of recorded approval decisions",
	}, []string{"level", "decision"})

	// ApprovalRefusals counts decision or slot requests refused by a domain rule.
	ApprovalRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_approval_refusals_total",
		Help: "Total number of approval operations refused by a workflow rule",
	}, []string{"operation", "reason"})

	// ReportTransitions counts persisted report status changes.
	ReportTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_status_transitions_total",
		Help: "Total number of report status transitions",
	}, []string{"from", "to"})
)
