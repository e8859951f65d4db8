package domain

import (
	"fmt"
	"strconv"
)

type ReportStatus int

const (
	ReportDraft     ReportStatus = 0
	ReportSubmitted ReportStatus = 1
	ReportReviewed  ReportStatus = 2
	ReportApproved  ReportStatus = 3
	ReportRejected  ReportStatus = 4
	ReportDone      ReportStatus = 5
)

var reportStatusLabels = map[ReportStatus]string{
	ReportDraft:     "Draft",
	ReportSubmitted: "Submitted",
	ReportReviewed:  "Reviewed",
	ReportApproved:  "Approved",
	ReportRejected:  "Rejected",
	ReportDone:      "Done",
}

func ParseReportStatus(v int) (ReportStatus, error) {
	s := ReportStatus(v)
	if _, ok := reportStatusLabels[s]; !ok {
		return 0, fmt.Errorf("report status %d: %w", v, ErrInvalidEnumValue)
	}
	return s, nil
}

// Label returns the display label, failing for values outside 0..5.
func (s ReportStatus) Label() (string, error) {
	label, ok := reportStatusLabels[s]
	if !ok {
		return "", fmt.Errorf("report status %d: %w", int(s), ErrInvalidEnumValue)
	}
	return label, nil
}

func (s ReportStatus) String() string {
	if label, ok := reportStatusLabels[s]; ok {
		return label
	}
	return "ReportStatus(" + strconv.Itoa(int(s)) + ")"
}

func (s ReportStatus) IsTerminal() bool {
	return s == ReportRejected || s == ReportDone
}

// AcceptsDecisions reports whether approvals of a report in this status may
// still be created or decided.
func (s ReportStatus) AcceptsDecisions() bool {
	return s == ReportSubmitted || s == ReportReviewed
}

var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportDraft:     {ReportSubmitted},
	ReportSubmitted: {ReportReviewed, ReportApproved, ReportRejected},
	ReportReviewed:  {ReportApproved, ReportRejected},
	ReportApproved:  {ReportDone},
}

// CanTransition enforces the forward-only lifecycle. Rejected and Done have
// no outgoing edges and self-edges are never valid.
func CanTransition(from, to ReportStatus) bool {
	for _, next := range reportTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ApprovalStatus int

const (
	ApprovalPending  ApprovalStatus = 0
	ApprovalApproved ApprovalStatus = 1
	ApprovalRejected ApprovalStatus = 2
)

var approvalStatusLabels = map[ApprovalStatus]string{
	ApprovalPending:  "Pending",
	ApprovalApproved: "Approved",
	ApprovalRejected: "Rejected",
}

func ParseApprovalStatus(v int) (ApprovalStatus, error) {
	s := ApprovalStatus(v)
	if _, ok := approvalStatusLabels[s]; !ok {
		return 0, fmt.Errorf("approval status %d: %w", v, ErrInvalidEnumValue)
	}
	return s, nil
}

func (s ApprovalStatus) Label() (string, error) {
	label, ok := approvalStatusLabels[s]
	if !ok {
		return "", fmt.Errorf("approval status %d: %w", int(s), ErrInvalidEnumValue)
	}
	return label, nil
}

func (s ApprovalStatus) String() string {
	if label, ok := approvalStatusLabels[s]; ok {
		return label
	}
	return "ApprovalStatus(" + strconv.Itoa(int(s)) + ")"
}

func (s ApprovalStatus) IsDecided() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) ApprovalStatus() (ApprovalStatus, error) {
	switch d {
	case DecisionApprove:
		return ApprovalApproved, nil
	case DecisionReject:
		return ApprovalRejected, nil
	default:
		return 0, fmt.Errorf("decision %q: %w", string(d), ErrInvalidDecision)
	}
}

type AuditState string

const (
	AuditSubmitted   AuditState = "SUBMITTED"
	AuditLevelOpened AuditState = "LEVEL_OPENED"
	AuditDecided     AuditState = "DECIDED"
	AuditArchived    AuditState = "ARCHIVED"
	AuditDone        AuditState = "DONE"
)
