package domain

import (
	"fmt"
	"sort"
)

const (
	MinApprovalLevel = 1
	MaxApprovalLevel = 255
)

// ValidateLevels checks the required levels of a report and returns them
// sorted ascending without duplicates.
func ValidateLevels(levels []int) ([]int, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("at least one required level: %w", ErrInvalidLevel)
	}
	seen := make(map[int]struct{}, len(levels))
	out := make([]int, 0, len(levels))
	for _, l := range levels {
		if l < MinApprovalLevel || l > MaxApprovalLevel {
			return nil, fmt.Errorf("level %d out of range %d..%d: %w", l, MinApprovalLevel, MaxApprovalLevel, ErrInvalidLevel)
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Ints(out)
	return out, nil
}

func HasLevel(levels []int, level int) bool {
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

func CanDecideLevel(u User, level int) bool {
	return u.ApprovalLevel >= level
}

// AggregateReportStatus derives a report's status from its approvals.
// Approvals for levels outside required are ignored.
func AggregateReportStatus(current ReportStatus, required []int, approvals []Approval) ReportStatus {
	if current == ReportDraft {
		return ReportDraft
	}

	approvedLevels := make(map[int]struct{}, len(approvals))
	decided := false
	for _, a := range approvals {
		if !HasLevel(required, a.Level) {
			continue
		}
		switch a.Status {
		case ApprovalRejected:
			return ReportRejected
		case ApprovalApproved:
			approvedLevels[a.Level] = struct{}{}
			decided = true
		}
	}

	allApproved := len(required) > 0
	for _, l := range required {
		if _, ok := approvedLevels[l]; !ok {
			allApproved = false
			break
		}
	}
	if allApproved {
		if current == ReportDone {
			return ReportDone
		}
		return ReportApproved
	}
	if decided {
		return ReportReviewed
	}
	return ReportSubmitted
}
