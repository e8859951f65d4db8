package temporal

import "report-approval-workflow/internal/domain"

const ApprovalDecidedSignalName = "approvalDecided"

// ApprovalDecidedSignal is sent after a decision has been committed. The
// workflow treats it as a hint and re-reads progress from the store.
type ApprovalDecidedSignal struct {
	ApprovalID   int64               `json:"approval_id"`
	Level        int                 `json:"level"`
	Decision     domain.Decision     `json:"decision"`
	ReportStatus domain.ReportStatus `json:"report_status"`
}
