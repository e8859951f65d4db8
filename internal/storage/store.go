package storage

import (
	"context"

	"report-approval-workflow/internal/domain"
)

// Tx is the set of row operations available inside a transaction. Lock*
// methods take a row lock held until the transaction ends.
type Tx interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUser(ctx context.Context, userID int64) (domain.User, error)
	DeleteUser(ctx context.Context, userID int64) error

	CreateReport(ctx context.Context, r domain.Report) (domain.Report, error)
	GetReport(ctx context.Context, reportID int64) (domain.Report, error)
	LockReport(ctx context.Context, reportID int64) (domain.Report, error)
	UpdateReportStatus(ctx context.Context, reportID int64, status domain.ReportStatus) error
	DeleteReport(ctx context.Context, reportID int64) error

	CreateApproval(ctx context.Context, a domain.Approval) (domain.Approval, error)
	GetApproval(ctx context.Context, approvalID int64) (domain.Approval, error)
	LockApproval(ctx context.Context, approvalID int64) (domain.Approval, error)
	FindApprovalByLevel(ctx context.Context, reportID int64, level int) (domain.Approval, error)
	ListApprovals(ctx context.Context, reportID int64) ([]domain.Approval, error)
	UpdateApprovalDecision(ctx context.Context, a domain.Approval) (domain.Approval, error)

	InsertAudit(ctx context.Context, reportID int64, state domain.AuditState, detail any) error
	ListAudit(ctx context.Context, reportID int64) ([]domain.AuditEntry, error)
}

// TxRunner runs fn in a transaction, committing when fn returns nil.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
