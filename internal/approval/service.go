// Package approval implements the report approval lifecycle: per-level
// approval slots, reviewer decisions and the derived report status, all
// written transactionally.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"report-approval-workflow/internal/domain"
	"report-approval-workflow/internal/observability"
	"report-approval-workflow/internal/storage"
)

type Service struct {
	store  storage.TxRunner
	logger *zap.Logger
}

func NewService(store storage.TxRunner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

type DecisionInput struct {
	ApprovalID int64
	ReviewerID int64
	Decision   domain.Decision
	Notes      string
}

type DecisionResult struct {
	Approval     domain.Approval     `json:"approval"`
	ReportStatus domain.ReportStatus `json:"report_status"`
}

func (s *Service) CreateUser(ctx context.Context, name string, approvalLevel int) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, fmt.Errorf("user name is required: %w", domain.ErrInvalidInput)
	}
	if approvalLevel < 0 || approvalLevel > domain.MaxApprovalLevel {
		return domain.User{}, fmt.Errorf("approval level %d: %w", approvalLevel, domain.ErrInvalidLevel)
	}
	var created domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		created, err = tx.CreateUser(ctx, domain.User{Name: name, ApprovalLevel: approvalLevel})
		return err
	})
	return created, err
}

// DeleteUser removes a user. Approvals they reviewed keep their decision and
// lose the reviewer reference.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.DeleteUser(ctx, userID)
	})
}

func (s *Service) CreateReport(ctx context.Context, title string, requiredLevels []int) (domain.Report, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Report{}, fmt.Errorf("report title is required: %w", domain.ErrInvalidInput)
	}
	levels, err := domain.ValidateLevels(requiredLevels)
	if err != nil {
		return domain.Report{}, err
	}
	var created domain.Report
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		created, err = tx.CreateReport(ctx, domain.Report{
			Title:          strings.TrimSpace(title),
			Status:         domain.ReportDraft,
			RequiredLevels: levels,
		})
		return err
	})
	return created, err
}

func (s *Service) GetReport(ctx context.Context, reportID int64) (domain.Report, error) {
	var r domain.Report
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		r, err = tx.GetReport(ctx, reportID)
		return err
	})
	return r, err
}

// DeleteReport removes the report together with its approvals.
func (s *Service) DeleteReport(ctx context.Context, reportID int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.DeleteReport(ctx, reportID)
	})
	if err == nil {
		s.logger.Info("report deleted", zap.Int64("report_id", reportID))
	}
	return err
}

// SubmitReport moves a Draft report to Submitted. Submitting an already
// submitted report is a no-op so retried callers converge.
func (s *Service) SubmitReport(ctx context.Context, reportID int64) (domain.Report, error) {
	var out domain.Report
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		r, err := tx.LockReport(ctx, reportID)
		if err != nil {
			return err
		}
		if r.Status == domain.ReportSubmitted {
			out = r
			return nil
		}
		if err := s.transition(ctx, tx, r, domain.ReportSubmitted); err != nil {
			return err
		}
		if err := tx.InsertAudit(ctx, reportID, domain.AuditSubmitted, map[string]any{"required_levels": r.RequiredLevels}); err != nil {
			return err
		}
		r.Status = domain.ReportSubmitted
		out = r
		return nil
	})
	if err != nil {
		return domain.Report{}, err
	}
	return out, nil
}

// CreateForLevel opens the pending approval slot for one level. The report
// row lock serialises concurrent creators so the (report, level) pair stays
// unique without a table constraint.
func (s *Service) CreateForLevel(ctx context.Context, reportID int64, level int) (domain.Approval, error) {
	var created domain.Approval
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		r, err := tx.LockReport(ctx, reportID)
		if err != nil {
			return err
		}
		if !r.Status.AcceptsDecisions() {
			return fmt.Errorf("report %d is %s: %w", reportID, r.Status, domain.ErrReportClosed)
		}
		if !domain.HasLevel(r.RequiredLevels, level) {
			return fmt.Errorf("level %d not required by report %d: %w", level, reportID, domain.ErrInvalidLevel)
		}
		if _, err := tx.FindApprovalByLevel(ctx, reportID, level); err == nil {
			return fmt.Errorf("report %d level %d: %w", reportID, level, domain.ErrDuplicateLevel)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		created, err = tx.CreateApproval(ctx, domain.Approval{
			ReportID: reportID,
			Level:    level,
			Status:   domain.ApprovalPending,
		})
		if err != nil {
			return err
		}
		return tx.InsertAudit(ctx, reportID, domain.AuditLevelOpened, map[string]any{
			"approval_id": created.ID,
			"level":       level,
		})
	})
	if err != nil {
		s.refused("create_for_level", err)
		return domain.Approval{}, err
	}
	s.logger.Info("approval level opened",
		zap.Int64("report_id", reportID),
		zap.Int64("approval_id", created.ID),
		zap.Int("level", level),
	)
	return created, nil
}

// RecordDecision applies a reviewer decision and recomputes the report
// status in the same transaction. The report is locked before the approval
// so decisions on different levels of one report cannot interleave.
func (s *Service) RecordDecision(ctx context.Context, in DecisionInput) (DecisionResult, error) {
	newStatus, err := in.Decision.ApprovalStatus()
	if err != nil {
		s.refused("record_decision", err)
		return DecisionResult{}, err
	}

	var result DecisionResult
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		peek, err := tx.GetApproval(ctx, in.ApprovalID)
		if err != nil {
			return err
		}
		report, err := tx.LockReport(ctx, peek.ReportID)
		if err != nil {
			return err
		}
		current, err := tx.LockApproval(ctx, in.ApprovalID)
		if err != nil {
			return err
		}
		if current.Status != domain.ApprovalPending {
			return fmt.Errorf("approval %d is %s: %w", current.ID, current.Status, domain.ErrAlreadyDecided)
		}
		if !report.Status.AcceptsDecisions() {
			return fmt.Errorf("report %d is %s: %w", report.ID, report.Status, domain.ErrReportClosed)
		}
		reviewer, err := tx.GetUser(ctx, in.ReviewerID)
		if err != nil {
			return err
		}
		if !domain.CanDecideLevel(reviewer, current.Level) {
			return fmt.Errorf("user %d (level %d) on level %d: %w", reviewer.ID, reviewer.ApprovalLevel, current.Level, domain.ErrNotAuthorized)
		}

		current.Status = newStatus
		current.ReviewedBy = &reviewer.ID
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			current.Notes = &notes
		} else {
			current.Notes = nil
		}
		updated, err := tx.UpdateApprovalDecision(ctx, current)
		if err != nil {
			return err
		}

		derived, err := s.recompute(ctx, tx, report)
		if err != nil {
			return err
		}
		if err := tx.InsertAudit(ctx, report.ID, domain.AuditDecided, map[string]any{
			"approval_id":   updated.ID,
			"level":         updated.Level,
			"decision":      in.Decision,
			"reviewed_by":   reviewer.ID,
			"report_status": derived,
		}); err != nil {
			return err
		}

		result = DecisionResult{Approval: updated, ReportStatus: derived}
		return nil
	})
	if err != nil {
		s.refused("record_decision", err)
		return DecisionResult{}, err
	}

	observability.ApprovalDecisions.WithLabelValues(strconv.Itoa(result.Approval.Level), string(in.Decision)).Inc()
	s.logger.Info("approval decision recorded",
		zap.Int64("report_id", result.Approval.ReportID),
		zap.Int64("approval_id", result.Approval.ID),
		zap.Int("level", result.Approval.Level),
		zap.String("decision", string(in.Decision)),
		zap.Stringer("report_status", result.ReportStatus),
	)
	return result, nil
}

// AggregateReportStatus derives the report status from its approvals without
// writing anything.
func (s *Service) AggregateReportStatus(ctx context.Context, reportID int64) (domain.ReportStatus, error) {
	p, err := s.Progress(ctx, reportID)
	if err != nil {
		return 0, err
	}
	return p.Derived, nil
}

func (s *Service) Progress(ctx context.Context, reportID int64) (domain.ReportProgress, error) {
	var p domain.ReportProgress
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		r, err := tx.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		approvals, err := tx.ListApprovals(ctx, reportID)
		if err != nil {
			return err
		}
		p = domain.ReportProgress{
			Report:    r,
			Approvals: approvals,
			Derived:   domain.AggregateReportStatus(r.Status, r.RequiredLevels, approvals),
		}
		return nil
	})
	return p, err
}

func (s *Service) AuditTrail(ctx context.Context, reportID int64) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetReport(ctx, reportID); err != nil {
			return err
		}
		var err error
		entries, err = tx.ListAudit(ctx, reportID)
		return err
	})
	return entries, err
}

// RecordArchive notes where the approved snapshot was stored.
func (s *Service) RecordArchive(ctx context.Context, reportID int64, objectKey string) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetReport(ctx, reportID); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, reportID, domain.AuditArchived, map[string]any{"object_key": objectKey})
	})
}

// MarkDone closes an Approved report once post-approval processing has
// finished. Already-done reports are left untouched.
func (s *Service) MarkDone(ctx context.Context, reportID int64) (domain.Report, error) {
	var out domain.Report
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		r, err := tx.LockReport(ctx, reportID)
		if err != nil {
			return err
		}
		if r.Status == domain.ReportDone {
			out = r
			return nil
		}
		if err := s.transition(ctx, tx, r, domain.ReportDone); err != nil {
			return err
		}
		if err := tx.InsertAudit(ctx, reportID, domain.AuditDone, nil); err != nil {
			return err
		}
		r.Status = domain.ReportDone
		out = r
		return nil
	})
	return out, err
}

// recompute persists the derived status when it differs from the stored one.
func (s *Service) recompute(ctx context.Context, tx storage.Tx, report domain.Report) (domain.ReportStatus, error) {
	approvals, err := tx.ListApprovals(ctx, report.ID)
	if err != nil {
		return 0, err
	}
	derived := domain.AggregateReportStatus(report.Status, report.RequiredLevels, approvals)
	if derived == report.Status {
		return derived, nil
	}
	if err := s.transition(ctx, tx, report, derived); err != nil {
		return 0, err
	}
	return derived, nil
}

func (s *Service) transition(ctx context.Context, tx storage.Tx, report domain.Report, to domain.ReportStatus) error {
	if !domain.CanTransition(report.Status, to) {
		return fmt.Errorf("report %d %s -> %s: %w", report.ID, report.Status, to, domain.ErrInvalidTransition)
	}
	if err := tx.UpdateReportStatus(ctx, report.ID, to); err != nil {
		return err
	}
	observability.ReportTransitions.WithLabelValues(report.Status.String(), to.String()).Inc()
	return nil
}

func (s *Service) refused(operation string, err error) {
	kind := domain.ErrorKind(err)
	if kind == "" {
		s.logger.Error("approval operation failed", zap.String("operation", operation), zap.Error(err))
		return
	}
	observability.ApprovalRefusals.WithLabelValues(operation, kind).Inc()
	s.logger.Warn("approval operation refused", zap.String("operation", operation), zap.String("reason", kind), zap.Error(err))
}
