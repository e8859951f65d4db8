package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"report-approval-workflow/internal/domain"
)

// ReviewService is the part of the approval service the activities drive.
type ReviewService interface {
	SubmitReport(ctx context.Context, reportID int64) (domain.Report, error)
	CreateForLevel(ctx context.Context, reportID int64, level int) (domain.Approval, error)
	Progress(ctx context.Context, reportID int64) (domain.ReportProgress, error)
	RecordArchive(ctx context.Context, reportID int64, objectKey string) error
	MarkDone(ctx context.Context, reportID int64) (domain.Report, error)
}

type ArchiveStore interface {
	PutArchive(ctx context.Context, reportID int64, snapshot []byte) (string, error)
}

type Activities struct {
	Reviews ReviewService
	Archive ArchiveStore
	Logger  *zap.Logger
	Now     func() time.Time
}

type SubmitReportInput struct {
	ReportID int64
}

type SubmitReportOutput struct {
	RequiredLevels []int
	Status         domain.ReportStatus
}

type OpenLevelInput struct {
	ReportID int64
	Level    int
}

type OpenLevelOutput struct {
	ApprovalID  int64
	AlreadyOpen bool
}

type ReportProgressInput struct {
	ReportID int64
}

type LevelState struct {
	Level      int
	ApprovalID int64
	Status     domain.ApprovalStatus
}

type ReportProgressOutput struct {
	Status domain.ReportStatus
	Levels []LevelState
}

// LevelStatus reports the status of level, or Pending when no slot exists yet.
func (o ReportProgressOutput) LevelStatus(level int) domain.ApprovalStatus {
	for _, l := range o.Levels {
		if l.Level == level {
			return l.Status
		}
	}
	return domain.ApprovalPending
}

type ArchiveReportInput struct {
	ReportID int64
}

type ArchiveReportOutput struct {
	ObjectKey string
}

type FinalizeReportInput struct {
	ReportID int64
}

type FinalizeReportOutput struct {
	Status domain.ReportStatus
}

type archiveSnapshot struct {
	Report     domain.Report     `json:"report"`
	Approvals  []domain.Approval `json:"approvals"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// SubmitReportActivity submits a Draft report and reports the current status
// otherwise, so a restarted workflow picks up where the store is.
func (a *Activities) SubmitReportActivity(ctx context.Context, input SubmitReportInput) (SubmitReportOutput, error) {
	p, err := a.Reviews.Progress(ctx, input.ReportID)
	if err != nil {
		return SubmitReportOutput{}, asActivityError(err)
	}
	report := p.Report
	if report.Status == domain.ReportDraft {
		report, err = a.Reviews.SubmitReport(ctx, input.ReportID)
		if err != nil {
			return SubmitReportOutput{}, asActivityError(err)
		}
	}
	a.logger().Info("report under review",
		zap.Int64("report_id", report.ID),
		zap.Ints("required_levels", report.RequiredLevels),
		zap.Stringer("status", report.Status),
	)
	return SubmitReportOutput{RequiredLevels: report.RequiredLevels, Status: report.Status}, nil
}

// OpenLevelActivity opens the slot for a level unless one already exists.
// A slot opened by hand, possibly already decided, counts as open even once
// the report has stopped accepting new slots.
func (a *Activities) OpenLevelActivity(ctx context.Context, input OpenLevelInput) (OpenLevelOutput, error) {
	if out, ok, err := a.existingSlot(ctx, input); err != nil || ok {
		return out, err
	}

	created, err := a.Reviews.CreateForLevel(ctx, input.ReportID, input.Level)
	if err == nil {
		return OpenLevelOutput{ApprovalID: created.ID}, nil
	}
	if !errors.Is(err, domain.ErrDuplicateLevel) {
		return OpenLevelOutput{}, asActivityError(err)
	}

	out, ok, err := a.existingSlot(ctx, input)
	if err != nil || ok {
		return out, err
	}
	return OpenLevelOutput{}, asActivityError(fmt.Errorf("report %d level %d vanished: %w", input.ReportID, input.Level, domain.ErrNotFound))
}

func (a *Activities) existingSlot(ctx context.Context, input OpenLevelInput) (OpenLevelOutput, bool, error) {
	p, err := a.Reviews.Progress(ctx, input.ReportID)
	if err != nil {
		return OpenLevelOutput{}, false, asActivityError(err)
	}
	for _, ap := range p.Approvals {
		if ap.Level == input.Level {
			return OpenLevelOutput{ApprovalID: ap.ID, AlreadyOpen: true}, true, nil
		}
	}
	return OpenLevelOutput{}, false, nil
}

func (a *Activities) ReportProgressActivity(ctx context.Context, input ReportProgressInput) (ReportProgressOutput, error) {
	p, err := a.Reviews.Progress(ctx, input.ReportID)
	if err != nil {
		return ReportProgressOutput{}, asActivityError(err)
	}
	out := ReportProgressOutput{Status: p.Derived, Levels: make([]LevelState, 0, len(p.Approvals))}
	for _, ap := range p.Approvals {
		out.Levels = append(out.Levels, LevelState{Level: ap.Level, ApprovalID: ap.ID, Status: ap.Status})
	}
	return out, nil
}

// ArchiveReportActivity writes the approved report and its approvals to the
// object store. The key is fixed per report, so retries overwrite.
func (a *Activities) ArchiveReportActivity(ctx context.Context, input ArchiveReportInput) (ArchiveReportOutput, error) {
	p, err := a.Reviews.Progress(ctx, input.ReportID)
	if err != nil {
		return ArchiveReportOutput{}, asActivityError(err)
	}
	if p.Derived != domain.ReportApproved && p.Derived != domain.ReportDone {
		return ArchiveReportOutput{}, asActivityError(fmt.Errorf("archive report %d in %s: %w", input.ReportID, p.Derived, domain.ErrInvalidTransition))
	}

	snapshot, err := json.Marshal(archiveSnapshot{
		Report:     p.Report,
		Approvals:  p.Approvals,
		ArchivedAt: a.now(),
	})
	if err != nil {
		return ArchiveReportOutput{}, err
	}
	objectKey, err := a.Archive.PutArchive(ctx, input.ReportID, snapshot)
	if err != nil {
		return ArchiveReportOutput{}, err
	}
	if err := a.Reviews.RecordArchive(ctx, input.ReportID, objectKey); err != nil {
		return ArchiveReportOutput{}, asActivityError(err)
	}
	a.logger().Info("report archived", zap.Int64("report_id", input.ReportID), zap.String("object_key", objectKey))
	return ArchiveReportOutput{ObjectKey: objectKey}, nil
}

func (a *Activities) FinalizeReportActivity(ctx context.Context, input FinalizeReportInput) (FinalizeReportOutput, error) {
	report, err := a.Reviews.MarkDone(ctx, input.ReportID)
	if err != nil {
		return FinalizeReportOutput{}, asActivityError(err)
	}
	a.logger().Info("report done", zap.Int64("report_id", report.ID))
	return FinalizeReportOutput{Status: report.Status}, nil
}

func (a *Activities) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *Activities) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now()
}

// asActivityError stops retries for rule violations; anything else is left
// to the activity retry policy.
func asActivityError(err error) error {
	kind := domain.ErrorKind(err)
	if kind == "" {
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), kind, err)
}
