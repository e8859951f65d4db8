package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"report-approval-workflow/internal/domain"
)

const (
	ReportReviewWorkflowName = "ReportReviewWorkflow"

	defaultResyncInterval = 15 * time.Minute
)

type WorkflowInput struct {
	ReportID int64
	// ResyncInterval bounds how long the workflow waits for a signal before
	// re-reading progress. Zero means the default.
	ResyncInterval time.Duration
}

type WorkflowResult struct {
	ReportID   int64
	Status     domain.ReportStatus
	ArchiveKey string
}

// WorkflowID is the id the review of a report runs under. Starters and
// signallers must agree on it.
func WorkflowID(prefix string, reportID int64) string {
	return fmt.Sprintf("%s-%d", prefix, reportID)
}

func ReportReviewWorkflow(ctx workflow.Context, input WorkflowInput) (WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	resync := input.ResyncInterval
	if resync <= 0 {
		resync = defaultResyncInterval
	}

	var submitted SubmitReportOutput
	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicySubmitReport), (*Activities).SubmitReportActivity, SubmitReportInput{
		ReportID: input.ReportID,
	}).Get(ctx, &submitted); err != nil {
		return WorkflowResult{}, err
	}

	decided := workflow.GetSignalChannel(ctx, ApprovalDecidedSignalName)
	defer func() {
		if n := drainDecisions(decided); n > 0 {
			logger.Info("late approval decisions drained", "ReportID", input.ReportID, "Count", n)
		}
	}()

	switch submitted.Status {
	case domain.ReportRejected, domain.ReportDone:
		return WorkflowResult{ReportID: input.ReportID, Status: submitted.Status}, nil
	}

	if submitted.Status != domain.ReportApproved {
	levels:
		for _, level := range submitted.RequiredLevels {
			var opened OpenLevelOutput
			if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyOpenLevel), (*Activities).OpenLevelActivity, OpenLevelInput{
				ReportID: input.ReportID,
				Level:    level,
			}).Get(ctx, &opened); err != nil {
				return WorkflowResult{}, err
			}
			logger.Info("approval level open", "ReportID", input.ReportID, "Level", level, "ApprovalID", opened.ApprovalID, "AlreadyOpen", opened.AlreadyOpen)

			for {
				var progress ReportProgressOutput
				if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyReportProgress), (*Activities).ReportProgressActivity, ReportProgressInput{
					ReportID: input.ReportID,
				}).Get(ctx, &progress); err != nil {
					return WorkflowResult{}, err
				}
				switch {
				case progress.Status == domain.ReportRejected:
					return WorkflowResult{ReportID: input.ReportID, Status: domain.ReportRejected}, nil
				case progress.Status == domain.ReportApproved:
					// Later levels may have been opened and approved by hand.
					break levels
				case progress.LevelStatus(level) == domain.ApprovalApproved:
					continue levels
				}
				awaitDecision(ctx, decided, resync)
			}
		}
	}

	var archived ArchiveReportOutput
	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyArchiveReport), (*Activities).ArchiveReportActivity, ArchiveReportInput{
		ReportID: input.ReportID,
	}).Get(ctx, &archived); err != nil {
		return WorkflowResult{}, err
	}

	var finalized FinalizeReportOutput
	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyFinalizeReport), (*Activities).FinalizeReportActivity, FinalizeReportInput{
		ReportID: input.ReportID,
	}).Get(ctx, &finalized); err != nil {
		return WorkflowResult{}, err
	}

	return WorkflowResult{ReportID: input.ReportID, Status: finalized.Status, ArchiveKey: archived.ObjectKey}, nil
}

// awaitDecision blocks until a decision signal arrives or resync elapses.
func awaitDecision(ctx workflow.Context, decided workflow.ReceiveChannel, resync time.Duration) {
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(decided, func(c workflow.ReceiveChannel, _ bool) {
		var sig ApprovalDecidedSignal
		c.Receive(ctx, &sig)
		workflow.GetLogger(ctx).Info("approval decided", "ApprovalID", sig.ApprovalID, "Level", sig.Level, "Decision", string(sig.Decision))
	})
	selector.AddFuture(workflow.NewTimer(timerCtx, resync), func(workflow.Future) {})
	selector.Select(ctx)
}

// drainDecisions consumes decision signals that arrived after the last wait
// so the run does not close with unhandled signals.
func drainDecisions(decided workflow.ReceiveChannel) int {
	n := 0
	for {
		var sig ApprovalDecidedSignal
		if !decided.ReceiveAsync(&sig) {
			return n
		}
		n++
	}
}
