package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// WorkflowClient is the subset of client.Client used to start and signal
// report reviews.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
}

type ReviewStarter struct {
	Client         WorkflowClient
	TaskQueue      string
	IDPrefix       string
	ResyncInterval time.Duration
}

// StartReview starts the review workflow of a report. alreadyStarted is true
// when a review with the same id is still running.
func (s *ReviewStarter) StartReview(ctx context.Context, reportID int64) (workflowID string, alreadyStarted bool, err error) {
	workflowID = WorkflowID(s.IDPrefix, reportID)
	_, err = s.Client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                                       workflowID,
		TaskQueue:                                s.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, ReportReviewWorkflowName, WorkflowInput{
		ReportID:       reportID,
		ResyncInterval: s.ResyncInterval,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return workflowID, true, nil
		}
		return workflowID, false, fmt.Errorf("start review workflow %s: %w", workflowID, err)
	}
	return workflowID, false, nil
}

// NotifyDecision signals the running review of a report. A review that has
// already finished is not an error.
func (s *ReviewStarter) NotifyDecision(ctx context.Context, reportID int64, sig ApprovalDecidedSignal) error {
	workflowID := WorkflowID(s.IDPrefix, reportID)
	err := s.Client.SignalWorkflow(ctx, workflowID, "", ApprovalDecidedSignalName, sig)
	if err == nil {
		return nil
	}
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("signal review workflow %s: %w", workflowID, err)
}
