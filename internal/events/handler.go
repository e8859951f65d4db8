package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type ReviewStarter interface {
	StartReview(ctx context.Context, reportID int64) (workflowID string, alreadyStarted bool, err error)
}

// StartReviewOnAttachment starts the review workflow of the report an
// attachment was uploaded for.
func StartReviewOnAttachment(starter ReviewStarter, logger *zap.Logger, timeout time.Duration) func(context.Context, AttachmentEvent) error {
	return func(parent context.Context, event AttachmentEvent) error {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		workflowID, alreadyStarted, err := starter.StartReview(ctx, event.ReportID)
		if err != nil {
			return err
		}
		if alreadyStarted {
			logger.Info("review already running",
				zap.Int64("report_id", event.ReportID),
				zap.String("workflow_id", workflowID),
				zap.String("object_key", event.ObjectKey),
			)
			return nil
		}
		logger.Info("review started",
			zap.Int64("report_id", event.ReportID),
			zap.String("workflow_id", workflowID),
			zap.String("object_key", event.ObjectKey),
		)
		return nil
	}
}
