package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	ActivityPolicySubmitReport   = "submit_report"
	ActivityPolicyOpenLevel      = "open_level"
	ActivityPolicyReportProgress = "report_progress"
	ActivityPolicyArchiveReport  = "archive_report"
	ActivityPolicyFinalizeReport = "finalize_report"
)

type activityPolicy struct {
	StartToCloseTimeout time.Duration
	RetryPolicy         temporal.RetryPolicy
}

var storeRetry = temporal.RetryPolicy{
	InitialInterval:    1 * time.Second,
	BackoffCoefficient: 2,
	MaximumInterval:    10 * time.Second,
	MaximumAttempts:    3,
}

var activityPolicies = map[string]activityPolicy{
	ActivityPolicySubmitReport: {
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         storeRetry,
	},
	ActivityPolicyOpenLevel: {
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         storeRetry,
	},
	ActivityPolicyReportProgress: {
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         storeRetry,
	},
	ActivityPolicyArchiveReport: {
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	},
	ActivityPolicyFinalizeReport: {
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         storeRetry,
	},
}

func ActivityOptionsFor(policyName string) (workflow.ActivityOptions, error) {
	policy, ok := activityPolicies[policyName]
	if !ok {
		return workflow.ActivityOptions{}, fmt.Errorf("unknown activity policy: %s", policyName)
	}

	retry := policy.RetryPolicy
	return workflow.ActivityOptions{
		StartToCloseTimeout: policy.StartToCloseTimeout,
		RetryPolicy:         &retry,
	}, nil
}

func mustActivityContext(ctx workflow.Context, policyName string) workflow.Context {
	ao, err := ActivityOptionsFor(policyName)
	if err != nil {
		panic(err)
	}
	return workflow.WithActivityOptions(ctx, ao)
}
