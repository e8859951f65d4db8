package temporal

import "go.temporal.io/sdk/workflow"

// Registry is the part of a worker, or a test environment, that review
// registration needs.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivity(a interface{})
}

// RegisterReview registers the review workflow and its activities.
func RegisterReview(r Registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(ReportReviewWorkflow, workflow.RegisterOptions{Name: ReportReviewWorkflowName})
	r.RegisterActivity(acts.SubmitReportActivity)
	r.RegisterActivity(acts.OpenLevelActivity)
	r.RegisterActivity(acts.ReportProgressActivity)
	r.RegisterActivity(acts.ArchiveReportActivity)
	r.RegisterActivity(acts.FinalizeReportActivity)
}
