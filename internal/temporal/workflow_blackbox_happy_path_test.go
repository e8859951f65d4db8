package temporal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"report-approval-workflow/internal/domain"
)

type activityTrace struct {
	mu sync.Mutex

	startedOrder   []string
	completedOrder []string

	submitOut  *SubmitReportOutput
	openedIn   []OpenLevelInput
	archiveOut *ArchiveReportOutput
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) recordCompleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedOrder = append(t.completedOrder, name)
}

var _ = Describe("ReportReviewWorkflow blackbox happy path", func() {
	It("walks a single-level report from draft to done", func() {
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestWorkflowEnvironment()

		h := newHarness()
		RegisterReview(env, h.acts)
		trace := &activityTrace{}

		env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, args converter.EncodedValues) {
			trace.recordStarted(info.ActivityType.Name)
			if info.ActivityType.Name == "OpenLevelActivity" {
				var in OpenLevelInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.openedIn = append(trace.openedIn, in)
				trace.mu.Unlock()
			}
		})
		env.SetOnActivityCompletedListener(func(info *activity.Info, result converter.EncodedValue, _ error) {
			trace.recordCompleted(info.ActivityType.Name)
			switch info.ActivityType.Name {
			case "SubmitReportActivity":
				var out SubmitReportOutput
				_ = result.Get(&out)
				trace.mu.Lock()
				trace.submitOut = &out
				trace.mu.Unlock()
			case "ArchiveReportActivity":
				var out ArchiveReportOutput
				_ = result.Get(&out)
				trace.mu.Lock()
				trace.archiveOut = &out
				trace.mu.Unlock()
			}
		})

		By("creating a draft report and a reviewer")
		report := h.draftReport(GinkgoT(), 1)
		reviewer, err := h.svc.CreateUser(context.Background(), "approver", 1)
		Expect(err).ToNot(HaveOccurred())

		By("approving the open level once the workflow is waiting")
		env.RegisterDelayedCallback(func() {
			res := h.decideLevel(GinkgoT(), report.ID, 1, reviewer, domain.DecisionApprove)
			env.SignalWorkflow(ApprovalDecidedSignalName, ApprovalDecidedSignal{
				ApprovalID:   res.Approval.ID,
				Level:        1,
				Decision:     domain.DecisionApprove,
				ReportStatus: res.ReportStatus,
			})
		}, 30*time.Second)

		env.ExecuteWorkflow(ReportReviewWorkflow, WorkflowInput{ReportID: report.ID})

		By("validating workflow completes successfully")
		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())

		var wfResult WorkflowResult
		Expect(env.GetWorkflowResult(&wfResult)).To(Succeed())
		Expect(wfResult.ReportID).To(Equal(report.ID))
		Expect(wfResult.Status).To(Equal(domain.ReportDone))

		By("validating activity order")
		expectedOrder := []string{
			"SubmitReportActivity",
			"OpenLevelActivity",
			"ReportProgressActivity",
			"ReportProgressActivity",
			"ArchiveReportActivity",
			"FinalizeReportActivity",
		}
		Expect(trace.startedOrder).To(Equal(expectedOrder))
		Expect(trace.completedOrder).To(Equal(expectedOrder))

		Expect(trace.submitOut).ToNot(BeNil())
		Expect(trace.submitOut.RequiredLevels).To(Equal([]int{1}))
		Expect(trace.openedIn).To(Equal([]OpenLevelInput{{ReportID: report.ID, Level: 1}}))
		Expect(trace.archiveOut).ToNot(BeNil())

		By("validating the archived snapshot and audit trail")
		snapshot, ok := h.archive.get(trace.archiveOut.ObjectKey)
		Expect(ok).To(BeTrue())
		var archived archiveSnapshot
		Expect(json.Unmarshal(snapshot, &archived)).To(Succeed())
		Expect(archived.Report.ID).To(Equal(report.ID))
		Expect(archived.Approvals).To(HaveLen(1))
		Expect(archived.Approvals[0].Status).To(Equal(domain.ApprovalApproved))

		trail, err := h.svc.AuditTrail(context.Background(), report.ID)
		Expect(err).ToNot(HaveOccurred())
		states := make([]domain.AuditState, 0, len(trail))
		for _, e := range trail {
			states = append(states, e.State)
		}
		Expect(states).To(Equal([]domain.AuditState{
			domain.AuditSubmitted,
			domain.AuditLevelOpened,
			domain.AuditDecided,
			domain.AuditArchived,
			domain.AuditDone,
		}))
	})
})
