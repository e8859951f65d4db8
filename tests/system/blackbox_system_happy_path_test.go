//go:build system

package system_test

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strings"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/client"

	"report-approval-workflow/internal/domain"
	appTemporal "report-approval-workflow/internal/temporal"
)

var _ = Describe("System blackbox two-level approval", Ordered, func() {
	var repoRoot string
	var cfg systemTestConfig

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		var err error
		repoRoot, err = findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services (including worker) are already running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.APIBaseURL+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.APIBaseURL+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())
		Expect(applyMigration(repoRoot, cfg.PostgresDSN)).To(Succeed())
	})

	It("submits a report over HTTP and approves it level by level through a real worker", func() {
		By("creating reviewers and a report that needs levels 1 and 2")
		junior, err := doJSON[domain.User](http.MethodPost, cfg.APIBaseURL+"/v1/users", map[string]any{"name": "junior", "approval_level": 1})
		Expect(err).ToNot(HaveOccurred())
		senior, err := doJSON[domain.User](http.MethodPost, cfg.APIBaseURL+"/v1/users", map[string]any{"name": "senior", "approval_level": 2})
		Expect(err).ToNot(HaveOccurred())
		report, err := doJSON[domain.Report](http.MethodPost, cfg.APIBaseURL+"/v1/reports", map[string]any{"title": "Q3 travel", "required_levels": []int{2, 1}})
		Expect(err).ToNot(HaveOccurred())
		Expect(report.RequiredLevels).To(Equal([]int{1, 2}))

		By("submitting the report, which starts the review workflow")
		submitted, err := doJSON[submitResponse](http.MethodPost, fmt.Sprintf("%s/v1/reports/%d/submit", cfg.APIBaseURL, report.ID), nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(submitted.Status).To(Equal("Submitted"))
		Expect(submitted.WorkflowID).ToNot(BeEmpty())

		statusURL := fmt.Sprintf("%s/v1/reports/%d/status", cfg.APIBaseURL, report.ID)
		decide := func(level int, reviewer domain.User) {
			var approvalID int64
			Eventually(func() bool {
				st, err := doJSON[statusResponse](http.MethodGet, statusURL, nil)
				Expect(err).ToNot(HaveOccurred())
				var ok bool
				approvalID, ok = st.approvalFor(level)
				return ok
			}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(BeTrue())

			_, err := doJSON[map[string]any](http.MethodPost, fmt.Sprintf("%s/v1/approvals/%d/decision", cfg.APIBaseURL, approvalID), map[string]any{
				"reviewer_id": reviewer.ID,
				"decision":    "approve",
			})
			Expect(err).ToNot(HaveOccurred())
		}

		By("approving level 1 once the workflow opens it")
		decide(1, junior)
		By("approving level 2 once the workflow opens it")
		decide(2, senior)

		By("polling until the report is done")
		Eventually(func() string {
			st, err := doJSON[statusResponse](http.MethodGet, statusURL, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(st.Status).ToNot(Equal("Rejected"))
			return st.Status
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(Equal("Done"))

		By("validating workflow history")
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		var result appTemporal.WorkflowResult
		Expect(temporalClient.GetWorkflow(context.Background(), submitted.WorkflowID, "").Get(context.Background(), &result)).To(Succeed())
		Expect(result.Status).To(Equal(domain.ReportDone))
		Expect(result.ArchiveKey).To(HaveSuffix("/approval.json"))

		names, err := collectActivityNames(context.Background(), temporalClient, submitted.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		for _, expected := range cfg.ExpectedActivities {
			Expect(names).To(ContainElement(expected))
		}
		Expect(names[0]).To(Equal("SubmitReportActivity"))
		Expect(names[len(names)-1]).To(Equal("FinalizeReportActivity"))

		signals, err := collectWorkflowSignalNames(context.Background(), temporalClient, submitted.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(signals).To(HaveLen(2))
		Expect(signals).To(HaveEach(appTemporal.ApprovalDecidedSignalName))

		By("verifying the audit trail in Postgres")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		states, err := fetchStringRows(db, `SELECT state FROM report_audit WHERE report_id = $1 ORDER BY id`, report.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(strings.Join(states, ",")).To(Equal("SUBMITTED,LEVEL_OPENED,DECIDED,LEVEL_OPENED,DECIDED,ARCHIVED,DONE"))
	})
})
