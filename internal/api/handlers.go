package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"report-approval-workflow/internal/approval"
	"report-approval-workflow/internal/config"
	"report-approval-workflow/internal/domain"
	"report-approval-workflow/internal/storage"
	appTemporal "report-approval-workflow/internal/temporal"
)

type attachmentStore interface {
	PutAttachment(ctx context.Context, objectKey string, content []byte, contentType string) error
}

type reviewClient interface {
	StartReview(ctx context.Context, reportID int64) (workflowID string, alreadyStarted bool, err error)
	NotifyDecision(ctx context.Context, reportID int64, sig appTemporal.ApprovalDecidedSignal) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	cfg     config.Config
	svc     *approval.Service
	db      pinger
	blob    attachmentStore
	reviews reviewClient
	logger  *zap.Logger
}

type createUserRequest struct {
	Name          string `json:"name"`
	ApprovalLevel int    `json:"approval_level"`
}

type createReportRequest struct {
	Title          string `json:"title"`
	RequiredLevels []int  `json:"required_levels"`
}

type createApprovalRequest struct {
	Level int `json:"level"`
}

type decisionRequest struct {
	ReviewerID int64  `json:"reviewer_id"`
	Decision   string `json:"decision"`
	Notes      string `json:"notes,omitempty"`
}

type levelResponse struct {
	ApprovalID  int64  `json:"approval_id"`
	Level       int    `json:"level"`
	Status      string `json:"status"`
	ReviewedBy  *int64 `json:"reviewed_by,omitempty"`
	Notes       string `json:"notes,omitempty"`
	DecidedAt   string `json:"decided_at,omitempty"`
	StatusValue int    `json:"status_value"`
}

type statusResponse struct {
	ReportID       int64           `json:"report_id"`
	Status         string          `json:"status"`
	StatusValue    int             `json:"status_value"`
	DerivedStatus  string          `json:"derived_status"`
	RequiredLevels []int           `json:"required_levels"`
	Levels         []levelResponse `json:"levels"`
}

type decisionResponse struct {
	Approval     domain.Approval `json:"approval"`
	ReportStatus string          `json:"report_status"`
}

func NewHandler(cfg config.Config, svc *approval.Service, db pinger, blob attachmentStore, reviews reviewClient, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cfg: cfg, svc: svc, db: db, blob: blob, reviews: reviews, logger: logger}
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.CreateUser(r.Context(), req.Name, req.ApprovalLevel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request, userID int64) {
	if err := h.svc.DeleteUser(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := h.svc.CreateReport(r.Context(), req.Title, req.RequiredLevels)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request, reportID int64) {
	p, err := h.svc.Progress(r.Context(), reportID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request, reportID int64) {
	if err := h.svc.DeleteReport(r.Context(), reportID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitReport submits the report and starts its review workflow.
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request, reportID int64) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	report, err := h.svc.SubmitReport(ctx, reportID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	workflowID, alreadyStarted, err := h.reviews.StartReview(ctx, reportID)
	if err != nil {
		h.logger.Error("start review failed", zap.Int64("report_id", reportID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to start review"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"report_id":       report.ID,
		"workflow_id":     workflowID,
		"already_started": alreadyStarted,
		"status":          report.Status.String(),
	})
}

// UploadAttachment stores a file next to the report. The object-created
// event starts the review.
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request, reportID int64) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := r.ParseMultipartForm(h.cfg.AllowedUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid multipart payload"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file form field is required"})
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, h.cfg.AllowedUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read file"})
		return
	}
	if int64(len(body)) > h.cfg.AllowedUploadBytes {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file exceeds size limit"})
		return
	}
	contentType, ok := attachmentContentType(header.Filename, body)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported attachment type"})
		return
	}

	if _, err := h.svc.GetReport(ctx, reportID); err != nil {
		h.writeError(w, r, err)
		return
	}

	objectKey := storage.AttachmentKey(reportID, uuid.NewString(), header.Filename)
	if err := h.blob.PutAttachment(ctx, objectKey, body, contentType); err != nil {
		h.logger.Error("attachment upload failed", zap.Int64("report_id", reportID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to upload file"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"report_id":    reportID,
		"object_key":   objectKey,
		"content_type": contentType,
		"workflow_id":  appTemporal.WorkflowID(h.cfg.WorkflowIDPrefix, reportID),
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request, reportID int64) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.svc.Progress(ctx, reportID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp, err := newStatusResponse(p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request, reportID int64) {
	entries, err := h.svc.AuditTrail(r.Context(), reportID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h *Handler) CreateApproval(w http.ResponseWriter, r *http.Request, reportID int64) {
	var req createApprovalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.CreateForLevel(r.Context(), reportID, req.Level)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// RecordDecision commits the decision, then wakes the review workflow. The
// decision stands even if the signal cannot be delivered; the workflow
// resyncs on its own.
func (h *Handler) RecordDecision(w http.ResponseWriter, r *http.Request, approvalID int64) {
	var req decisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RecordDecision(r.Context(), approval.DecisionInput{
		ApprovalID: approvalID,
		ReviewerID: req.ReviewerID,
		Decision:   domain.Decision(req.Decision),
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sig := appTemporal.ApprovalDecidedSignal{
		ApprovalID:   res.Approval.ID,
		Level:        res.Approval.Level,
		Decision:     domain.Decision(req.Decision),
		ReportStatus: res.ReportStatus,
	}
	if err := h.reviews.NotifyDecision(r.Context(), res.Approval.ReportID, sig); err != nil {
		h.logger.Warn("decision signal not delivered",
			zap.Int64("report_id", res.Approval.ReportID),
			zap.Int64("approval_id", res.Approval.ID),
			zap.Error(err),
		)
	}

	label, err := res.ReportStatus.Label()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{Approval: res.Approval, ReportStatus: label})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func newStatusResponse(p domain.ReportProgress) (statusResponse, error) {
	status, err := p.Report.Status.Label()
	if err != nil {
		return statusResponse{}, err
	}
	derived, err := p.Derived.Label()
	if err != nil {
		return statusResponse{}, err
	}
	resp := statusResponse{
		ReportID:       p.Report.ID,
		Status:         status,
		StatusValue:    int(p.Report.Status),
		DerivedStatus:  derived,
		RequiredLevels: p.Report.RequiredLevels,
		Levels:         make([]levelResponse, 0, len(p.Approvals)),
	}
	for _, a := range p.Approvals {
		label, err := a.Status.Label()
		if err != nil {
			return statusResponse{}, err
		}
		lr := levelResponse{
			ApprovalID:  a.ID,
			Level:       a.Level,
			Status:      label,
			StatusValue: int(a.Status),
			ReviewedBy:  a.ReviewedBy,
		}
		if a.Notes != nil {
			lr.Notes = *a.Notes
		}
		if a.Status.IsDecided() {
			lr.DecidedAt = a.UpdatedAt.UTC().Format(time.RFC3339)
		}
		resp.Levels = append(resp.Levels, lr)
	}
	return resp, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateLevel),
		errors.Is(err, domain.ErrAlreadyDecided),
		errors.Is(err, domain.ErrReportClosed),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidLevel),
		errors.Is(err, domain.ErrInvalidDecision),
		errors.Is(err, domain.ErrInvalidEnumValue),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return false
	}
	return true
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
