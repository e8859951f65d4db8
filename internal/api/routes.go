package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", h.CreateUser)
		r.Delete("/users/{userId}", withID("userId", h.DeleteUser))

		r.Post("/reports", h.CreateReport)
		r.Route("/reports/{reportId}", func(r chi.Router) {
			r.Get("/", withID("reportId", h.GetReport))
			r.Delete("/", withID("reportId", h.DeleteReport))
			r.Post("/submit", withID("reportId", h.SubmitReport))
			r.Post("/attachments", withID("reportId", h.UploadAttachment))
			r.Get("/status", withID("reportId", h.GetStatus))
			r.Get("/audit", withID("reportId", h.GetAudit))
			r.Post("/approvals", withID("reportId", h.CreateApproval))
		})

		r.Post("/approvals/{approvalId}/decision", withID("approvalId", h.RecordDecision))
	})

	return r
}

func withID(param string, next func(http.ResponseWriter, *http.Request, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(chi.URLParam(r, param))
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid " + param})
			return
		}
		next(w, r, id)
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
