// Package handler exposes the verification service over HTTP.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/service"
	id "carecheck/pkg/domain"
	dErrors "carecheck/pkg/domain-errors"
	"carecheck/pkg/platform/httputil"
	request "carecheck/pkg/platform/middleware/request"
	"carecheck/pkg/requestcontext"
)

const maxEmailBytes = 2 << 20

// Service is the verification application layer as the handlers use it.
type Service interface {
	SubmitIdentity(ctx context.Context, candidateID id.CandidateID, sub service.IdentitySubmission) (*models.Record, error)
	SubmitWWCC(ctx context.Context, candidateID id.CandidateID, sub service.WWCCSubmission) (*models.Record, error)
	TriggerPhase(ctx context.Context, recordID id.VerificationID, phase string) (*models.Record, error)
	Status(ctx context.Context, candidateID id.CandidateID) (*models.Record, error)
	VerifyIdentity(ctx context.Context, recordID id.VerificationID) (*models.Record, error)
	RejectIdentity(ctx context.Context, recordID id.VerificationID, reason string) (*models.Record, error)
	ConfirmWWCC(ctx context.Context, recordID id.VerificationID) (*models.Record, error)
	RejectWWCC(ctx context.Context, recordID id.VerificationID, reason string) (*models.Record, error)
	ApproveCrossCheck(ctx context.Context, recordID id.VerificationID) (*models.Record, error)
	IngestOCGEmail(ctx context.Context, html string) (*service.IngestSummary, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// RegisterCandidateRoutes mounts the routes a signed-in candidate uses. The
// router must already require authentication.
func (h *Handler) RegisterCandidateRoutes(r chi.Router) {
	r.Put("/v1/verification/identity", h.HandleSubmitIdentity)
	r.Put("/v1/verification/wwcc", h.HandleSubmitWWCC)
	r.Get("/v1/verification/status", h.HandleStatus)
	r.Post("/v1/verifications/{id}/phases/{phase}", h.HandleTriggerPhase)
}

// RegisterAdminRoutes mounts the manual override routes. The router must
// already require an admin role.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/v1/admin/verifications/{id}/identity:verify", h.HandleVerifyIdentity)
	r.Post("/v1/admin/verifications/{id}/identity:reject", h.HandleRejectIdentity)
	r.Post("/v1/admin/verifications/{id}/wwcc:confirm", h.HandleConfirmWWCC)
	r.Post("/v1/admin/verifications/{id}/wwcc:reject", h.HandleRejectWWCC)
	r.Post("/v1/admin/verifications/{id}/cross-check:approve", h.HandleApproveCrossCheck)
}

// RegisterInternalRoutes mounts the inbound mail route. The router must
// already require the admin token.
func (h *Handler) RegisterInternalRoutes(r chi.Router) {
	r.Post("/v1/internal/ocg/emails", h.HandleIngestOCGEmail)
}

func (h *Handler) HandleSubmitIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[SubmitIdentityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rec, err := h.service.SubmitIdentity(ctx, candidateFromContext(ctx), req.submission())
	if err != nil {
		h.fail(ctx, w, "identity submission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toStatusResponse(rec))
}

func (h *Handler) HandleSubmitWWCC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[SubmitWWCCRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rec, err := h.service.SubmitWWCC(ctx, candidateFromContext(ctx), req.submission())
	if err != nil {
		h.fail(ctx, w, "wwcc submission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toStatusResponse(rec))
}

// HandleStatus is the status poll. Reading also repairs stuck checks.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.service.Status(ctx, candidateFromContext(ctx))
	if err != nil {
		h.fail(ctx, w, "status read failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(rec))
}

func (h *Handler) HandleTriggerPhase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.TriggerPhase(ctx, recordID, chi.URLParam(r, "phase"))
	if err != nil {
		h.fail(ctx, w, "phase trigger failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(rec))
}

func (h *Handler) HandleVerifyIdentity(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.service.VerifyIdentity)
}

func (h *Handler) HandleConfirmWWCC(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.service.ConfirmWWCC)
}

func (h *Handler) HandleApproveCrossCheck(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.service.ApproveCrossCheck)
}

func (h *Handler) HandleRejectIdentity(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, h.service.RejectIdentity)
}

func (h *Handler) HandleRejectWWCC(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, h.service.RejectWWCC)
}

func (h *Handler) override(w http.ResponseWriter, r *http.Request, apply func(context.Context, id.VerificationID) (*models.Record, error)) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	rec, err := apply(ctx, recordID)
	if err != nil {
		h.fail(ctx, w, "admin override failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(rec))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, apply func(context.Context, id.VerificationID, string) (*models.Record, error)) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReasonRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	rec, err := apply(ctx, recordID, req.Reason)
	if err != nil {
		h.fail(ctx, w, "admin rejection failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(rec))
}

// HandleIngestOCGEmail takes the raw HTML body of an OCG notification.
func (h *Handler) HandleIngestOCGEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEmailBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "email body too large or unreadable"))
		return
	}
	if len(body) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "email body is required"))
		return
	}
	summary, err := h.service.IngestOCGEmail(ctx, string(body))
	if err != nil {
		h.fail(ctx, w, "ocg email ingestion failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIngestResponse(summary))
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (id.VerificationID, bool) {
	recordID, err := id.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.VerificationID{}, false
	}
	return recordID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func candidateFromContext(ctx context.Context) id.CandidateID {
	return id.CandidateFromUser(requestcontext.UserID(ctx))
}
