package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presence/internal/credential/issuer"
	"presence/internal/credential/models"
	"presence/internal/credential/verifier"
	idmodels "presence/internal/identity/models"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/httputil"
	"presence/pkg/platform/validation"
	"presence/pkg/requestcontext"
)

const contentTypeCBOR = "application/cbor"

// Issuer defines the issuance operations used by the handler.
type Issuer interface {
	Issue(ctx context.Context, subject idmodels.DID) (*models.Credential, error)
	Revoke(ctx context.Context, id models.CredentialID, reason string) error
	Get(ctx context.Context, id models.CredentialID) (*models.Credential, error)
	ListBySubject(ctx context.Context, subject idmodels.DID) ([]models.Credential, error)
	Eligibility(ctx context.Context, subject idmodels.DID) (models.Eligibility, error)
	Stats(ctx context.Context) (models.Stats, error)
}

type Verifier interface {
	VerifyRaw(ctx context.Context, raw []byte) (models.VerifyResult, error)
}

type SnapshotBuilder interface {
	Build(ctx context.Context) (*verifier.Snapshot, error)
}

type Handler struct {
	issuer    Issuer
	verifier  Verifier
	snapshots SnapshotBuilder
	logger    *slog.Logger
}

func New(issuer Issuer, verifier Verifier, snapshots SnapshotBuilder, logger *slog.Logger) *Handler {
	return &Handler{issuer: issuer, verifier: verifier, snapshots: snapshots, logger: logger}
}

// Register mounts the public credential endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials/issue", h.HandleIssue)
	r.Post("/credentials/verify", h.HandleVerify)
	r.Get("/credentials/stats", h.HandleStats)
	r.Get("/credentials/subject/{did}", h.HandleListBySubject)
	r.Get("/credentials/subject/{did}/eligibility", h.HandleEligibility)
	r.Get("/credentials/{id}", h.HandleGet)
	r.Get("/verifier/snapshot", h.HandleSnapshot)
}

// RegisterAdmin mounts endpoints that require an admin bearer token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/credentials/{id}/revoke", h.HandleRevoke)
}

// HandleIssue handles POST /credentials/issue.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	credential, err := h.issuer.Issue(ctx, req.ParsedDID())
	if err != nil {
		h.logFailure(ctx, "failed to issue credential", err, "did", req.DID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "credential issued",
		"request_id", requestID,
		"credential_id", credential.ID,
		"did", credential.SubjectDID,
	)
	httputil.WriteJSON(w, http.StatusCreated, models.ToDocument(*credential))
}

// HandleVerify handles POST /credentials/verify. Invalid credentials are a
// normal outcome and are answered with 200.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validation.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.ErrorResponse{Error: "request_too_large"})
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read request body"))
		return
	}

	result, err := h.verifier.VerifyRaw(ctx, raw)
	if err != nil {
		h.logFailure(ctx, "failed to verify credential", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{
		Valid:  result.Valid,
		Reason: string(result.Reason),
		Detail: result.Detail,
	})
}

// HandleRevoke handles POST /credentials/{id}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id, ok := parseCredentialID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.issuer.Revoke(ctx, id, req.Reason); err != nil {
		h.logFailure(ctx, "failed to revoke credential", err, "credential_id", id)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "credential revoked",
		"request_id", requestID,
		"credential_id", id,
		"actor", requestcontext.Actor(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, RevokeResponse{
		CredentialID: id.String(),
		Status:       string(models.StatusRevoked),
	})
}

// HandleGet handles GET /credentials/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := parseCredentialID(w, r)
	if !ok {
		return
	}
	credential, err := h.issuer.Get(ctx, id)
	if err != nil {
		h.logFailure(ctx, "failed to load credential", err, "credential_id", id)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToDocument(*credential))
}

// HandleListBySubject handles GET /credentials/subject/{did}.
func (h *Handler) HandleListBySubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	did, ok := parseDID(w, r)
	if !ok {
		return
	}
	list, err := h.issuer.ListBySubject(ctx, did)
	if err != nil {
		h.logFailure(ctx, "failed to list credentials", err, "did", did)
		httputil.WriteError(w, err)
		return
	}
	resp := CredentialListResponse{Credentials: make([]models.Document, 0, len(list)), Total: len(list)}
	for _, c := range list {
		resp.Credentials = append(resp.Credentials, models.ToDocument(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleEligibility handles GET /credentials/subject/{did}/eligibility.
func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	did, ok := parseDID(w, r)
	if !ok {
		return
	}
	e, err := h.issuer.Eligibility(ctx, did)
	if err != nil {
		h.logFailure(ctx, "failed to compute eligibility", err, "did", did)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEligibilityResponse(e))
}

// HandleStats handles GET /credentials/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.issuer.Stats(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to compute credential stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatsResponse{
		Total:                  stats.Total,
		Valid:                  stats.Valid,
		Revoked:                stats.Revoked,
		AverageAttendanceRatio: stats.AverageAttendanceRatio,
	})
}

// HandleSnapshot handles GET /verifier/snapshot. Clients asking for
// application/cbor get the signed encoding offline verifiers load.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := h.snapshots.Build(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to build verifier snapshot", err)
		httputil.WriteError(w, err)
		return
	}

	if r.Header.Get("Accept") == contentTypeCBOR {
		raw, err := verifier.EncodeSnapshot(*snap)
		if err != nil {
			h.logFailure(ctx, "failed to encode verifier snapshot", err)
			httputil.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentTypeCBOR)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

// logFailure logs unexpected failures; expected domain outcomes are not logged.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
		h.logger.ErrorContext(ctx, msg, args...)
	}
}

func parseCredentialID(w http.ResponseWriter, r *http.Request) (models.CredentialID, bool) {
	id, err := models.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return "", false
	}
	return id, true
}

func parseDID(w http.ResponseWriter, r *http.Request) (idmodels.DID, bool) {
	raw := chi.URLParam(r, "did")
	if raw == "" || len(raw) > validation.MaxDIDLength {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "did path parameter is invalid"))
		return "", false
	}
	return idmodels.DID(raw), true
}

var (
	_ Issuer          = (*issuer.Service)(nil)
	_ Verifier        = (*verifier.Verifier)(nil)
	_ SnapshotBuilder = (*verifier.Snapshotter)(nil)
)
