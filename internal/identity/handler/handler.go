package handler

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presence/internal/identity/models"
	idservice "presence/internal/identity/service"
	"presence/internal/platform/privacy"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/httputil"
	"presence/pkg/platform/validation"
	"presence/pkg/requestcontext"
)

// Service defines the registry operations used by the handler.
type Service interface {
	CreateIdentity(ctx context.Context, uid models.CardUID, attrs models.Attributes) (*models.CreatedIdentity, error)
	Resolve(ctx context.Context, did models.DID) (models.Record, error)
	RotateKey(ctx context.Context, did models.DID, newKey ed25519.PublicKey) (models.KeyVersion, error)
	ResolveByCard(ctx context.Context, uid models.CardUID) (models.Subject, error)
	DeactivateCard(ctx context.Context, uid models.CardUID) (models.Subject, error)
	ReactivateCard(ctx context.Context, uid models.CardUID) (models.Subject, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	Document(ctx context.Context, did models.DID) (*models.Document, error)
}

// Handler wires registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public registry endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identities", h.HandleCreate)
	r.Get("/identities", h.HandleList)
	r.Get("/identities/{did}", h.HandleResolve)
	r.Get("/identities/{did}/document", h.HandleDocument)
	r.Get("/cards/{uid}", h.HandleCard)
}

// RegisterAdmin mounts endpoints that require an admin bearer token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/identities/{did}/keys", h.HandleRotateKey)
	r.Post("/cards/{uid}/deactivate", h.HandleDeactivateCard)
	r.Post("/cards/{uid}/reactivate", h.HandleReactivateCard)
}

// HandleCreate handles POST /identities.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateIdentityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.CreateIdentity(ctx, req.ParsedCardUID(), req.Attributes())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create identity",
			"request_id", requestID,
			"card_uid", privacy.MaskCardUID(string(req.ParsedCardUID())),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toCreateResponse(created))
}

// HandleList handles GET /identities.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjects, err := h.service.ListSubjects(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list subjects",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := SubjectListResponse{Subjects: make([]SubjectResponse, 0, len(subjects)), Total: len(subjects)}
	for _, subj := range subjects {
		resp.Subjects = append(resp.Subjects, toSubjectResponse(subj))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleResolve handles GET /identities/{did}.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	did, ok := parseDID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Resolve(ctx, did)
	if err != nil {
		h.writeLookupError(ctx, w, "failed to resolve did", did, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

// HandleDocument handles GET /identities/{did}/document.
func (h *Handler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	did, ok := parseDID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Document(ctx, did)
	if err != nil {
		h.writeLookupError(ctx, w, "failed to render did document", did, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

// HandleRotateKey handles POST /identities/{did}/keys.
func (h *Handler) HandleRotateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	did, ok := parseDID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RotateKeyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	key, err := h.service.RotateKey(ctx, did, req.ParsedKey())
	if err != nil {
		h.writeLookupError(ctx, w, "failed to rotate key", did, err)
		return
	}

	h.logger.InfoContext(ctx, "key rotated",
		"request_id", requestID,
		"did", did,
		"version", key.Version,
		"actor", requestcontext.Actor(ctx),
	)
	rec := models.Record{DID: did, Keys: []models.KeyVersion{key}}
	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(rec).Keys[0])
}

// HandleCard handles GET /cards/{uid}.
func (h *Handler) HandleCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, err := models.ParseCardUID(chi.URLParam(r, "uid"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return
	}
	subj, err := h.service.ResolveByCard(ctx, uid)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to resolve card",
				"request_id", requestcontext.RequestID(ctx),
				"card_uid", privacy.MaskCardUID(string(uid)),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCardResponse(uid, subj))
}

// HandleDeactivateCard handles POST /cards/{uid}/deactivate.
func (h *Handler) HandleDeactivateCard(w http.ResponseWriter, r *http.Request) {
	h.handleCardStatus(w, r, h.service.DeactivateCard)
}

// HandleReactivateCard handles POST /cards/{uid}/reactivate.
func (h *Handler) HandleReactivateCard(w http.ResponseWriter, r *http.Request) {
	h.handleCardStatus(w, r, h.service.ReactivateCard)
}

func (h *Handler) handleCardStatus(w http.ResponseWriter, r *http.Request,
	update func(context.Context, models.CardUID) (models.Subject, error)) {
	ctx := r.Context()
	uid, err := models.ParseCardUID(chi.URLParam(r, "uid"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return
	}
	subj, err := update(ctx, uid)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to update card status",
				"request_id", requestcontext.RequestID(ctx),
				"card_uid", privacy.MaskCardUID(string(uid)),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "card status changed",
		"request_id", requestcontext.RequestID(ctx),
		"card_uid", privacy.MaskCardUID(string(uid)),
		"card_status", subj.CardStatus,
		"actor", requestcontext.Actor(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, toCardResponse(uid, subj))
}

func (h *Handler) writeLookupError(ctx context.Context, w http.ResponseWriter, msg string, did models.DID, err error) {
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"did", did,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func parseDID(w http.ResponseWriter, r *http.Request) (models.DID, bool) {
	raw := chi.URLParam(r, "did")
	if raw == "" || len(raw) > validation.MaxDIDLength {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "did path parameter is invalid"))
		return "", false
	}
	return models.DID(raw), true
}

var _ Service = (*idservice.Service)(nil)
