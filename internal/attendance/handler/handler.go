package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"presence/internal/attendance/models"
	attservice "presence/internal/attendance/service"
	idmodels "presence/internal/identity/models"
	"presence/internal/platform/privacy"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/httputil"
	"presence/pkg/requestcontext"
)

// Service defines the ledger operations used by the handler.
type Service interface {
	RecordEvent(ctx context.Context, subject idmodels.DID, ts time.Time) (models.Event, error)
	RecordByCard(ctx context.Context, uid idmodels.CardUID, ts time.Time) (models.Event, error)
	Events(ctx context.Context, subject idmodels.DID) ([]models.Event, error)
	AttendanceRatio(ctx context.Context, subject idmodels.DID, totalRequired int) (float64, error)
	Summary(ctx context.Context) (models.Summary, error)
}

type Handler struct {
	service          Service
	requiredSessions int
	logger           *slog.Logger
}

// New builds the handler. requiredSessions is the default denominator for
// ratio queries that do not pass ?required=.
func New(service Service, requiredSessions int, logger *slog.Logger) *Handler {
	return &Handler{service: service, requiredSessions: requiredSessions, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/attendance", h.HandleRecord)
	r.Get("/attendance/stats", h.HandleSummary)
	r.Get("/attendance/{did}", h.HandleEvents)
	r.Get("/attendance/{did}/ratio", h.HandleRatio)
}

// HandleRecord handles POST /attendance.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var event models.Event
	var err error
	if req.ParsedCardUID() != "" {
		event, err = h.service.RecordByCard(ctx, req.ParsedCardUID(), req.ParsedTimestamp())
	} else {
		event, err = h.service.RecordEvent(ctx, req.ParsedDID(), req.ParsedTimestamp())
	}
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeDuplicateForDay) || dErrors.HasCode(err, dErrors.CodeUnknownSubject) {
			h.logger.InfoContext(ctx, "attendance rejected",
				"request_id", requestID,
				"did", req.DID,
				"card_uid", privacy.MaskCardUID(req.CardUID),
				"reason", dErrors.CodeOf(err),
			)
		} else {
			h.logger.ErrorContext(ctx, "failed to record attendance",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toEventResponse(event))
}

// HandleEvents handles GET /attendance/{did}.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := idmodels.DID(chi.URLParam(r, "did"))

	events, err := h.service.Events(ctx, subject)
	if err != nil {
		h.writeError(ctx, w, "failed to list attendance", err)
		return
	}
	resp := EventsResponse{
		DID:              subject.String(),
		Events:           make([]EventResponse, 0, len(events)),
		Total:            len(events),
		SessionsRequired: h.requiredSessions,
		Percentage:       models.Ratio(len(events), h.requiredSessions) * 100,
	}
	for _, e := range events {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRatio handles GET /attendance/{did}/ratio.
func (h *Handler) HandleRatio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := idmodels.DID(chi.URLParam(r, "did"))

	required := h.requiredSessions
	if raw := r.URL.Query().Get("required"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 10_000 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "required must be a positive integer"))
			return
		}
		required = n
	}

	ratio, err := h.service.AttendanceRatio(ctx, subject, required)
	if err != nil {
		h.writeError(ctx, w, "failed to compute attendance ratio", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RatioResponse{
		DID:              subject.String(),
		Ratio:            ratio,
		SessionsRequired: required,
	})
}

// HandleSummary handles GET /attendance/stats.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.service.Summary(ctx)
	if err != nil {
		h.writeError(ctx, w, "failed to summarize attendance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SummaryResponse{
		TotalSubjects:            summary.TotalSubjects,
		TotalEvents:              summary.TotalEvents,
		RequiredSessions:         summary.RequiredSessions,
		AverageAttendancePercent: summary.AverageAttendancePercent,
		OverallAttendancePercent: summary.OverallAttendancePercent,
		SubjectsWithCertificates: summary.SubjectsWithCertificates,
		SubjectsMeetingThreshold: summary.SubjectsMeetingThreshold,
	})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

var _ Service = (*attservice.Service)(nil)
