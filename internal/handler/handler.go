package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"offer-tracker/internal/features"
	"offer-tracker/internal/filters"
	"offer-tracker/internal/models"
	"offer-tracker/internal/offers"
	"offer-tracker/internal/service"
	"offer-tracker/internal/settings"
	"offer-tracker/internal/theme"
	"offer-tracker/internal/validation"
)

const defaultUpcomingDays = 7

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
	logger      *slog.Logger
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	Logger      *slog.Logger
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
		Logger:      slog.Default(),
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultHandlerOptions().MaxBodySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
		logger:      opts.Logger,
	}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/offers", func(r chi.Router) {
		r.Get("/", h.ListOffers)
		r.Post("/", h.CreateOffer)
		r.Put("/", h.ImportOffers)
		r.Get("/duplicates", h.FindDuplicate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetOffer)
			r.Patch("/", h.UpdateOffer)
			r.Delete("/", h.DeleteOffer)
			r.Put("/followup", h.RescheduleFollowup)
			r.Post("/followup/complete", h.CompleteFollowup)
		})
	})

	r.Route("/followups", func(r chi.Router) {
		r.Get("/due", h.DueFollowups)
		r.Get("/upcoming", h.UpcomingFollowups)
		r.Post("/complete-next", h.CompleteNextFollowup)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.GetSettings)
		r.Patch("/", h.UpdateSettings)
		r.Put("/user", h.UpdateUser)
		r.Post("/workdays/{day}/toggle", h.ToggleWorkday)
		r.Post("/channels/{name}", h.AddChannel)
		r.Delete("/channels/{name}", h.RemoveChannel)
		r.Post("/offer-types/{name}", h.AddOfferType)
		r.Delete("/offer-types/{name}", h.RemoveOfferType)
	})

	r.Route("/theme", func(r chi.Router) {
		r.Get("/", h.GetTheme)
		r.Put("/", h.UpdateTheme)
		r.Post("/toggle", h.ToggleTheme)
	})

	r.Get("/dashboard/preferences", h.GetDashboardPreferences)
	r.Put("/dashboard/preferences", h.UpdateDashboardPreferences)

	r.Route("/filters", func(r chi.Router) {
		r.Get("/", h.GetFilters)
		r.Put("/", h.SetFilters)
		r.Post("/reset", h.ResetFilters)
	})

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/series", h.Series)
		r.Get("/breakdown/{category}", h.Breakdown)
		r.Get("/summary", h.Summary)
	})

	r.Get("/features", h.ListFeatures)
	r.Post("/export", h.Export)
	r.Post("/reset", h.Reset)
	r.Get("/health", h.Health)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ListOffers handles GET /offers. With ?filtered=true only offers matching the
// session filter are returned.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("filtered") == "true" {
		h.respondJSON(w, http.StatusOK, h.service.FilteredOffers())
		return
	}
	h.respondJSON(w, http.StatusOK, h.service.Offers.List())
}

// CreateOffer handles POST /offers
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req models.OfferInput
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.CreateOffer(r.Context(), req, forced(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// ImportOffers handles PUT /offers. The body is a full offer array that replaces
// the collection.
func (h *Handler) ImportOffers(w http.ResponseWriter, r *http.Request) {
	var req []models.Offer
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ImportOffers(r.Context(), req); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.service.Offers.List())
}

// GetOffer handles GET /offers/{id}
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.service.Offers.Get(offerID(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, offer)
}

// UpdateOffer handles PATCH /offers/{id}
func (h *Handler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	var req models.OfferUpdate
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.UpdateOffer(r.Context(), offerID(r), req, forced(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// DeleteOffer handles DELETE /offers/{id}
func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Offers.Delete(r.Context(), offerID(r)); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FindDuplicate handles GET /offers/duplicates?caseNumber=&excludeId=
func (h *Handler) FindDuplicate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	caseNumber := validation.SanitizeString(query.Get("caseNumber"))
	if caseNumber == "" {
		h.respondError(w, http.StatusBadRequest, "caseNumber is required")
		return
	}

	resp := models.DuplicateResponse{}
	if dup, found := h.service.Offers.FindDuplicate(caseNumber, validation.SanitizeString(query.Get("excludeId"))); found {
		resp.Duplicate = true
		resp.Offer = &dup
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// DueFollowups handles GET /followups/due
func (h *Handler) DueFollowups(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Offers.CheckFollowups(h.service.Now()))
}

// UpcomingFollowups handles GET /followups/upcoming?days=
func (h *Handler) UpcomingFollowups(w http.ResponseWriter, r *http.Request) {
	days := defaultUpcomingDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	within := time.Duration(days) * 24 * time.Hour
	h.respondJSON(w, http.StatusOK, h.service.Offers.Upcoming(h.service.Now(), within))
}

// CompleteNextFollowup handles POST /followups/complete-next
func (h *Handler) CompleteNextFollowup(w http.ResponseWriter, r *http.Request) {
	offer, err := h.service.Offers.CompleteNextFollowup(r.Context(), h.service.Now())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, offer)
}

// CompleteFollowup handles POST /offers/{id}/followup/complete
func (h *Handler) CompleteFollowup(w http.ResponseWriter, r *http.Request) {
	offer, err := h.service.Offers.CompleteFollowup(r.Context(), offerID(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, offer)
}

type rescheduleRequest struct {
	FollowupDate string `json:"followupDate"`
}

// RescheduleFollowup handles PUT /offers/{id}/followup
func (h *Handler) RescheduleFollowup(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	when, err := models.ParseTime(validation.SanitizeString(req.FollowupDate))
	if err != nil || when.IsZero() {
		h.respondError(w, http.StatusBadRequest, "followupDate must be an RFC3339 timestamp or YYYY-MM-DD date")
		return
	}

	offer, err := h.service.Offers.RescheduleFollowup(r.Context(), offerID(r), when)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, offer)
}

// GetSettings handles GET /settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Settings.Get())
}

// UpdateSettings handles PATCH /settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.SettingsPatch
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.service.Settings.UpdateSettings(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, updated)
}

type userRequest struct {
	UserName  string `json:"userName"`
	DailyGoal int    `json:"dailyGoal"`
}

// UpdateUser handles PUT /settings/user
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.service.Settings.UpdateUser(r.Context(), validation.SanitizeString(req.UserName), req.DailyGoal)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, updated)
}

// ToggleWorkday handles POST /settings/workdays/{day}/toggle
func (h *Handler) ToggleWorkday(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "day must be an integer between 0 and 6")
		return
	}

	workdays, err := h.service.Settings.ToggleWorkday(r.Context(), day)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string][]int{"workdays": workdays})
}

// AddChannel handles POST /settings/channels/{name}
func (h *Handler) AddChannel(w http.ResponseWriter, r *http.Request) {
	h.updateLabels(w, r, h.service.Settings.AddChannel)
}

// RemoveChannel handles DELETE /settings/channels/{name}
func (h *Handler) RemoveChannel(w http.ResponseWriter, r *http.Request) {
	h.updateLabels(w, r, h.service.Settings.RemoveChannel)
}

// AddOfferType handles POST /settings/offer-types/{name}
func (h *Handler) AddOfferType(w http.ResponseWriter, r *http.Request) {
	h.updateLabels(w, r, h.service.Settings.AddOfferType)
}

// RemoveOfferType handles DELETE /settings/offer-types/{name}
func (h *Handler) RemoveOfferType(w http.ResponseWriter, r *http.Request) {
	h.updateLabels(w, r, h.service.Settings.RemoveOfferType)
}

func (h *Handler) updateLabels(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, name string) (models.UserSettings, error)) {
	updated, err := fn(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, updated)
}

// GetTheme handles GET /theme
func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Theme.Get(r.Context()))
}

// UpdateTheme handles PUT /theme
func (h *Handler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	var req theme.Patch
	if !h.decode(w, r, &req) {
		return
	}

	state, err := h.service.Theme.Update(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, state)
}

// ToggleTheme handles POST /theme/toggle
func (h *Handler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Theme.Toggle(r.Context()))
}

// GetDashboardPreferences handles GET /dashboard/preferences
func (h *Handler) GetDashboardPreferences(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Storage.GetDashboardPreferences(r.Context()))
}

// UpdateDashboardPreferences handles PUT /dashboard/preferences
func (h *Handler) UpdateDashboardPreferences(w http.ResponseWriter, r *http.Request) {
	var req models.DashboardPreferences
	if !h.decode(w, r, &req) {
		return
	}
	if err := validation.ValidateOneOf(req.DefaultView, "defaultView", validation.Views); err != nil {
		h.respondServiceError(w, err)
		return
	}
	if req.VisibleCards == nil {
		req.VisibleCards = []string{}
	}

	if res := h.service.Storage.SaveDashboardPreferences(r.Context(), req); !res.OK() {
		h.logger.Warn("dashboard preferences saved with errors", "error", res.Err())
	}
	h.respondJSON(w, http.StatusOK, req)
}

// GetFilters handles GET /filters
func (h *Handler) GetFilters(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Filters.Get())
}

// SetFilters handles PUT /filters
func (h *Handler) SetFilters(w http.ResponseWriter, r *http.Request) {
	var req filters.State
	if !h.decode(w, r, &req) {
		return
	}

	state, err := h.service.Filters.Set(req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, state)
}

// ResetFilters handles POST /filters/reset
func (h *Handler) ResetFilters(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Filters.Reset())
}

// Series handles GET /analytics/series?view=&bucket=
func (h *Handler) Series(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	points, err := h.service.Series(r.Context(), query.Get("view"), query.Get("bucket"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, points)
}

// Breakdown handles GET /analytics/breakdown/{category}
func (h *Handler) Breakdown(w http.ResponseWriter, r *http.Request) {
	slices, err := h.service.Breakdown(chi.URLParam(r, "category"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, slices)
}

// Summary handles GET /analytics/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Summary())
}

// ListFeatures handles GET /features
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Features.List())
}

// Export handles POST /export. Save failures are reported in the body with 200.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Export(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// Reset handles POST /reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	res := h.service.Reset(r.Context())
	if !res.OK() {
		h.logger.Warn("reset completed with storage errors", "error", res.Err())
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"cleared": true, "degraded": !res.OK()})
}

// decode reads a JSON body into dst, responding with 400 or 413 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondError(w, http.StatusBadRequest, "request body is required")
		case errors.As(err, &tooLarge):
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

// respondServiceError maps domain errors to status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var (
		verr *validation.ValidationError
		dup  *service.DuplicateError
	)
	switch {
	case errors.As(err, &verr):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &dup):
		h.respondJSON(w, http.StatusConflict, models.DuplicateResponse{Duplicate: true, Offer: &dup.Existing})
	case errors.Is(err, offers.ErrNotFound),
		errors.Is(err, offers.ErrNoFollowupDue),
		errors.Is(err, settings.ErrLabelNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrExportDisabled):
		h.respondError(w, http.StatusForbidden, err.Error()+" (feature "+features.FeatureExport+")")
	default:
		h.logger.Error("request failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}

func offerID(r *http.Request) string {
	return validation.SanitizeString(chi.URLParam(r, "id"))
}

func forced(r *http.Request) bool {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	return force
}
