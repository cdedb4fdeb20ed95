package editor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/quote-editor/internal/backend"
	"github.com/noah-isme/quote-editor/internal/common"
	"github.com/noah-isme/quote-editor/internal/lock"
	"github.com/noah-isme/quote-editor/internal/obs"
	"github.com/noah-isme/quote-editor/internal/pricing"
	"github.com/noah-isme/quote-editor/internal/quote"
	"github.com/noah-isme/quote-editor/internal/resilience"
)

var validate = validator.New()

// Handler exposes the draft operations over HTTP.
type Handler struct {
	Svc *Service
	// Now is used for default trip dates of new drafts.
	Now func() time.Time
	// SaveLimit, when set, wraps the save endpoint.
	SaveLimit func(http.Handler) http.Handler
}

// Routes mounts the draft endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{id}", func(d chi.Router) {
		d.Use(draftIDMiddleware)
		d.Get("/", h.Get)
		d.Delete("/", h.Discard)
		d.Patch("/", h.Patch)
		d.Put("/dates", h.SetDates)
		d.Put("/overrides/{kind}", h.SetOverride)
		d.Delete("/overrides/{kind}", h.ClearOverride)
		d.Post("/destination-range", h.DestinationRange)
		if h.SaveLimit != nil {
			d.With(h.SaveLimit).Post("/save", h.Save)
		} else {
			d.Post("/save", h.Save)
		}
		d.Post("/trash/{lineId}/restore", h.RestoreLine)
		d.Delete("/trash/{lineId}", h.PurgeLine)
		d.Route("/days/{dayId}", func(day chi.Router) {
			day.Put("/destination", h.SetDestination)
			day.Put("/images", h.SetImages)
			day.Post("/lines", h.AddLine)
			day.Patch("/lines/{lineId}", h.UpdateLine)
			day.Delete("/lines/{lineId}", h.RemoveLine)
			day.Put("/lines/{lineId}/prices/{field}", h.EditPrice)
			day.Post("/lines/{lineId}/move", h.MoveLine)
		})
	})
}

func draftIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obs.SetDraftID(r.Context(), chi.URLParam(r, "id"))
		next.ServeHTTP(w, r)
	})
}

// Create starts a draft, either blank or from a stored quote.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuoteID     int64  `json:"quoteId" validate:"gte=0"`
		StartDate   string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
		EndDate     string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
		Destination string `json:"destination"`
	}
	if !decode(w, r, &req, true) {
		return
	}
	var (
		v   View
		err error
	)
	if req.QuoteID > 0 {
		v, err = h.Svc.Open(r.Context(), req.QuoteID)
	} else {
		start, end := req.StartDate, req.EndDate
		if start == "" {
			start = h.now().Format(quote.DateLayout)
		}
		if end == "" {
			first, _ := time.Parse(quote.DateLayout, start)
			end = first.AddDate(0, 0, 2).Format(quote.DateLayout)
		}
		v, err = h.Svc.New(r.Context(), start, end, req.Destination)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeView(w, http.StatusCreated, v)
}

// Get renders a draft.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeView(w, http.StatusOK, v)
}

// Discard drops a draft.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Patch changes title, pax, margin text or header.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	var req QuotePatch
	h.mutate(w, r, &req, func(expect int64) (View, error) {
		return h.Svc.Patch(r.Context(), chi.URLParam(r, "id"), expect, req)
	})
}

// SetDates changes the trip range.
func (h *Handler) SetDates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
		EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	}
	h.mutate(w, r, &req, func(expect int64) (View, error) {
		return h.Svc.SetDates(r.Context(), chi.URLParam(r, "id"), expect, req.StartDate, req.EndDate)
	})
}

// SetOverride stores a typed or committed Onspot/Hassle amount.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Raw   string `json:"raw"`
		Phase string `json:"phase" validate:"omitempty,oneof=typing commit"`
	}
	h.mutate(w, r, &req, func(expect int64) (View, error) {
		phase := quote.Phase(req.Phase)
		if phase == "" {
			phase = quote.PhaseCommit
		}
		return h.Svc.SetOverride(r.Context(), chi.URLParam(r, "id"), expect, quote.Override(chi.URLParam(r, "kind")), req.Raw, phase)
	})
}

// ClearOverride resets an override.
func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(expect int64) (View, error) {
		return h.Svc.ClearOverride(r.Context(), chi.URLParam(r, "id"), expect, quote.Override(chi.URLParam(r, "kind")))
	})
}

// DestinationRange writes a destination over consecutive days.
func (h *Handler) DestinationRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		quote.DestinationRange
		Overwrite *bool `json:"overwrite"`
	}
	h.mutate(w, r, &req, func(expect int64) (View, error) {
		rng := req.DestinationRange
		rng.Overwrite = req.Overwrite == nil || *req.Overwrite
		return h.Svc.ApplyDestinationRange(r.Context(), chi.URLParam(r, "id"), expect, rng)
	})
}

// Save writes the draft to the quote backend.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(expect int64) (View, error) {
		return h.Svc.Save(r.Context(), chi.URLParam(r, "id"), expect)
	})
}

// SetDestination sets one day's destination.
func (h *Handler) SetDestination(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Destination string `json:"destination"`
	}
	h.mutate(w, r, &req, func(expect int64) (View, error) {
		return h.Svc.SetDestination(r.Context(), chi.URLParam(r, "id"), expect, chi.URLParam(r, "dayId"), req.Destination)
	})
}

// SetImages replaces one day's decorative images.
func (h *Handler) SetImages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs []string `json:"urls" validate:"max=2,dive,url"`
	}
	h.mutate(w, r, &req, func(expect int64) (View, error) {
		return h.Svc.SetDayImages(r.Context(), chi.URLParam(r, "id"), expect, chi.URLParam(r, "dayId"), req.URLs)
	})
}

// AddLine appends a line to a day.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string          `json:"category" validate:"required"`
		Title    string          `json:"title"`
		Details  json.RawMessage `json:"details"`
	}
	expect, ok := ifMatch(w, r)
	if !ok || !decode(w, r, &req, false) {
		return
	}
	v, line, err := h.Svc.AddLine(r.Context(), chi.URLParam(r, "id"), expect, chi.URLParam(r, "dayId"), req.Category, req.Title, req.Details)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("ETag", etag(v.Version))
	common.JSON(w, http.StatusCreated, map[string]any{"data": v, "line": line})
}

// UpdateLine patches a line's descriptive fields.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	var req quote.LinePatch
	h.mutate(w, r, &req, func(expect int64) (View, error) {
		return h.Svc.UpdateLine(r.Context(), chi.URLParam(r, "id"), expect, chi.URLParam(r, "dayId"), chi.URLParam(r, "lineId"), req)
	})
}

// RemoveLine moves a line to the trash.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(expect int64) (View, error) {
		return h.Svc.RemoveLine(r.Context(), chi.URLParam(r, "id"), expect, chi.URLParam(r, "dayId"), chi.URLParam(r, "lineId"))
	})
}

// RestoreLine brings a trashed line back.
func (h *Handler) RestoreLine(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(expect int64) (View, error) {
		return h.Svc.RestoreLine(r.Context(), chi.URLParam(r, "id"), expect, chi.URLParam(r, "lineId"))
	})
}

// PurgeLine empties a trashed line.
func (h *Handler) PurgeLine(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(expect int64) (View, error) {
		return h.Svc.PurgeLine(r.Context(), chi.URLParam(r, "id"), expect, chi.URLParam(r, "lineId"))
	})
}

// EditPrice applies a raw value to one price box. The raw value may be a
// JSON number, string or null.
func (h *Handler) EditPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Raw any `json:"raw"`
	}
	h.mutate(w, r, &req, func(expect int64) (View, error) {
		field, err := pricing.ParseField(chi.URLParam(r, "field"))
		if err != nil {
			return View{}, err
		}
		return h.Svc.EditLine(r.Context(), chi.URLParam(r, "id"), expect, chi.URLParam(r, "dayId"), chi.URLParam(r, "lineId"), field, req.Raw)
	})
}

// MoveLine moves a line to another position or day.
func (h *Handler) MoveLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToDayID string `json:"to_day_id"`
		Index   int    `json:"index"`
	}
	h.mutate(w, r, &req, func(expect int64) (View, error) {
		to := req.ToDayID
		if to == "" {
			to = chi.URLParam(r, "dayId")
		}
		return h.Svc.MoveLine(r.Context(), chi.URLParam(r, "id"), expect, chi.URLParam(r, "dayId"), chi.URLParam(r, "lineId"), to, req.Index)
	})
}

// Recent lists recently updated quotes.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := common.QueryInt(r.URL.Query(), "limit", 10)
	items, err := h.Svc.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// mutate decodes an optional body into req, reads If-Match and writes the
// resulting view.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, req any, fn func(expect int64) (View, error)) {
	expect, ok := ifMatch(w, r)
	if !ok {
		return
	}
	if req != nil && !decode(w, r, req, false) {
		return
	}
	v, err := fn(expect)
	if err != nil {
		writeError(w, err)
		return
	}
	writeView(w, http.StatusOK, v)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			writeError(w, common.BadRequest("invalid payload", err))
			return false
		}
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func ifMatch(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return 0, true
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		writeError(w, common.BadRequest("invalid If-Match version", err).WithDetails(map[string]string{"if_match": raw}))
		return 0, false
	}
	return v, true
}

func etag(version int64) string {
	return strconv.Quote(strconv.FormatInt(version, 10))
}

func writeView(w http.ResponseWriter, status int, v View) {
	w.Header().Set("ETag", etag(v.Version))
	common.JSON(w, status, map[string]any{"data": v})
}

func writeError(w http.ResponseWriter, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	var (
		validation validator.ValidationErrors
		upstream   *backend.StatusError
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &validation):
		details := make([]map[string]string, 0, len(validation))
		for _, fe := range validation {
			details = append(details, map[string]string{"field": fe.Namespace(), "rule": fe.Tag()})
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid quote", details)
	case errors.Is(err, ErrDraftNotFound):
		common.JSONError(w, http.StatusNotFound, "DRAFT_NOT_FOUND", "draft not found", nil)
	case errors.Is(err, ErrVersionConflict):
		common.JSONError(w, http.StatusConflict, "VERSION_CONFLICT", "draft was changed by another request", nil)
	case errors.Is(err, lock.ErrBusy):
		w.Header().Set("Retry-After", "1")
		common.JSONError(w, http.StatusConflict, "DRAFT_BUSY", "draft is being edited, retry shortly", nil)
	case errors.Is(err, ErrTrashNotFound),
		errors.Is(err, quote.ErrDayNotFound),
		errors.Is(err, quote.ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, backend.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "QUOTE_NOT_FOUND", "quote not found", nil)
	case errors.Is(err, quote.ErrInvalidDate),
		errors.Is(err, quote.ErrTripTooLong),
		errors.Is(err, quote.ErrInvalidRange),
		errors.Is(err, quote.ErrInvalidCategory),
		errors.Is(err, quote.ErrInvalidVisibility),
		errors.Is(err, quote.ErrInvalidOverride),
		errors.Is(err, quote.ErrDetailsKind),
		errors.Is(err, pricing.ErrUnknownField),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, resilience.ErrOpenCircuit):
		common.JSONError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "quote backend unavailable", nil)
	case errors.As(err, &upstream):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_ERROR", upstream.Detail, map[string]any{"status": upstream.Status})
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
