package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_pricing/internal/app"
	"hotel_pricing/internal/domain"
	"hotel_pricing/internal/pricing"
)

type Handlers struct {
	R           *app.RecommendationService
	HorizonDays int              // default for ?days and for open date ranges
	Now         func() time.Time // nil means time.Now
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type reviewRequest struct {
	Status string `json:"status"`
	UserID string `json:"user_id"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/hotels", h.listHotels)
		r.Get("/hotels/{id}/recommendations", h.previewRecommendations)
		r.Post("/hotels/{id}/recommendations", h.generateRecommendations)
		r.Get("/hotels/{id}/recommendations/stored", h.listStored)
		r.Get("/hotels/{id}/competitors", h.listCompetitors)
		r.Get("/hotels/{id}/events", h.listEvents)
		r.Post("/recommendations/{id}/review", h.review)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownHotel), errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.Is(err, domain.ErrInvalidStatus):
		writeProblem(w, http.StatusConflict, "Invalid Status Transition", err.Error())
	case errors.Is(err, domain.ErrFeedUnavailable):
		writeProblem(w, http.StatusBadGateway, "Feed Unavailable", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeTagged serves v with a weak ETag and honors If-None-Match.
func writeTagged(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON body")
	}
}

func (h *Handlers) today() domain.Date {
	if h.Now != nil {
		return domain.DateOf(h.Now())
	}
	return domain.DateOf(time.Now())
}

func (h *Handlers) horizon() int {
	if h.HorizonDays > 0 {
		return h.HorizonDays
	}
	return pricing.DefaultHorizonDays
}

func (h *Handlers) days(r *http.Request) (int, bool) {
	ds := r.URL.Query().Get("days")
	if ds == "" {
		return h.horizon(), true
	}
	d, err := strconv.Atoi(ds)
	if err != nil || d < 0 || d > 366 {
		return 0, false
	}
	return d, true
}

// dateRange reads ?from= and ?to=. Missing bounds default to today and
// today+horizon when open is false, and stay zero otherwise.
func (h *Handlers) dateRange(r *http.Request, open bool) (from, to domain.Date, err error) {
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		if from, err = domain.ParseDate(s); err != nil {
			return from, to, err
		}
	} else if !open {
		from = h.today()
	}
	if s := q.Get("to"); s != "" {
		if to, err = domain.ParseDate(s); err != nil {
			return from, to, err
		}
	} else if !open {
		to = from.AddDays(h.horizon())
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, errors.New("to must not be before from")
	}
	return from, to, nil
}

func (h *Handlers) listHotels(w http.ResponseWriter, r *http.Request) {
	writeTagged(w, r, h.R.Hotels())
}

func (h *Handlers) previewRecommendations(w http.ResponseWriter, r *http.Request) {
	days, ok := h.days(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid days", "days must be an integer between 0 and 366")
		return
	}
	recs, err := h.R.Preview(r.Context(), chi.URLParam(r, "id"), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTagged(w, r, recs)
}

func (h *Handlers) generateRecommendations(w http.ResponseWriter, r *http.Request) {
	days, ok := h.days(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid days", "days must be an integer between 0 and 366")
		return
	}
	recs, err := h.R.Generate(r.Context(), chi.URLParam(r, "id"), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recs)
}

func (h *Handlers) listStored(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r, true)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date range", err.Error())
		return
	}
	q := domain.RecommendationQuery{HotelID: chi.URLParam(r, "id"), From: from, To: to}
	if st := strings.TrimSpace(r.URL.Query().Get("status")); st != "" {
		q.Status = &st
	}
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 5000 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 5000")
			return
		}
		q.Limit = l
	}
	recs, err := h.R.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTagged(w, r, recs)
}

func (h *Handlers) listCompetitors(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r, false)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date range", err.Error())
		return
	}
	out, err := h.R.CompetitorPrices(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTagged(w, r, out)
}

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r, false)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date range", err.Error())
		return
	}
	radius := pricing.EventRadiusKm
	if rs := r.URL.Query().Get("radius_km"); rs != "" {
		v, err := strconv.ParseFloat(rs, 64)
		if err != nil || v <= 0 || v > 500 {
			writeProblem(w, http.StatusBadRequest, "Invalid radius", "radius_km must be a number in (0, 500]")
			return
		}
		radius = v
	}
	out, err := h.R.NearbyEvents(r.Context(), chi.URLParam(r, "id"), from, to, radius)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTagged(w, r, out)
}

func (h *Handlers) review(w http.ResponseWriter, r *http.Request) {
	var body reviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected {\"status\": ..., \"user_id\": ...}")
		return
	}
	rec, err := h.R.Review(r.Context(), chi.URLParam(r, "id"), body.Status, body.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
