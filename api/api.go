// CLAUDE:SUMMARY HTTP API over tour state and the tour catalog: availability, session shown flags, validation and metrics.
// Package api exposes tour state and the tour catalog over HTTP for
// browser clients.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/tourguide/perf"
	"github.com/hazyhaar/tourguide/tour"
	"github.com/hazyhaar/tourguide/tourlog"
	"github.com/hazyhaar/tourguide/tourstate"
	"github.com/hazyhaar/tourguide/validate"
)

// Catalog is the read side of the tour catalog.
type Catalog interface {
	Tours() []tour.Definition
	Get(id string) (tour.Definition, bool)
}

// Server serves the API.
type Server struct {
	sessions tourstate.Sessions
	catalog  Catalog
	metrics  *perf.Metrics
	logger   *slog.Logger
}

// New creates a Server. catalog and metrics may be nil.
func New(sessions tourstate.Sessions, catalog Catalog, metrics *perf.Metrics, logger *slog.Logger) *Server {
	return &Server{sessions: sessions, catalog: catalog, metrics: metrics, logger: tourlog.OrDefault(logger)}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(headToGet)
	r.Use(securityHeaders)
	r.Use(limitBody)
	r.Use(s.requestLog)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if reg := s.metrics.Registry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/availability", s.getAvailability)
		r.Put("/availability", s.putAvailability)
		r.Delete("/state", s.clearState)

		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{session}", func(r chi.Router) {
			r.Delete("/", s.endSession)
			r.Get("/tours", s.startableTours)
			r.Get("/shown/{tour}", s.getShown)
			r.Post("/shown/{tour}", s.markShown)
		})

		r.Get("/tours", s.listTours)
		r.Get("/tours/{tour}", s.getTour)
		r.Post("/tours/validate", s.validateTour)
	})
	return r
}

func (s *Server) getAvailability(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Open("")
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": st.Availability(r.Context())})
}

type availabilityRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) putAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, errors.New(`body must be {"enabled": bool}`))
		return
	}
	s.sessions.Open("").SetAvailability(r.Context(), *req.Enabled)
	loggerFrom(r.Context()).Info("api: availability changed", "enabled", *req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

// clearState removes every tour-owned key from durable state and, when the
// session query parameter is set, from that session.
func (s *Server) clearState(w http.ResponseWriter, r *http.Request) {
	s.sessions.Open(r.URL.Query().Get("session")).ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"session": tourstate.NewSessionID()})
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	if err := s.sessions.End(r.Context(), id); err != nil {
		loggerFrom(r.Context()).Error("api: end session failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("end session failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getShown(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Open(chi.URLParam(r, "session"))
	writeJSON(w, http.StatusOK, map[string]bool{"shown": st.WasShown(r.Context(), chi.URLParam(r, "tour"))})
}

func (s *Server) markShown(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Open(chi.URLParam(r, "session"))
	st.MarkShown(r.Context(), chi.URLParam(r, "tour"))
	w.WriteHeader(http.StatusNoContent)
}

// startableTours lists catalog tours the session may start on the page
// given by the path query parameter.
func (s *Server) startableTours(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := s.sessions.Open(chi.URLParam(r, "session"))
	out := []tour.Definition{}
	if s.catalog == nil || !st.Availability(ctx) {
		writeJSON(w, http.StatusOK, out)
		return
	}
	path := r.URL.Query().Get("path")
	for _, d := range s.catalog.Tours() {
		if st.WasShown(ctx, d.ID) || !onPage(d, path) {
			continue
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, out)
}

func onPage(d tour.Definition, path string) bool {
	if len(d.Pages) == 0 {
		return true
	}
	for _, p := range d.Pages {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (s *Server) listTours(w http.ResponseWriter, _ *http.Request) {
	out := []tour.Definition{}
	if s.catalog != nil {
		out = s.catalog.Tours()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTour(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusNotFound, errors.New("tour not found"))
		return
	}
	d, ok := s.catalog.Get(chi.URLParam(r, "tour"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("tour not found"))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type validateResponse struct {
	Valid  bool            `json:"valid"`
	Errors validate.Errors `json:"errors"`
}

// validateTour checks a YAML or JSON definition without storing it.
func (s *Server) validateTour(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	_, issues, err := validate.Decode(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if issues == nil {
		issues = validate.Errors{}
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: len(issues) == 0, Errors: issues})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
