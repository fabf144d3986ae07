// Package api exposes the director's administrative control surface
// over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/duskhaven/economy/economy"
	"github.com/duskhaven/economy/economy/models"
)

type Server struct {
	director *economy.Director
	log      *slog.Logger
	mux      *chi.Mux
}

func New(director *economy.Director, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		director: director,
		log:      logger,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "active": s.director.IsActive()})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/cycle", s.handleCycle)
		r.Get("/health", s.handleHealth)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/forecast", s.handleForecast)
		r.Get("/anomalies", s.handleAnomalies)
		r.Get("/patterns", s.handlePatterns)
		r.Get("/profiles/{id}", s.handleProfile)
		r.Post("/transactions", s.handleTransaction)
		r.Post("/interventions", s.handleIntervention)
		r.Get("/interventions/{type}/effectiveness", s.handleEffectiveness)
		r.Get("/policy", s.handlePolicyInfo)
		r.Put("/policy/{name}", s.handleSetPolicyParam)
		r.Post("/policy/reload", s.handleReloadPolicy)
	})
}

func (s *Server) handleCycle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"cycle":          s.director.CurrentCycle().String(),
		"predicted_next": s.director.PredictNextCycle().String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"health":                    s.director.EconomicHealth(),
		"inflation_rate":            s.director.InflationRate(),
		"velocity_of_money":         s.director.VelocityOfMoney(),
		"recommended_interest_rate": s.director.RecommendedInterestRate(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.director.CurrentSnapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshot captured yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleForecast(w http.ResponseWriter, _ *http.Request) {
	forecast, ok := s.director.Forecast()
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshot captured yet")
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, _ *http.Request) {
	anomalies := s.director.DetectAnomalies()
	if anomalies == nil {
		anomalies = []models.Anomaly{}
	}
	writeJSON(w, http.StatusOK, anomalies)
}

func (s *Server) handlePatterns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.director.TransitionPatterns())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, err := snowflake.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid participant id")
		return
	}
	view, ok := s.director.PlayerProfile(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no profile for participant")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string  `json:"participant_id"`
		Amount        float64 `json:"amount"`
		Category      string  `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := snowflake.Parse(req.ParticipantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid participant id")
		return
	}
	s.director.RecordPlayerTransaction(id, req.Amount, req.Category)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type      string  `json:"type"`
		Magnitude float64 `json:"magnitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	typ, ok := models.ParseInterventionType(req.Type)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown intervention type")
		return
	}

	iv, err := s.director.ForceIntervention(r.Context(), typ, req.Magnitude)
	if err != nil {
		s.log.Error("forced intervention failed",
			slog.String("type", req.Type),
			slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "intervention failed")
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (s *Server) handleEffectiveness(w http.ResponseWriter, r *http.Request) {
	typ, ok := models.ParseInterventionType(chi.URLParam(r, "type"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown intervention type")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":          typ,
		"effectiveness": s.director.InterventionEffectiveness(typ),
	})
}

func (s *Server) handlePolicyInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.director.PolicyInfo())
}

func (s *Server) handleSetPolicyParam(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Value *float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeError(w, http.StatusBadRequest, "missing value")
		return
	}
	if err := s.director.SetPolicyParam(name, *req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.director.PolicyInfo())
}

func (s *Server) handleReloadPolicy(w http.ResponseWriter, _ *http.Request) {
	if err := s.director.ReloadPolicy(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.director.PolicyInfo())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
