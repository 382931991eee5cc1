package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/training-engine/internal/challenge"
	"github.com/terra-clan/training-engine/internal/models"
)

type challengeResponse struct {
	Challenge models.DailyChallenge `json:"challenge"`
	Counters  challenge.Counters    `json:"counters"`
}

// Progress handlers

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	held := s.engine.Badges()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"badges": held,
		"total":  len(held),
	})
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	c, counters := s.engine.Challenge()
	respondJSON(w, http.StatusOK, challengeResponse{Challenge: c, Counters: counters})
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	p, tier := s.engine.Progress()
	respondJSON(w, http.StatusOK, models.ProgressResponse{Progress: p, Tier: tier})
}

// Work day handlers

func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	day, ok := s.engine.Day()
	if !ok {
		respondError(w, http.StatusNotFound, "no_day", "no work day started")
		return
	}
	respondJSON(w, http.StatusOK, day)
}

func (s *Server) handleStartDay(w http.ResponseWriter, r *http.Request) {
	day, err := s.engine.StartDay()
	if err != nil {
		respondEngineError(w, err, "start day")
		return
	}
	respondJSON(w, http.StatusCreated, day)
}

func (s *Server) handleEndDay(w http.ResponseWriter, r *http.Request) {
	day, err := s.engine.EndDay()
	if err != nil {
		respondEngineError(w, err, "end day")
		return
	}
	respondJSON(w, http.StatusOK, day)
}

func (s *Server) handleAcceptOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, sessionID, err := s.engine.AcceptOrder(id)
	if err != nil {
		respondEngineError(w, err, "accept work order")
		return
	}
	respondJSON(w, http.StatusOK, models.AcceptOrderResponse{Order: order, SessionID: sessionID})
}

func (s *Server) handleDeclineOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.DeclineOrder(id); err != nil {
		respondEngineError(w, err, "decline work order")
		return
	}
	day, _ := s.engine.Day()
	respondJSON(w, http.StatusOK, day)
}
