package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Catalog handlers

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.engine.Tasks()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "task id is required")
		return
	}

	def, err := s.engine.Task(id)
	if err != nil {
		respondEngineError(w, err, "get task")
		return
	}
	respondJSON(w, http.StatusOK, def)
}
