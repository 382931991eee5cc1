package api

import (
	"net/http"
	"strings"

	"github.com/terra-clan/training-engine/internal/models"
	"github.com/terra-clan/training-engine/internal/session"
)

// Session handlers

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.engine.StartSession(req.TaskID, req.Mode)
	if err != nil {
		respondEngineError(w, err, "start session")
		return
	}

	respondJSON(w, http.StatusCreated, models.StartSessionResponse{
		SessionID: id,
		Status:    s.engine.Status(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleLastResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.engine.LastResult()
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "no session has finished yet")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// actionHandler decodes an ActionRequest, checks that field is set when
// named, and runs call
func (s *Server) actionHandler(field string, call func(models.ActionRequest) (session.Reply, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ActionRequest
		if r.ContentLength != 0 {
			if !decodeBody(w, r, &req) {
				return
			}
		}

		switch field {
		case "id":
			if strings.TrimSpace(req.ID) == "" {
				respondError(w, http.StatusBadRequest, "validation_error", "id is required")
				return
			}
		case "gauge":
			if strings.TrimSpace(req.Gauge) == "" {
				respondError(w, http.StatusBadRequest, "validation_error", "gauge is required")
				return
			}
		}

		reply, err := call(req)
		if err != nil {
			respondEngineError(w, err, "apply action")
			return
		}
		respondJSON(w, http.StatusOK, s.actionResponse(reply))
	}
}

func (s *Server) actionResponse(reply session.Reply) models.ActionResponse {
	resp := models.ActionResponse{
		Accepted:    reply.Outcome.Accepted,
		Outcome:     reply.Outcome.Code,
		Measurement: reply.Outcome.Measurement,
		Result:      reply.Result,
		Status:      s.engine.Status(),
	}
	if exp := reply.Outcome.Expected; exp != nil {
		resp.Feedback = &models.Feedback{
			Message:     "expected step: " + exp.ID,
			Description: exp.Description,
			Code:        exp.Code,
		}
	}
	return resp
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	s.actionHandler("id", func(req models.ActionRequest) (session.Reply, error) {
		return s.engine.Identify(req.ID)
	})(w, r)
}

func (s *Server) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	s.actionHandler("id", func(req models.ActionRequest) (session.Reply, error) {
		return s.engine.CompleteStep(req.ID)
	})(w, r)
}

func (s *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	s.actionHandler("id", func(req models.ActionRequest) (session.Reply, error) {
		return s.engine.Measure(req.ID, req.Value)
	})(w, r)
}

func (s *Server) handleSelectGauge(w http.ResponseWriter, r *http.Request) {
	s.actionHandler("gauge", func(req models.ActionRequest) (session.Reply, error) {
		return s.engine.SelectGauge(req.Gauge)
	})(w, r)
}

func (s *Server) handleRecordConnection(w http.ResponseWriter, r *http.Request) {
	s.actionHandler("", func(req models.ActionRequest) (session.Reply, error) {
		return s.engine.RecordConnection(req.Quality)
	})(w, r)
}

func (s *Server) handleAddBonus(w http.ResponseWriter, r *http.Request) {
	s.actionHandler("", func(req models.ActionRequest) (session.Reply, error) {
		return s.engine.AddBonus(req.Points)
	})(w, r)
}

func (s *Server) handleAnswerDiagnostic(w http.ResponseWriter, r *http.Request) {
	s.actionHandler("id", func(req models.ActionRequest) (session.Reply, error) {
		return s.engine.AnswerDiagnostic(req.ID, req.Answer)
	})(w, r)
}

func (s *Server) handleIdentifyFault(w http.ResponseWriter, r *http.Request) {
	s.actionHandler("id", func(req models.ActionRequest) (session.Reply, error) {
		return s.engine.IdentifyFault(req.ID)
	})(w, r)
}

func (s *Server) handleRepairFault(w http.ResponseWriter, r *http.Request) {
	s.actionHandler("", func(models.ActionRequest) (session.Reply, error) {
		return s.engine.RepairFault()
	})(w, r)
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	fb, err := s.engine.RequestHint()
	if err != nil {
		respondEngineError(w, err, "request hint")
		return
	}
	respondJSON(w, http.StatusOK, fb)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Finish()
	if err != nil {
		respondEngineError(w, err, "finish session")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Abandon()
	if err != nil {
		respondEngineError(w, err, "abandon session")
		return
	}
	respondJSON(w, http.StatusOK, res)
}
