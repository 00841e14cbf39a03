package handlers

import (
	"net/http"
	"time"

	"athemaria/internal/api"
	"athemaria/internal/services"
	"athemaria/internal/utils"
)

type ReportRequest struct {
	Reason string `json:"reason"`
}

// HandleCreateReport lets any signed-in reader flag a story.
func (s *Server) HandleCreateReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReportRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, err)
			return
		}
		report, err := s.Moderation.CreateReport(r.Context(), r.PathValue("id"), currentUser(r), req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, report)
	}
}

// HandleGetReports lists open reports; ?all=true includes resolved ones.
func (s *Server) HandleGetReports() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := s.Moderation.GetReports(r.Context(), r.URL.Query().Get("all") == "true")
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reports)
	}
}

// HandleAdminAction applies a moderation action. When a later step fails
// the recorded action is still returned alongside the error.
func (s *Server) HandleAdminAction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input services.AdminActionInput
		if err := decodeJSON(w, r, &input, false); err != nil {
			writeError(w, err)
			return
		}
		action, err := s.Moderation.TakeAdminAction(r.Context(), currentUser(r), input)
		if err != nil {
			if action != nil {
				writeJSON(w, utils.HTTPStatus(err), map[string]interface{}{
					"action": action,
					"error":  errorMessage(err),
				})
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, action)
	}
}

func (s *Server) HandleGetAdminActions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actions, err := s.Moderation.GetAdminActions(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, actions)
	}
}

// HandlePurge runs the purge through the purge actor and waits for it.
func (s *Server) HandlePurge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purged, err := s.Engine.RunPurge(time.Now(), "admin")
		if purged == nil {
			purged = []string{}
		}
		if err != nil {
			writeJSON(w, utils.HTTPStatus(err), api.PurgeResponse{Purged: purged, Error: errorMessage(err)})
			return
		}
		writeJSON(w, http.StatusOK, api.PurgeResponse{Purged: purged})
	}
}

func (s *Server) HandlePurgeStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.Engine.PurgeStatus()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
