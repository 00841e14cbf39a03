package handlers

import (
	"net/http"

	"athemaria/internal/api"
)

func (s *Server) HandleGetNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.Notifications.GetUserNotifications(r.Context(), currentUser(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) HandleMarkNotificationRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Notifications.MarkRead(r.Context(), r.PathValue("id"), currentUser(r)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleMarkAllNotificationsRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Notifications.MarkAllRead(r.Context(), currentUser(r)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleUnreadCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.CountResponse{Count: s.Notifications.UnreadCount(r.Context(), currentUser(r))})
	}
}
