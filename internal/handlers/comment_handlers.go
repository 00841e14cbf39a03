package handlers

import (
	"net/http"

	"athemaria/internal/models"
)

// CommentRequest carries the text of a new or edited comment.
type CommentRequest struct {
	Text string `json:"text"`
}

type RatingRequest struct {
	Value int `json:"value"`
}

// RatingResponse combines the story average with the caller's own rating.
type RatingResponse struct {
	models.AverageRating
	UserRating int `json:"userRating"`
}

func (s *Server) HandleGetComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.visibleStory(r, r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		comments, err := s.Comments.GetStoryComments(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, comments)
	}
}

func (s *Server) HandleAddComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommentRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, err)
			return
		}
		if _, err := s.visibleStory(r, r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		comment, err := s.Comments.AddComment(r.Context(), r.PathValue("id"), currentUser(r), req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)
	}
}

// HandleUpdateComment edits the caller's own comment; others get 403.
func (s *Server) HandleUpdateComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommentRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, err)
			return
		}
		comment, err := s.Comments.UpdateComment(r.Context(), r.PathValue("id"), currentUser(r), req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, comment)
	}
}

func (s *Server) HandleDeleteComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Comments.DeleteComment(r.Context(), r.PathValue("id"), currentUser(r)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleGetRating includes userRating only for authenticated callers.
func (s *Server) HandleGetRating() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storyID := r.PathValue("id")
		if _, err := s.visibleStory(r, storyID); err != nil {
			writeError(w, err)
			return
		}
		resp := RatingResponse{AverageRating: s.Ratings.GetAverageRating(r.Context(), storyID)}

		if userID := currentUser(r); userID != "" {
			value, err := s.Ratings.GetUserRating(r.Context(), storyID, userID)
			if err != nil {
				writeError(w, err)
				return
			}
			resp.UserRating = value
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) HandleRateStory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RatingRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, err)
			return
		}
		storyID := r.PathValue("id")
		if _, err := s.visibleStory(r, storyID); err != nil {
			writeError(w, err)
			return
		}
		if err := s.Ratings.RateStory(r.Context(), storyID, currentUser(r), req.Value); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, RatingResponse{
			AverageRating: s.Ratings.GetAverageRating(r.Context(), storyID),
			UserRating:    req.Value,
		})
	}
}
