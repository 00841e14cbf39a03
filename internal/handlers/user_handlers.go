package handlers

import (
	"log"
	"net/http"

	"athemaria/internal/api"
	"athemaria/internal/services"
)

// SignupRequest represents a request to create an account
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// LoginRequest represents a request to log in a user
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetRequest struct {
	Email string `json:"email"`
}

type ResetConfirmRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// HandleSignup creates an account and returns a token for it.
func (s *Server) HandleSignup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, err)
			return
		}
		session, err := s.Auth.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, api.LoginResponse{Success: true, Token: session.Token, UserID: session.UserID})
	}
}

// HandleLogin handles requests to log in a user
func (s *Server) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, err)
			return
		}
		session, err := s.Auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		log.Printf("Login successful for user: %s", session.UserID)
		writeJSON(w, http.StatusOK, api.LoginResponse{Success: true, Token: session.Token, UserID: session.UserID})
	}
}

// HandleResetRequest always answers 202 for well-formed requests so the
// response does not reveal which emails are registered.
func (s *Server) HandleResetRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, err)
			return
		}
		if err := s.Auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) HandleResetConfirm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetConfirmRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, err)
			return
		}
		if err := s.Auth.ConfirmPasswordReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleGetProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := s.Profiles.GetProfile(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func (s *Server) HandleSaveProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input services.ProfileInput
		if err := decodeJSON(w, r, &input, false); err != nil {
			writeError(w, err)
			return
		}
		profile, err := s.Profiles.SaveProfile(r.Context(), currentUser(r), input)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func (s *Server) HandleUploadAvatar() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, filename, contentType, err := uploadedFile(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		defer file.Close()

		url, err := s.Profiles.UploadAvatar(r.Context(), currentUser(r), filename, contentType, file)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, api.URLResponse{URL: url})
	}
}

func (s *Server) HandleToggleFavorite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storyID := r.PathValue("storyId")
		member, err := s.Profiles.ToggleFavorite(r.Context(), currentUser(r), storyID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, api.ToggleResponse{StoryID: storyID, Member: member})
	}
}

func (s *Server) HandleToggleReadLater() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storyID := r.PathValue("storyId")
		member, err := s.Profiles.ToggleReadLater(r.Context(), currentUser(r), storyID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, api.ToggleResponse{StoryID: storyID, Member: member})
	}
}

func (s *Server) HandleGetFavorites() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stories, err := s.Profiles.GetFavoriteStories(r.Context(), currentUser(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stories)
	}
}

func (s *Server) HandleGetReadLater() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stories, err := s.Profiles.GetReadLaterStories(r.Context(), currentUser(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stories)
	}
}
