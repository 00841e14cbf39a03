package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"athemaria/internal/api"
	"athemaria/internal/storage"
	"athemaria/internal/utils"
)

// HandleHealth reports process uptime and store reachability.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := api.HealthResponse{
			Status:   "ok",
			Database: "ok",
			Uptime:   time.Since(s.StartTime).Round(time.Second).String(),
		}
		status := http.StatusOK

		if s.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.Ping(ctx); err != nil {
				log.Printf("Health check: database ping failed: %v", err)
				resp.Status = "degraded"
				resp.Database = "unreachable"
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, resp)
	}
}

// HandleMetrics exposes the request and latency counters.
func (s *Server) HandleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.Config.Server.MetricsEnabled {
			writeError(w, utils.NewAppError(utils.ErrNotFound, "Metrics are disabled", nil))
			return
		}
		writeJSON(w, http.StatusOK, s.Metrics.Snapshot())
	}
}

// HandleFiles streams a stored blob. This is the public URL space of
// covers and avatars.
func (s *Server) HandleFiles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.PathValue("path")
		if !storage.ValidPath(path) {
			writeError(w, utils.NewInvalidInputError("Invalid file path"))
			return
		}

		body, info, err := s.Blobs.Open(r.Context(), path)
		if err != nil {
			if errors.Is(err, storage.ErrBlobNotFound) {
				writeError(w, utils.NewNotFoundError("File", path))
				return
			}
			writeError(w, utils.NewAppError(utils.ErrStorage, "Failed to read file", err))
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", storage.ContentTypeFor(path, info.ContentType))
		if info.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if _, err := io.Copy(w, body); err != nil {
			log.Printf("Error streaming file %s: %v", path, err)
		}
	}
}
