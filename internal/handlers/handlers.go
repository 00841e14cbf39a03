package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"athemaria/internal/api"
	"athemaria/internal/auth"
	"athemaria/internal/config"
	"athemaria/internal/engine"
	"athemaria/internal/middleware"
	"athemaria/internal/models"
	"athemaria/internal/services"
	"athemaria/internal/storage"
	"athemaria/internal/utils"
	"athemaria/internal/websocket"
)

const (
	maxJSONBytes   = 1 << 20
	maxUploadBytes = 10 << 20
)

// Services bundles the application services the handlers call.
type Services struct {
	Stories       *services.StoryService
	Profiles      *services.ProfileService
	Comments      *services.CommentService
	Ratings       *services.RatingService
	Progress      *services.ProgressService
	Moderation    *services.ModerationService
	Notifications *services.NotificationService
	Auth          *auth.Service
}

// Server holds all server dependencies, including the engine and the hub
type Server struct {
	Services
	Config    *config.Config
	Tokens    *middleware.TokenManager
	Engine    *engine.Engine
	Hub       *websocket.Hub
	Blobs     storage.BlobStore
	Metrics   *utils.MetricsCollector
	StartTime time.Time

	// AuthLimiter throttles the credential endpoints per client IP.
	AuthLimiter *middleware.IPRateLimiter

	// Ping reports store health; nil for stores without a connection.
	Ping func(ctx context.Context) error
}

// NewServer creates a new Server instance with the given components
func NewServer(
	cfg *config.Config,
	svc Services,
	tokens *middleware.TokenManager,
	eng *engine.Engine,
	hub *websocket.Hub,
	blobs storage.BlobStore,
	metrics *utils.MetricsCollector,
) *Server {
	return &Server{
		Services:  svc,
		Config:    cfg,
		Tokens:    tokens,
		Engine:    eng,
		Hub:       hub,
		Blobs:     blobs,
		Metrics:   metrics,
		StartTime: time.Now(),

		AuthLimiter: middleware.NewIPRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst),
	}
}

// Routes registers every endpoint and wraps the mux in the logging and CORS
// middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	authed := s.Tokens.RequireAuth
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return s.Tokens.RequireAuth(middleware.RequireAdmin(s.Config.Auth.AdminUID, h))
	}

	// Core
	mux.HandleFunc("GET /health", s.HandleHealth())
	mux.HandleFunc("GET /metrics", s.HandleMetrics())
	mux.HandleFunc("GET "+storage.FilesRoute+"{path...}", s.HandleFiles())
	mux.HandleFunc("GET /ws", s.HandleWebSocket())

	// Auth
	limited := s.AuthLimiter.Limit
	mux.HandleFunc("POST /auth/signup", limited(s.HandleSignup()))
	mux.HandleFunc("POST /auth/login", limited(s.HandleLogin()))
	mux.HandleFunc("POST /auth/reset/request", limited(s.HandleResetRequest()))
	mux.HandleFunc("POST /auth/reset/confirm", limited(s.HandleResetConfirm()))

	// Stories
	mux.HandleFunc("GET /stories", s.HandleListStories())
	mux.HandleFunc("GET /stories/search", s.HandleSearchStories())
	mux.HandleFunc("GET /stories/{id}", s.Tokens.OptionalAuth(s.HandleGetStory()))
	mux.HandleFunc("POST /stories", authed(s.HandleCreateStory()))
	mux.HandleFunc("PUT /stories/{id}", authed(s.HandleUpdateStory()))
	mux.HandleFunc("DELETE /stories/{id}", authed(s.HandleDeleteStory()))
	mux.HandleFunc("POST /stories/{id}/restore", authed(s.HandleRestoreStory()))
	mux.HandleFunc("POST /stories/{id}/cover", authed(s.HandleUploadCover()))
	mux.HandleFunc("POST /stories/{id}/chapters", authed(s.HandleAddChapter()))
	mux.HandleFunc("PUT /stories/{id}/chapters/{chapterId}", authed(s.HandleUpdateChapter()))
	mux.HandleFunc("DELETE /stories/{id}/chapters/{chapterId}", authed(s.HandleDeleteChapter()))
	mux.HandleFunc("POST /stories/{id}/read", authed(s.HandleRecordRead()))
	mux.HandleFunc("GET /me/stories", authed(s.HandleMyStories()))
	mux.HandleFunc("GET /me/stories/deleted", authed(s.HandleMyDeletedStories()))
	mux.HandleFunc("GET /me/continue", authed(s.HandleContinueReading()))

	// Comments and ratings
	mux.HandleFunc("GET /stories/{id}/comments", s.Tokens.OptionalAuth(s.HandleGetComments()))
	mux.HandleFunc("POST /stories/{id}/comments", authed(s.HandleAddComment()))
	mux.HandleFunc("PUT /comments/{id}", authed(s.HandleUpdateComment()))
	mux.HandleFunc("DELETE /comments/{id}", authed(s.HandleDeleteComment()))
	mux.HandleFunc("GET /stories/{id}/rating", s.Tokens.OptionalAuth(s.HandleGetRating()))
	mux.HandleFunc("POST /stories/{id}/rating", authed(s.HandleRateStory()))

	// Profiles
	mux.HandleFunc("GET /profile/{id}", s.HandleGetProfile())
	mux.HandleFunc("PUT /profile", authed(s.HandleSaveProfile()))
	mux.HandleFunc("POST /profile/avatar", authed(s.HandleUploadAvatar()))
	mux.HandleFunc("POST /profile/favorites/{storyId}", authed(s.HandleToggleFavorite()))
	mux.HandleFunc("POST /profile/readlater/{storyId}", authed(s.HandleToggleReadLater()))
	mux.HandleFunc("GET /profile/favorites", authed(s.HandleGetFavorites()))
	mux.HandleFunc("GET /profile/readlater", authed(s.HandleGetReadLater()))

	// Notifications
	mux.HandleFunc("GET /notifications", authed(s.HandleGetNotifications()))
	mux.HandleFunc("POST /notifications/{id}/read", authed(s.HandleMarkNotificationRead()))
	mux.HandleFunc("POST /notifications/read-all", authed(s.HandleMarkAllNotificationsRead()))
	mux.HandleFunc("GET /notifications/unread-count", authed(s.HandleUnreadCount()))

	// Moderation
	mux.HandleFunc("POST /stories/{id}/reports", authed(s.HandleCreateReport()))
	mux.HandleFunc("GET /admin/reports", admin(s.HandleGetReports()))
	mux.HandleFunc("POST /admin/actions", admin(s.HandleAdminAction()))
	mux.HandleFunc("GET /admin/stories/{id}/actions", admin(s.HandleGetAdminActions()))
	mux.HandleFunc("POST /admin/purge", admin(s.HandlePurge()))
	mux.HandleFunc("GET /admin/purge", admin(s.HandlePurgeStatus()))

	var handler http.Handler = mux
	handler = middleware.RequestLogger(s.Metrics)(handler)
	handler = middleware.CORSMiddleware(middleware.DefaultCORSConfig(s.Config.AllowedOrigins))(handler)
	return handler
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError maps an error to its HTTP status. Only the AppError message is
// sent; the wrapped origin stays in the server log.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, utils.HTTPStatus(err), api.ErrorResponse{Error: errorMessage(err)})
}

// errorMessage is the client-safe text of err. The wrapped origin only goes
// to the log.
func errorMessage(err error) string {
	status := utils.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return http.StatusText(status)
}

// decodeJSON reads a size-limited JSON body into v. An empty body is
// accepted when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return utils.NewInvalidInputError("Invalid request body")
	}
	return nil
}

// currentUser returns the authenticated user id set by the auth middleware.
func currentUser(r *http.Request) string {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	return userID
}

// visibleStory loads a story the caller may read. The admin sees every story;
// others get 404 for drafts and deleted stories they did not write.
func (s *Server) visibleStory(r *http.Request, id string) (*models.Story, error) {
	userID := currentUser(r)
	if userID != "" && userID == s.Config.Auth.AdminUID {
		return s.Stories.GetStory(r.Context(), id)
	}
	return s.Stories.GetVisibleStory(r.Context(), id, userID)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, utils.NewInvalidInputError(key + " must be a non-negative integer")
	}
	return n, nil
}

// uploadedFile opens the "file" part of a multipart upload.
func uploadedFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", "", utils.NewInvalidInputError("Invalid upload")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", utils.NewInvalidInputError("Missing file field")
	}
	return file, header.Filename, header.Header.Get("Content-Type"), nil
}
