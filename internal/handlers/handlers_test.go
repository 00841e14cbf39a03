package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"athemaria/internal/api"
	"athemaria/internal/auth"
	"athemaria/internal/config"
	"athemaria/internal/database"
	"athemaria/internal/engine"
	"athemaria/internal/engine/actors"
	"athemaria/internal/middleware"
	"athemaria/internal/models"
	"athemaria/internal/services"
	"athemaria/internal/storage"
	"athemaria/internal/utils"
	"athemaria/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testBaseURL = "http://localhost:8080"
	adminUID    = "admin-1"
)

type testEnv struct {
	server  *Server
	handler http.Handler
	db      *database.MemoryDB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Server:         &config.ServerConfig{PublicBaseURL: testBaseURL, MetricsEnabled: true},
		Database:       config.DefaultDatabaseConfig(),
		Auth:           &config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour, ResetCodeTTL: time.Minute, AdminUID: adminUID},
		Purge:          config.DefaultPurgeConfig(),
		AllowedOrigins: []string{"*"},
	}

	db := database.NewMemoryDB()
	blobs := storage.NewMemoryStore()
	metrics := utils.NewMetricsCollector()
	tokens := middleware.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	hub := websocket.NewHub()

	stories := services.NewStoryService(db, blobs, services.StoryConfig{PublicBaseURL: testBaseURL})
	profiles := services.NewProfileService(db, blobs, testBaseURL)
	notifications := services.NewNotificationService(db)
	authSvc := auth.NewService(db, profiles, tokens, cfg.Auth.ResetCodeTTL)
	authSvc.SetHashCost(bcrypt.MinCost)

	eng := engine.NewEngine(actor.NewActorSystem(), stories, hub, metrics)
	t.Cleanup(eng.Shutdown)
	notifications.SetNotifier(eng)

	svc := Services{
		Stories:       stories,
		Profiles:      profiles,
		Comments:      services.NewCommentService(db, notifications),
		Ratings:       services.NewRatingService(db),
		Progress:      services.NewProgressService(db),
		Moderation:    services.NewModerationService(db, stories, notifications),
		Notifications: notifications,
		Auth:          authSvc,
	}
	s := NewServer(cfg, svc, tokens, eng, hub, blobs, metrics)
	return &testEnv{server: s, handler: s.Routes(), db: db}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{Email: email, Password: "long enough", DisplayName: "Writer"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp api.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.UserID, resp.Token
}

func (e *testEnv) createStory(t *testing.T, token string) *models.Story {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/stories", token, services.CreateStoryInput{
		Title:       "Tide Tables",
		Description: "A harbor story.",
		Genres:      []string{"Drama"},
		Status:      models.StatusPublished,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var story models.Story
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &story))
	return &story
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStoryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, author := env.signup(t, "author@example.com")
	_, other := env.signup(t, "other@example.com")

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/stories", "", nil).Code)

	story := env.createStory(t, author)
	assert.Equal(t, "Writer", story.AuthorName)
	assert.Equal(t, testBaseURL+"/files/"+storage.PlaceholderCoverPath, story.CoverImage)

	rec := env.do(t, http.MethodGet, "/stories/"+story.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[map[string]interface{}](t, rec)
	assert.Equal(t, story.ID, detail["id"])
	assert.Equal(t, map[string]interface{}{"average": float64(0), "count": float64(0)}, detail["rating"])

	title := "Hijacked"
	rec = env.do(t, http.MethodPut, "/stories/"+story.ID, other, services.UpdateStoryInput{Title: &title})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	listed := decode[[]models.Story](t, env.do(t, http.MethodGet, "/stories", "", nil))
	assert.Len(t, listed, 1)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/stories/"+story.ID, author, nil).Code)
	assert.Empty(t, decode[[]models.Story](t, env.do(t, http.MethodGet, "/me/stories", author, nil)))
	assert.Len(t, decode[[]models.Story](t, env.do(t, http.MethodGet, "/me/stories/deleted", author, nil)), 1)
	assert.Empty(t, decode[[]models.Story](t, env.do(t, http.MethodGet, "/stories", "", nil)))

	rec = env.do(t, http.MethodPost, "/stories/"+story.ID+"/restore", author, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.Story](t, rec).Deleted)
	assert.Len(t, decode[[]models.Story](t, env.do(t, http.MethodGet, "/me/stories", author, nil)), 1)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/stories/missing", "", nil).Code)
}

func TestChaptersAndReading(t *testing.T) {
	env := newTestEnv(t)
	_, author := env.signup(t, "author@example.com")
	story := env.createStory(t, author)

	rec := env.do(t, http.MethodPost, "/stories/"+story.ID+"/chapters", author, services.ChapterInput{Title: "Two", Content: "..."})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	chapter := decode[models.Chapter](t, rec)
	assert.Equal(t, 2, chapter.Order)

	rec = env.do(t, http.MethodPost, "/stories/"+story.ID+"/read", author, ReadRequest{ChapterID: chapter.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// body is optional
	rec = env.do(t, http.MethodPost, "/stories/"+story.ID+"/read", author, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries := decode[[]map[string]interface{}](t, env.do(t, http.MethodGet, "/me/continue", author, nil))
	require.Len(t, entries, 1)

	stored, err := env.db.GetStory(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ReadCount)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/stories/"+story.ID+"/chapters/"+chapter.ID, author, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/me/continue?limit=abc", author, nil).Code)
}

func TestCommentOwnershipOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	_, author := env.signup(t, "author@example.com")
	_, reader := env.signup(t, "reader@example.com")
	story := env.createStory(t, author)

	rec := env.do(t, http.MethodPost, "/stories/"+story.ID+"/comments", reader, CommentRequest{Text: "Loved it"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment := decode[models.Comment](t, rec)

	rec = env.do(t, http.MethodPut, "/comments/"+comment.ID, author, CommentRequest{Text: "edited"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, "/comments/"+comment.ID, author, nil).Code)

	comments := decode[[]models.Comment](t, env.do(t, http.MethodGet, "/stories/"+story.ID+"/comments", "", nil))
	require.Len(t, comments, 1)
	assert.Equal(t, "Loved it", comments[0].Text)

	// the author got a notification for the comment
	count := decode[api.CountResponse](t, env.do(t, http.MethodGet, "/notifications/unread-count", author, nil))
	assert.Equal(t, 1, count.Count)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/notifications/read-all", author, nil).Code)
	count = decode[api.CountResponse](t, env.do(t, http.MethodGet, "/notifications/unread-count", author, nil))
	assert.Equal(t, 0, count.Count)
}

func TestRatingsAndFavorites(t *testing.T) {
	env := newTestEnv(t)
	_, author := env.signup(t, "author@example.com")
	_, reader := env.signup(t, "reader@example.com")
	story := env.createStory(t, author)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/stories/"+story.ID+"/rating", reader, RatingRequest{Value: 9}).Code)
	rec := env.do(t, http.MethodPost, "/stories/"+story.ID+"/rating", reader, RatingRequest{Value: 4})
	require.Equal(t, http.StatusOK, rec.Code)

	anon := decode[RatingResponse](t, env.do(t, http.MethodGet, "/stories/"+story.ID+"/rating", "", nil))
	assert.Equal(t, 1, anon.Count)
	assert.Equal(t, 0, anon.UserRating)
	mine := decode[RatingResponse](t, env.do(t, http.MethodGet, "/stories/"+story.ID+"/rating", reader, nil))
	assert.Equal(t, 4, mine.UserRating)

	toggle := decode[api.ToggleResponse](t, env.do(t, http.MethodPost, "/profile/favorites/"+story.ID, reader, nil))
	assert.True(t, toggle.Member)
	assert.Len(t, decode[[]models.Story](t, env.do(t, http.MethodGet, "/profile/favorites", reader, nil)), 1)
	toggle = decode[api.ToggleResponse](t, env.do(t, http.MethodPost, "/profile/favorites/"+story.ID, reader, nil))
	assert.False(t, toggle.Member)
	assert.Empty(t, decode[[]models.Story](t, env.do(t, http.MethodGet, "/profile/favorites", reader, nil)))

	toggle = decode[api.ToggleResponse](t, env.do(t, http.MethodPost, "/profile/readlater/"+story.ID, reader, nil))
	assert.True(t, toggle.Member)
	assert.Len(t, decode[[]models.Story](t, env.do(t, http.MethodGet, "/profile/readlater", reader, nil)), 1)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	_, author := env.signup(t, "author@example.com")
	_, reader := env.signup(t, "reader@example.com")
	story := env.createStory(t, author)
	adminToken, err := env.server.Tokens.GenerateToken(adminUID)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/stories/"+story.ID+"/reports", reader, ReportRequest{Reason: "plagiarism"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	report := decode[models.Report](t, rec)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/admin/reports", reader, nil).Code)
	reports := decode[[]models.Report](t, env.do(t, http.MethodGet, "/admin/reports", adminToken, nil))
	require.Len(t, reports, 1)

	rec = env.do(t, http.MethodPost, "/admin/actions", adminToken, services.AdminActionInput{
		ReportID:   report.ID,
		ActionType: models.ActionRequestCorrection,
		Message:    "cite your sources",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, _ := env.db.GetStory(context.Background(), story.ID)
	assert.Equal(t, models.StatusPendingCorrection, stored.Status)
	assert.Empty(t, decode[[]models.Report](t, env.do(t, http.MethodGet, "/admin/reports", adminToken, nil)))
	assert.Len(t, decode[[]models.AdminAction](t, env.do(t, http.MethodGet, "/admin/stories/"+story.ID+"/actions", adminToken, nil)), 1)

	notes := decode[[]models.Notification](t, env.do(t, http.MethodGet, "/notifications", author, nil))
	require.NotEmpty(t, notes)
	assert.Equal(t, models.NotifyCorrectionRequested, notes[0].Type)

	rec = env.do(t, http.MethodPost, "/admin/purge", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[api.PurgeResponse](t, rec).Purged)

	status := decode[actors.PurgeStatus](t, env.do(t, http.MethodGet, "/admin/purge", adminToken, nil))
	assert.Equal(t, 1, status.Runs)
}

func TestHiddenStoriesReturnNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, author := env.signup(t, "author@example.com")
	_, reader := env.signup(t, "reader@example.com")
	adminToken, err := env.server.Tokens.GenerateToken(adminUID)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/stories", author, services.CreateStoryInput{
		Title:       "Unfinished",
		Description: "Still a draft.",
		Genres:      []string{"Drama"},
		Status:      models.StatusDraft,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	draft := decode[models.Story](t, rec)

	deleted := env.createStory(t, author)
	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/stories/"+deleted.ID, author, nil).Code)

	blocked := env.createStory(t, author)
	rec = env.do(t, http.MethodPost, "/admin/actions", adminToken, services.AdminActionInput{
		StoryID:    blocked.ID,
		ActionType: models.ActionBlock,
		Message:    "spam",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		name string
		id   string
	}{
		{"draft", draft.ID},
		{"soft deleted", deleted.ID},
		{"blocked", blocked.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/stories/" + tt.id, "/stories/" + tt.id + "/comments", "/stories/" + tt.id + "/rating"} {
				assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, "", nil).Code, path)
				assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, reader, nil).Code, path)
			}
			assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/stories/"+tt.id+"/comments", reader, CommentRequest{Text: "hello"}).Code)
			assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/stories/"+tt.id, author, nil).Code)
			assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/stories/"+tt.id, adminToken, nil).Code)
		})
	}

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/stories/"+blocked.ID+"/restore", author, nil).Code)

	published := env.createStory(t, author)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/stories/"+published.ID, "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/stories/"+published.ID+"/comments", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/stories/"+published.ID+"/rating", "", nil).Code)
}

func TestErrorMessageHidesOrigin(t *testing.T) {
	err := utils.NewDatabaseError("Failed to record admin action", errors.New("connection reset by mongo-1:27017"))
	assert.Equal(t, "Failed to record admin action", errorMessage(err))
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), errorMessage(errors.New("raw driver failure")))

	rec := httptest.NewRecorder()
	writeError(rec, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "mongo-1")
}

func TestAuthRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "writer@example.com")

	rec := env.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{Email: "writer@example.com", Password: "long enough"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "writer@example.com", Password: "long enough"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[api.LoginResponse](t, rec).Success)

	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "writer@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode[api.ErrorResponse](t, rec).Error)

	assert.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/auth/reset/request", "", ResetRequest{Email: "ghost@example.com"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/auth/reset/confirm", "",
		ResetConfirmRequest{Email: "writer@example.com", Code: "123456", NewPassword: "another one"}).Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCoverUploadAndFiles(t *testing.T) {
	env := newTestEnv(t)
	_, author := env.signup(t, "author@example.com")
	story := env.createStory(t, author)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "cover.PNG")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/stories/"+story.ID+"/cover", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+author)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[models.Story](t, rec)
	require.True(t, strings.HasPrefix(updated.CoverImage, testBaseURL+"/files/covers/"+story.ID+"-"))
	assert.True(t, strings.HasSuffix(updated.CoverImage, ".png"))

	rec = env.do(t, http.MethodGet, strings.TrimPrefix(updated.CoverImage, testBaseURL), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/files/covers/none.png", "", nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[api.HealthResponse](t, rec).Status)

	env.server.Ping = func(ctx context.Context) error { return assert.AnError }
	rec = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decode[utils.MetricsSnapshot](t, rec)
	assert.GreaterOrEqual(t, snapshot.Requests, uint64(2))
}

func TestWebSocketReceivesNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.server.Hub.Run(ctx)

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	userID, token := env.signup(t, "listener@example.com")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := ws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.server.Hub.ConnectionCount(userID) == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = env.server.Notifications.Create(context.Background(), userID, models.NotifyStoryApproved, "approved", "/stories/s1")
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event actors.NotificationEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "notification", event.Type)
	assert.Equal(t, "approved", event.Notification.Message)

	_, _, err = ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	assert.Error(t, err, "missing token is rejected")
}

func TestAuthRoutesRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.server.AuthLimiter = middleware.NewIPRateLimiter(1, 2)
	env.handler = env.server.Routes()

	login := LoginRequest{Email: "nobody@example.com", Password: "long enough"}
	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/auth/login", "", login)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/auth/login", "", login)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// reads are not throttled
	rec = env.do(t, http.MethodGet, "/stories", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
