package simulator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"athemaria/internal/app"
	"athemaria/internal/config"
	"athemaria/internal/engine"
	"athemaria/internal/handlers"
	"athemaria/internal/middleware"
	"athemaria/internal/utils"
	"athemaria/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := config.DefaultDatabaseConfig()
	db.Type = config.DBTypeMemory
	cfg := &config.Config{
		Server:         &config.ServerConfig{PublicBaseURL: "http://localhost:8080"},
		Database:       db,
		Auth:           &config.AuthConfig{JWTSecret: "sim-secret", TokenTTL: time.Hour, ResetCodeTTL: time.Minute},
		Purge:          config.DefaultPurgeConfig(),
		AllowedOrigins: []string{"*"},
	}

	stores, err := app.OpenStores(context.Background(), cfg)
	require.NoError(t, err)
	tokens := middleware.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	svc := app.NewServices(cfg, stores, tokens)
	svc.Auth.SetHashCost(bcrypt.MinCost)

	metrics := utils.NewMetricsCollector()
	hub := websocket.NewHub()
	eng := engine.NewEngine(actor.NewActorSystem(), svc.Stories, hub, metrics)
	t.Cleanup(eng.Shutdown)
	svc.Notifications.SetNotifier(eng)

	server := handlers.NewServer(cfg, svc, tokens, eng, hub, stores.Blobs, metrics)
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestSimulationRun(t *testing.T) {
	ts := newTestServer(t)

	cfg := DefaultConfig()
	cfg.ServerURL = ts.URL
	cfg.NumWriters = 2
	cfg.NumReaders = 3
	cfg.StoriesPerWriter = 2
	cfg.ChaptersPerStory = 2
	cfg.SimulationTime = 300 * time.Millisecond
	cfg.ActionInterval = 20 * time.Millisecond
	cfg.CommentRate = 1
	cfg.RatingRate = 1
	cfg.FavoriteRate = 0
	cfg.MaxRPS = 0
	cfg.Seed = 42

	sim := NewSimulator(cfg)
	require.NoError(t, sim.Run(context.Background()))

	m := sim.GetMetrics()
	assert.Equal(t, 5, m.Users)
	assert.Equal(t, 4, m.Stories)
	assert.Positive(t, m.Reads)
	assert.Zero(t, m.FailedRequests)
	// a reader may be stopped between its read and the follow-up actions
	assert.InDelta(t, m.Reads, m.Comments, float64(cfg.NumReaders))
	assert.InDelta(t, m.Reads, m.Ratings, float64(cfg.NumReaders))

	var perStory int64
	for _, n := range m.ReadsPerStory {
		perStory += n
	}
	assert.Equal(t, m.Reads, perStory)
}

func TestRunRejectsFlatZipf(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ZipfS = 1
	assert.Error(t, NewSimulator(cfg).Run(context.Background()))
}

func TestRequestWithRetry(t *testing.T) {
	t.Run("client errors are not retried", func(t *testing.T) {
		var calls int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.Error(w, "bad", http.StatusBadRequest)
		}))
		defer ts.Close()

		cfg := DefaultConfig()
		cfg.ServerURL = ts.URL
		err := NewSimulator(cfg).requestWithRetry(context.Background(), http.MethodGet, "/", "", nil, nil)
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var calls int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"count": 3}`))
		}))
		defer ts.Close()

		cfg := DefaultConfig()
		cfg.ServerURL = ts.URL
		sim := NewSimulator(cfg)
		var out struct {
			Count int `json:"count"`
		}
		require.NoError(t, sim.requestWithRetry(context.Background(), http.MethodGet, "/", "", nil, &out))
		assert.Equal(t, 3, out.Count)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
		assert.Equal(t, int64(1), sim.GetMetrics().FailedRequests)
	})
}
