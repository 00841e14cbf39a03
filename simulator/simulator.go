// Package simulator drives a running Athemaria server over HTTP with a
// population of writers and readers. Story popularity follows a Zipf
// distribution so a few stories collect most of the reads and ratings.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"athemaria/internal/api"
	"athemaria/internal/handlers"
	"athemaria/internal/models"
	"athemaria/internal/services"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/ratelimit"
)

type SimConfig struct {
	NumWriters       int
	NumReaders       int
	StoriesPerWriter int
	ChaptersPerStory int
	SimulationTime   time.Duration
	ActionInterval   time.Duration // pause between actions of one reader
	CommentRate      float64       // chance a read is followed by a comment
	RatingRate       float64
	FavoriteRate     float64
	ZipfS            float64
	MaxRPS           int // cap across all simulated users, 0 is unlimited
	ServerURL        string
	Seed             int64
}

// DefaultConfig is a small run suited to a local server.
func DefaultConfig() SimConfig {
	return SimConfig{
		NumWriters:       5,
		NumReaders:       20,
		StoriesPerWriter: 3,
		ChaptersPerStory: 4,
		SimulationTime:   2 * time.Minute,
		ActionInterval:   500 * time.Millisecond,
		CommentRate:      0.2,
		RatingRate:       0.3,
		FavoriteRate:     0.1,
		ZipfS:            1.07,
		MaxRPS:           50,
		ServerURL:        "http://localhost:8080",
		Seed:             time.Now().UnixNano(),
	}
}

// SimulatedUser is an account created by the simulator.
type SimulatedUser struct {
	ID    string
	Email string
	Token string
}

type simStory struct {
	ID       string
	AuthorID string
	Chapters []string
}

// SimulationMetrics summarizes a run.
type SimulationMetrics struct {
	Users          int
	Stories        int
	TotalRequests  int64
	FailedRequests int64
	Reads          int64
	Comments       int64
	Ratings        int64
	Favorites      int64
	AverageLatency time.Duration
	Elapsed        time.Duration
	ReadsPerStory  map[string]int64
}

type SimulationStats struct {
	mu             sync.Mutex
	startTime      time.Time
	totalRequests  int64
	failedRequests int64
	totalLatency   time.Duration
	reads          int64
	comments       int64
	ratings        int64
	favorites      int64
	readsPerStory  map[string]int64
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	limiter ratelimit.Limiter
	stats   *SimulationStats
	writers []*SimulatedUser
	readers []*SimulatedUser
	stories []*simStory
}

func NewSimulator(config SimConfig) *Simulator {
	limiter := ratelimit.NewUnlimited()
	if config.MaxRPS > 0 {
		limiter = ratelimit.New(config.MaxRPS)
	}
	return &Simulator{
		config:  config,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		stats: &SimulationStats{
			startTime:     time.Now(),
			readsPerStory: make(map[string]int64),
		},
	}
}

// Run seeds writers and stories, then lets readers act until ctx ends or
// SimulationTime elapses.
func (s *Simulator) Run(ctx context.Context) error {
	if s.config.ZipfS <= 1 {
		return fmt.Errorf("zipf exponent must be greater than 1, got %v", s.config.ZipfS)
	}
	log.Printf("Starting simulation against %s", s.config.ServerURL)

	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.SimulationTime)
	defer cancel()

	var wg sync.WaitGroup
	for i, reader := range s.readers {
		wg.Add(1)
		go func(reader *SimulatedUser, seed int64) {
			defer wg.Done()
			s.simulateReader(runCtx, reader, rand.New(rand.NewSource(seed)))
		}(reader, s.config.Seed+int64(i))
	}
	wg.Wait()
	return nil
}

func (s *Simulator) initialize(ctx context.Context) error {
	log.Printf("Phase 1: Creating %d writers and %d readers...", s.config.NumWriters, s.config.NumReaders)
	var err error
	if s.writers, err = s.createUsers(ctx, "writer", s.config.NumWriters); err != nil {
		return err
	}
	if s.readers, err = s.createUsers(ctx, "reader", s.config.NumReaders); err != nil {
		return err
	}

	log.Printf("Phase 2: Publishing %d stories per writer...", s.config.StoriesPerWriter)
	rng := rand.New(rand.NewSource(s.config.Seed))
	for _, writer := range s.writers {
		for i := 0; i < s.config.StoriesPerWriter; i++ {
			story, err := s.publishStory(ctx, writer, rng)
			if err != nil {
				return fmt.Errorf("failed to publish story for %s: %w", writer.Email, err)
			}
			s.stories = append(s.stories, story)
		}
	}
	if len(s.stories) == 0 {
		return fmt.Errorf("no stories to read")
	}

	// Zipf ranks map onto a shuffled order so popularity is not tied to creation order.
	rng.Shuffle(len(s.stories), func(i, j int) { s.stories[i], s.stories[j] = s.stories[j], s.stories[i] })
	log.Printf("Initialization completed: %d users, %d stories", len(s.writers)+len(s.readers), len(s.stories))
	return nil
}

func (s *Simulator) createUsers(ctx context.Context, role string, n int) ([]*SimulatedUser, error) {
	users := make([]*SimulatedUser, 0, n)
	runID := s.config.Seed
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("%s_%d_%d@sim.athemaria.test", role, runID, i)
		var resp api.LoginResponse
		err := s.requestWithRetry(ctx, http.MethodPost, "/auth/signup", "", handlers.SignupRequest{
			Email:       email,
			Password:    "simulated-password",
			DisplayName: fmt.Sprintf("%s %d", role, i),
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s %d: %w", role, i, err)
		}
		users = append(users, &SimulatedUser{ID: resp.UserID, Email: email, Token: resp.Token})
	}
	return users, nil
}

func (s *Simulator) publishStory(ctx context.Context, writer *SimulatedUser, rng *rand.Rand) (*simStory, error) {
	chapters := make([]services.ChapterInput, s.config.ChaptersPerStory)
	for i := range chapters {
		chapters[i] = services.ChapterInput{
			Title:   fmt.Sprintf("Chapter %d", i+1),
			Content: randomParagraph(rng),
		}
	}

	var story models.Story
	err := s.requestWithRetry(ctx, http.MethodPost, "/stories", writer.Token, services.CreateStoryInput{
		Title:       randomTitle(rng),
		Description: randomParagraph(rng),
		Genres:      randomGenres(rng),
		Tags:        []string{"simulated"},
		Status:      models.StatusPublished,
		Chapters:    chapters,
	}, &story)
	if err != nil {
		return nil, err
	}

	sim := &simStory{ID: story.ID, AuthorID: writer.ID}
	for _, ch := range story.Chapters {
		sim.Chapters = append(sim.Chapters, ch.ID)
	}
	return sim, nil
}

// requestWithRetry retries transport failures and 5xx answers with
// exponential backoff. 4xx answers fail immediately.
func (s *Simulator) requestWithRetry(ctx context.Context, method, path, token string, body, out interface{}) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		err := s.request(ctx, method, path, token, body, out)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError
	}
	// transport failures surface as *url.Error from http.Client.Do
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (s *Simulator) request(ctx context.Context, method, path, token string, body, out interface{}) error {
	s.limiter.Take()
	start := time.Now()
	err := s.doRequest(ctx, method, path, token, body, out)
	if err != nil && ctx.Err() != nil {
		// cut off by the end of the run, not a server failure
		return err
	}
	s.recordRequest(time.Since(start), err)
	return err
}

func (s *Simulator) doRequest(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.ServerURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &statusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}
	return nil
}

func (s *Simulator) recordRequest(latency time.Duration, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()
	s.stats.totalRequests++
	s.stats.totalLatency += latency
	if err != nil {
		s.stats.failedRequests++
	}
}

// GetMetrics returns a snapshot of the run so far.
func (s *Simulator) GetMetrics() SimulationMetrics {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	m := SimulationMetrics{
		Users:          len(s.writers) + len(s.readers),
		Stories:        len(s.stories),
		TotalRequests:  s.stats.totalRequests,
		FailedRequests: s.stats.failedRequests,
		Reads:          s.stats.reads,
		Comments:       s.stats.comments,
		Ratings:        s.stats.ratings,
		Favorites:      s.stats.favorites,
		Elapsed:        time.Since(s.stats.startTime),
		ReadsPerStory:  make(map[string]int64, len(s.stats.readsPerStory)),
	}
	if s.stats.totalRequests > 0 {
		m.AverageLatency = s.stats.totalLatency / time.Duration(s.stats.totalRequests)
	}
	for id, n := range s.stats.readsPerStory {
		m.ReadsPerStory[id] = n
	}
	return m
}
