package simulator

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"athemaria/internal/handlers"
)

var (
	titleWords = []string{"Lighthouse", "Harbor", "Ember", "Winter", "Glass", "Orchard", "River", "Lantern", "Salt", "Hollow"}
	genres     = []string{"Mystery", "Fantasy", "Romance", "Drama", "Horror", "Adventure"}
	sentences  = []string{
		"The tide came in slower than anyone remembered.",
		"She kept the letter folded inside her coat.",
		"Nobody in the village spoke of the lantern again.",
		"By morning the road had vanished under snow.",
		"He counted the bells and lost track at nine.",
	}
	comments = []string{"Loved this chapter!", "Can't wait for the next one.", "The ending surprised me.", "Beautiful writing."}
)

// simulateReader picks stories by popularity and reads them chapter by
// chapter, sometimes leaving a comment, rating or favorite.
func (s *Simulator) simulateReader(ctx context.Context, reader *SimulatedUser, rng *rand.Rand) {
	pick := func() *simStory { return s.stories[0] }
	if len(s.stories) > 1 {
		zipf := rand.NewZipf(rng, s.config.ZipfS, 1, uint64(len(s.stories)-1))
		pick = func() *simStory { return s.stories[zipf.Uint64()] }
	}
	ticker := time.NewTicker(s.config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.readStory(ctx, reader, pick(), rng); err != nil && ctx.Err() == nil {
				log.Printf("Reader %s: %v", reader.Email, err)
			}
		}
	}
}

func (s *Simulator) readStory(ctx context.Context, reader *SimulatedUser, story *simStory, rng *rand.Rand) error {
	if err := s.request(ctx, http.MethodGet, "/stories/"+story.ID, reader.Token, nil, nil); err != nil {
		return fmt.Errorf("get story %s: %w", story.ID, err)
	}

	var chapterID string
	if len(story.Chapters) > 0 {
		chapterID = story.Chapters[rng.Intn(len(story.Chapters))]
	}
	if err := s.request(ctx, http.MethodPost, "/stories/"+story.ID+"/read", reader.Token, handlers.ReadRequest{ChapterID: chapterID}, nil); err != nil {
		return fmt.Errorf("record read %s: %w", story.ID, err)
	}
	s.stats.mu.Lock()
	s.stats.reads++
	s.stats.readsPerStory[story.ID]++
	s.stats.mu.Unlock()

	if rng.Float64() < s.config.CommentRate {
		text := comments[rng.Intn(len(comments))]
		if err := s.request(ctx, http.MethodPost, "/stories/"+story.ID+"/comments", reader.Token, handlers.CommentRequest{Text: text}, nil); err != nil {
			return fmt.Errorf("comment on %s: %w", story.ID, err)
		}
		s.count(&s.stats.comments)
	}
	if rng.Float64() < s.config.RatingRate {
		value := 3 + rng.Intn(3)
		if err := s.request(ctx, http.MethodPost, "/stories/"+story.ID+"/rating", reader.Token, handlers.RatingRequest{Value: value}, nil); err != nil {
			return fmt.Errorf("rate %s: %w", story.ID, err)
		}
		s.count(&s.stats.ratings)
	}
	if rng.Float64() < s.config.FavoriteRate {
		if err := s.request(ctx, http.MethodPost, "/profile/favorites/"+story.ID, reader.Token, nil, nil); err != nil {
			return fmt.Errorf("favorite %s: %w", story.ID, err)
		}
		s.count(&s.stats.favorites)
	}
	return nil
}

func (s *Simulator) count(counter *int64) {
	s.stats.mu.Lock()
	*counter++
	s.stats.mu.Unlock()
}

func randomTitle(rng *rand.Rand) string {
	a := titleWords[rng.Intn(len(titleWords))]
	b := titleWords[rng.Intn(len(titleWords))]
	return fmt.Sprintf("The %s of %s", a, b)
}

func randomGenres(rng *rand.Rand) []string {
	first := rng.Intn(len(genres))
	picked := []string{genres[first]}
	if rng.Intn(2) == 0 {
		picked = append(picked, genres[(first+1)%len(genres)])
	}
	return picked
}

func randomParagraph(rng *rand.Rand) string {
	n := 2 + rng.Intn(3)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = sentences[rng.Intn(len(sentences))]
	}
	return strings.Join(parts, " ")
}
