package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"athemaria/internal/database"
	"athemaria/internal/models"
	"athemaria/internal/utils"

	"github.com/google/uuid"
)

type RatingService struct {
	db  database.DBAdapter
	now Clock
}

func NewRatingService(db database.DBAdapter) *RatingService {
	return &RatingService{db: db, now: time.Now}
}

// RateStory stores the user's rating; rating again replaces the value.
func (s *RatingService) RateStory(ctx context.Context, storyID, userID string, value int) error {
	if value < models.MinRating || value > models.MaxRating {
		return utils.NewInvalidInputError(fmt.Sprintf("Rating must be between %d and %d", models.MinRating, models.MaxRating))
	}
	if _, err := s.db.GetStory(ctx, storyID); err != nil {
		return storeError("get story", err)
	}

	now := s.now()
	rating := &models.Rating{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		UserID:    userID,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.UpsertRating(ctx, rating); err != nil {
		return storeError("rate story", err)
	}
	return nil
}

// GetUserRating returns the user's rating of a story, 0 when unrated.
func (s *RatingService) GetUserRating(ctx context.Context, storyID, userID string) (int, error) {
	rating, err := s.db.GetUserRating(ctx, storyID, userID)
	if utils.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, storeError("get user rating", err)
	}
	return rating.Value, nil
}

// GetAverageRating averages every rating of a story. Store errors are logged
// and reported as no ratings.
func (s *RatingService) GetAverageRating(ctx context.Context, storyID string) models.AverageRating {
	ratings, err := s.db.GetStoryRatings(ctx, storyID)
	if err != nil {
		log.Printf("Error loading ratings for story %s: %v", storyID, err)
		return models.AverageRating{}
	}
	if len(ratings) == 0 {
		return models.AverageRating{}
	}

	total := 0
	for _, r := range ratings {
		total += r.Value
	}
	avg := float64(total) / float64(len(ratings))
	return models.AverageRating{
		Average: math.Round(avg*100) / 100,
		Count:   len(ratings),
	}
}
