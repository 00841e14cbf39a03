package services

import (
	"context"
	"time"

	"athemaria/internal/database"
	"athemaria/internal/models"
	"athemaria/internal/utils"
)

type ProgressService struct {
	db  database.DBAdapter
	now Clock
}

func NewProgressService(db database.DBAdapter) *ProgressService {
	return &ProgressService{db: db, now: time.Now}
}

// ContinueReading pairs a progress entry with its story.
type ContinueReading struct {
	Story        *models.Story `json:"story"`
	ChapterID    string        `json:"chapterId,omitempty"`
	LastReadDate time.Time     `json:"lastReadDate"`
}

// RecordRead upserts the user's progress on a story and bumps its read count.
// The two writes are independent.
func (s *ProgressService) RecordRead(ctx context.Context, userID, storyID, chapterID string) (*models.ReadingProgress, error) {
	story, err := s.db.GetStory(ctx, storyID)
	if err != nil {
		return nil, storeError("get story", err)
	}
	if story.Deleted {
		return nil, utils.NewStoryNotFoundError(storyID)
	}
	if chapterID != "" && chapterIndex(story, chapterID) < 0 {
		return nil, utils.NewNotFoundError("Chapter", chapterID)
	}

	progress := &models.ReadingProgress{
		ID:           models.ProgressID(userID, storyID),
		UserID:       userID,
		StoryID:      storyID,
		ChapterID:    chapterID,
		LastReadDate: s.now(),
	}
	if err := s.db.UpsertProgress(ctx, progress); err != nil {
		return nil, storeError("record reading progress", err)
	}
	if err := s.db.IncrementReadCount(ctx, storyID); err != nil {
		return nil, storeError("increment read count", err)
	}
	return progress, nil
}

// GetContinueReading returns the user's most recently read stories that
// still exist and are not deleted.
func (s *ProgressService) GetContinueReading(ctx context.Context, userID string, limit int) ([]ContinueReading, error) {
	entries, err := s.db.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, storeError("get reading progress", err)
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.StoryID
	}
	stories, err := s.db.GetStoriesByIDs(ctx, ids)
	if err != nil {
		return nil, storeError("get continue reading stories", err)
	}
	byID := make(map[string]*models.Story, len(stories))
	for _, st := range stories {
		byID[st.ID] = st
	}

	out := make([]ContinueReading, 0, len(entries))
	for _, e := range entries {
		story, ok := byID[e.StoryID]
		if !ok || story.Deleted {
			continue
		}
		out = append(out, ContinueReading{Story: story, ChapterID: e.ChapterID, LastReadDate: e.LastReadDate})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
