package services

import (
	"context"
	"testing"
	"time"

	"athemaria/internal/database"
	"athemaria/internal/models"
	"athemaria/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReadAndContinueReading(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDB()
	stories := newStoryService(db)
	svc := NewProgressService(db)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first, _ := stories.CreateStory(ctx, "author-1", validInput())
	second, _ := stories.CreateStory(ctx, "author-1", validInput())
	gone, _ := stories.CreateStory(ctx, "author-1", validInput())

	read := func(storyID, chapterID string, at time.Time) {
		svc.now = fixedClock(at)
		_, err := svc.RecordRead(ctx, "reader", storyID, chapterID)
		require.NoError(t, err)
	}
	read(first.ID, first.Chapters[0].ID, base)
	read(second.ID, "", base.Add(time.Minute))
	read(gone.ID, "", base.Add(2*time.Minute))
	read(first.ID, "", base.Add(3*time.Minute))

	require.NoError(t, stories.SoftDeleteStory(ctx, gone.ID, "author-1"))

	progress, err := svc.GetContinueReading(ctx, "reader", 0)
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.Equal(t, first.ID, progress[0].Story.ID)
	assert.Equal(t, second.ID, progress[1].Story.ID)

	stored, _ := db.GetStory(ctx, first.ID)
	assert.Equal(t, 2, stored.ReadCount)

	entries, _ := db.GetUserProgress(ctx, "reader")
	assert.Len(t, entries, 3, "one entry per story")
	assert.Equal(t, models.ProgressID("reader", first.ID), entries[0].ID)

	limited, _ := svc.GetContinueReading(ctx, "reader", 1)
	assert.Len(t, limited, 1)
}

func TestRecordReadRejectsUnknownTargets(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDB()
	story, _ := newStoryService(db).CreateStory(ctx, "author-1", validInput())
	svc := NewProgressService(db)

	_, err := svc.RecordRead(ctx, "reader", "missing", "")
	assert.True(t, utils.IsErrorCode(err, utils.ErrStoryNotFound))

	_, err = svc.RecordRead(ctx, "reader", story.ID, "no-such-chapter")
	assert.True(t, utils.IsNotFound(err))
}
