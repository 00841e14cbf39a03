package database

import (
	"context"
	"testing"
	"time"

	"athemaria/internal/models"
	"athemaria/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStory(id, author string, created time.Time) *models.Story {
	return &models.Story{
		ID:        id,
		Title:     "Story " + id,
		AuthorID:  author,
		Status:    models.StatusPublished,
		Chapters:  []models.Chapter{models.DefaultChapter("")},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryStoriesAreCopied(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	story := newStory("s1", "u1", time.Now())
	require.NoError(t, db.SaveStory(ctx, story))

	story.Title = "changed after save"
	got, err := db.GetStory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Story s1", got.Title)

	got.Chapters[0].Title = "changed after read"
	again, _ := db.GetStory(ctx, "s1")
	assert.Equal(t, models.DefaultChapterTitle, again.Chapters[0].Title)
}

func TestMemoryStoryOrdering(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, db.SaveStory(ctx, newStory(id, "u1", base.Add(time.Duration(i)*time.Minute))))
	}

	byAuthor, err := db.GetStoriesByAuthor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byAuthor, 3)
	assert.Equal(t, "new", byAuthor[0].ID)
	assert.Equal(t, "old", byAuthor[2].ID)

	limited, err := db.GetStoriesByStatus(ctx, models.StatusPublished, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "new", limited[0].ID)
	assert.Equal(t, "mid", limited[1].ID)

	byIDs, err := db.GetStoriesByIDs(ctx, []string{"mid", "missing", "old"})
	require.NoError(t, err)
	require.Len(t, byIDs, 2)
	assert.Equal(t, "mid", byIDs[0].ID)
	assert.Equal(t, "old", byIDs[1].ID)
}

func TestMemorySoftDeleteAndPurgeQuery(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	require.NoError(t, db.SaveStory(ctx, newStory("s1", "u1", time.Now())))
	require.NoError(t, db.SaveStory(ctx, newStory("s2", "u1", time.Now())))

	require.NoError(t, db.MarkStoryDeleted(ctx, "s1", "100", false, time.Now()))
	require.NoError(t, db.MarkStoryDeleted(ctx, "s2", "500", true, time.Now()))

	purgeable, err := db.FindPurgeableStories(ctx, "200")
	require.NoError(t, err)
	require.Len(t, purgeable, 1)
	assert.Equal(t, "s1", purgeable[0].ID)

	locked, _ := db.GetStory(ctx, "s2")
	assert.True(t, locked.RemovedByAdmin)

	require.NoError(t, db.RestoreStory(ctx, "s2", time.Now()))
	restored, _ := db.GetStory(ctx, "s2")
	assert.False(t, restored.Deleted)
	assert.Nil(t, restored.DeletedAt)
	assert.False(t, restored.RemovedByAdmin)

	require.NoError(t, db.DeleteStory(ctx, "s1"))
	err = db.DeleteStory(ctx, "s1")
	assert.True(t, utils.IsErrorCode(err, utils.ErrStoryNotFound))

	err = db.MarkStoryDeleted(ctx, "missing", "1", false, time.Now())
	assert.True(t, utils.IsErrorCode(err, utils.ErrStoryNotFound))
}

func TestMemoryProfileLists(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	require.NoError(t, db.UpdateProfileList(ctx, "u1", models.ListFavorites, "s1", true))
	require.NoError(t, db.UpdateProfileList(ctx, "u1", models.ListFavorites, "s1", true))
	require.NoError(t, db.UpdateProfileList(ctx, "u1", models.ListReadLater, "s2", true))

	profile, err := db.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, profile.Favorites)
	assert.Equal(t, []string{"s2"}, profile.ReadLater)

	// saving profile fields keeps the lists
	profile.DisplayName = "Reader"
	profile.Favorites = nil
	require.NoError(t, db.SaveProfile(ctx, profile))
	profile, _ = db.GetProfile(ctx, "u1")
	assert.Equal(t, "Reader", profile.DisplayName)
	assert.Equal(t, []string{"s1"}, profile.Favorites)

	require.NoError(t, db.UpdateProfileList(ctx, "u1", models.ListFavorites, "s1", false))
	profile, _ = db.GetProfile(ctx, "u1")
	assert.Empty(t, profile.Favorites)

	_, err = db.GetProfile(ctx, "nobody")
	assert.True(t, utils.IsErrorCode(err, utils.ErrUserNotFound))
}

func TestMemoryCredentials(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	require.NoError(t, db.CreateCredential(ctx, &models.Credential{ID: "u1", Email: "A@Example.com", PasswordHash: "h"}))
	err := db.CreateCredential(ctx, &models.Credential{ID: "u2", Email: "a@example.com"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrUserAlreadyExists))

	cred, err := db.GetCredentialByEmail(ctx, "a@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", cred.ID)

	require.NoError(t, db.UpdatePasswordHash(ctx, "u1", "h2"))
	cred, _ = db.GetCredentialByEmail(ctx, "a@example.com")
	assert.Equal(t, "h2", cred.PasswordHash)
}

func TestMemoryPasswordResets(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	now := time.Now()

	require.NoError(t, db.SavePasswordReset(ctx, &models.PasswordReset{ID: "old", Email: "a@b.c", ExpiresAt: now.Add(time.Minute), CreatedAt: now.Add(-time.Minute)}))
	require.NoError(t, db.SavePasswordReset(ctx, &models.PasswordReset{ID: "new", Email: "a@b.c", ExpiresAt: now.Add(time.Minute), CreatedAt: now}))
	require.NoError(t, db.SavePasswordReset(ctx, &models.PasswordReset{ID: "expired", Email: "a@b.c", ExpiresAt: now.Add(-time.Second), CreatedAt: now}))

	active, err := db.GetActivePasswordResets(ctx, "A@B.C", now)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "new", active[0].ID)

	require.NoError(t, db.MarkPasswordResetUsed(ctx, "new"))
	active, _ = db.GetActivePasswordResets(ctx, "a@b.c", now)
	require.Len(t, active, 1)
	assert.Equal(t, "old", active[0].ID)

	require.NoError(t, db.RecordPasswordResetFailure(ctx, "old", 2))
	active, _ = db.GetActivePasswordResets(ctx, "a@b.c", now)
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].Attempts)

	require.NoError(t, db.RecordPasswordResetFailure(ctx, "old", 2))
	active, _ = db.GetActivePasswordResets(ctx, "a@b.c", now)
	assert.Empty(t, active)
	assert.Error(t, db.RecordPasswordResetFailure(ctx, "missing", 2))
}

func TestMemoryRatingsUpsertPerUser(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()

	require.NoError(t, db.UpsertRating(ctx, &models.Rating{ID: "r1", StoryID: "s1", UserID: "u1", Value: 2}))
	require.NoError(t, db.UpsertRating(ctx, &models.Rating{ID: "r2", StoryID: "s1", UserID: "u1", Value: 5}))
	require.NoError(t, db.UpsertRating(ctx, &models.Rating{ID: "r3", StoryID: "s1", UserID: "u2", Value: 3}))

	ratings, err := db.GetStoryRatings(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, ratings, 2)

	mine, err := db.GetUserRating(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, mine.Value)
	assert.Equal(t, "r1", mine.ID)

	_, err = db.GetUserRating(ctx, "s1", "u3")
	assert.True(t, utils.IsNotFound(err))
}

func TestMemoryNotifications(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	now := time.Now()

	require.NoError(t, db.SaveNotification(ctx, &models.Notification{ID: "n1", UserID: "u1", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, db.SaveNotification(ctx, &models.Notification{ID: "n2", UserID: "u1", CreatedAt: now}))
	require.NoError(t, db.SaveNotification(ctx, &models.Notification{ID: "n3", UserID: "u2", CreatedAt: now}))

	list, err := db.GetUserNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)

	require.NoError(t, db.MarkAllNotificationsRead(ctx, "u1"))
	n, _ := db.GetNotification(ctx, "n1")
	assert.True(t, n.Read)
	other, _ := db.GetNotification(ctx, "n3")
	assert.False(t, other.Read)

	err = db.MarkNotificationRead(ctx, "missing")
	assert.True(t, utils.IsNotFound(err))
}
