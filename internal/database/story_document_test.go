package database

import (
	"testing"
	"time"

	"athemaria/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func decodeStored(t *testing.T, raw bson.M) *models.Story {
	t.Helper()
	data, err := bson.Marshal(raw)
	require.NoError(t, err)

	var doc storedStoryDocument
	require.NoError(t, bson.Unmarshal(data, &doc))
	return documentToStory(&doc)
}

func TestDocumentToStory_LegacyContent(t *testing.T) {
	story := decodeStored(t, bson.M{
		"_id":     "s1",
		"title":   "Old",
		"content": "once upon a time",
		"genres":  "Fantasy",
	})

	require.Len(t, story.Chapters, 1)
	assert.Equal(t, models.DefaultChapterID, story.Chapters[0].ID)
	assert.Equal(t, models.DefaultChapterTitle, story.Chapters[0].Title)
	assert.Equal(t, "once upon a time", story.Chapters[0].Content)
	assert.Equal(t, 1, story.Chapters[0].Order)
	assert.Equal(t, []string{"Fantasy"}, story.Genres)
	assert.Equal(t, []string{}, story.Tags)
	assert.Equal(t, models.StatusDraft, story.Status)
	assert.Nil(t, story.DeletedAt)
}

func TestDocumentToStory_ChapterOrdering(t *testing.T) {
	story := decodeStored(t, bson.M{
		"_id": "s2",
		"chapters": bson.A{
			bson.M{"id": "c", "title": "Third", "order": 3},
			bson.M{"id": "a", "title": "First", "order": 1},
			bson.M{"id": "b", "title": "Second", "order": 2},
		},
		"genres": bson.A{"Horror", "Mystery"},
		"tags":   bson.A{"dark"},
		"status": "published",
	})

	require.Len(t, story.Chapters, 3)
	assert.Equal(t, "a", story.Chapters[0].ID)
	assert.Equal(t, "b", story.Chapters[1].ID)
	assert.Equal(t, "c", story.Chapters[2].ID)
	assert.Equal(t, []string{"Horror", "Mystery"}, story.Genres)
	assert.Equal(t, []string{"dark"}, story.Tags)
	assert.Equal(t, models.StatusPublished, story.Status)
}

func TestDocumentToStory_MissingOrderUsesPosition(t *testing.T) {
	story := decodeStored(t, bson.M{
		"_id": "s3",
		"chapters": bson.A{
			bson.M{"id": "x", "title": "One"},
			bson.M{"id": "y", "title": "Two"},
		},
	})

	require.Len(t, story.Chapters, 2)
	assert.Equal(t, 1, story.Chapters[0].Order)
	assert.Equal(t, 2, story.Chapters[1].Order)
}

func TestDocumentToStory_DeletedAtShapes(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"string", "1700000000000", "1700000000000"},
		{"int64", int64(1700000000000), "1700000000000"},
		{"double", float64(1700000000000), "1700000000000"},
		{"date", time.UnixMilli(1700000000000).UTC(), "1700000000000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			story := decodeStored(t, bson.M{"_id": "s", "deleted": true, "deletedAt": tc.value})
			require.NotNil(t, story.DeletedAt)
			assert.Equal(t, tc.want, *story.DeletedAt)
		})
	}
}

func TestStoryToDocument_RoundTrip(t *testing.T) {
	deletedAt := "1700000000000"
	story := &models.Story{
		ID:        "s4",
		Title:     "New",
		Chapters:  []models.Chapter{{ID: "c1", Title: "Start", Content: "text", Order: 1}},
		Genres:    []string{"Romance"},
		Status:    models.StatusPublished,
		Deleted:   true,
		DeletedAt: &deletedAt,

		RemovedByAdmin: true,
	}

	data, err := bson.Marshal(StoryToDocument(story))
	require.NoError(t, err)
	var doc storedStoryDocument
	require.NoError(t, bson.Unmarshal(data, &doc))
	got := documentToStory(&doc)

	assert.Equal(t, story.Chapters, got.Chapters)
	assert.Equal(t, story.Genres, got.Genres)
	assert.Equal(t, []string{}, got.Tags)
	assert.Equal(t, deletedAt, *got.DeletedAt)
	assert.True(t, got.RemovedByAdmin)
}
