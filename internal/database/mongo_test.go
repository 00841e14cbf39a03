package database

import (
	"context"
	"testing"
	"time"

	"athemaria/internal/models"
	"athemaria/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const storiesNS = "athemaria.stories"

func TestMongoGetStory(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("legacy document", func(mt *mtest.T) {
		db := NewMongoDBFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, storiesNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "s1"},
			{Key: "title", Value: "Legacy"},
			{Key: "content", Value: "body"},
			{Key: "tags", Value: "tagged"},
		}))

		story, err := db.GetStory(context.Background(), "s1")
		require.NoError(mt, err)
		assert.Equal(mt, "Legacy", story.Title)
		require.Len(mt, story.Chapters, 1)
		assert.Equal(mt, "body", story.Chapters[0].Content)
		assert.Equal(mt, []string{"tagged"}, story.Tags)
	})

	mt.Run("not found", func(mt *mtest.T) {
		db := NewMongoDBFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, storiesNS, mtest.FirstBatch))

		_, err := db.GetStory(context.Background(), "missing")
		assert.True(mt, utils.IsErrorCode(err, utils.ErrStoryNotFound))
	})
}

func TestMongoFindPurgeableStories(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes every match", func(mt *mtest.T) {
		db := NewMongoDBFromDatabase(mt.DB)
		first := mtest.CreateCursorResponse(1, storiesNS, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "a"}, {Key: "deleted", Value: true}, {Key: "deletedAt", Value: "100"}})
		next := mtest.CreateCursorResponse(0, storiesNS, mtest.NextBatch,
			bson.D{{Key: "_id", Value: "b"}, {Key: "deleted", Value: true}, {Key: "deletedAt", Value: int64(200)}})
		mt.AddMockResponses(first, next)

		stories, err := db.FindPurgeableStories(context.Background(), "300")
		require.NoError(mt, err)
		require.Len(mt, stories, 2)
		assert.Equal(mt, "100", *stories[0].DeletedAt)
		assert.Equal(mt, "200", *stories[1].DeletedAt)
	})
}

func TestMongoDeleteStory(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deleted", func(mt *mtest.T) {
		db := NewMongoDBFromDatabase(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "acknowledged", Value: true}, {Key: "n", Value: 1}})

		assert.NoError(mt, db.DeleteStory(context.Background(), "s1"))
	})

	mt.Run("nothing matched", func(mt *mtest.T) {
		db := NewMongoDBFromDatabase(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "acknowledged", Value: true}, {Key: "n", Value: 0}})

		err := db.DeleteStory(context.Background(), "s1")
		assert.True(mt, utils.IsErrorCode(err, utils.ErrStoryNotFound))
	})
}

func TestMongoCreateCredentialDuplicate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate email", func(mt *mtest.T) {
		db := NewMongoDBFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := db.CreateCredential(context.Background(), &models.Credential{
			ID:        "u1",
			Email:     "Reader@Example.com",
			CreatedAt: time.Now(),
		})
		assert.True(mt, utils.IsErrorCode(err, utils.ErrUserAlreadyExists))
	})
}

func TestMongoGetUserRating(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		db := NewMongoDBFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "athemaria.ratings", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "r1"},
			{Key: "storyId", Value: "s1"},
			{Key: "userId", Value: "u1"},
			{Key: "value", Value: 4},
		}))

		rating, err := db.GetUserRating(context.Background(), "s1", "u1")
		require.NoError(mt, err)
		assert.Equal(mt, 4, rating.Value)
	})

	mt.Run("none", func(mt *mtest.T) {
		db := NewMongoDBFromDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "athemaria.ratings", mtest.FirstBatch))

		_, err := db.GetUserRating(context.Background(), "s1", "u1")
		assert.True(mt, utils.IsNotFound(err))
	})
}
