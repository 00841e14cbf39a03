package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"athemaria/internal/models"
	"athemaria/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CommentDocument represents comment data in MongoDB
type CommentDocument struct {
	ID         string    `bson:"_id"`
	StoryID    string    `bson:"storyId"`
	UserID     string    `bson:"userId"`
	UserName   string    `bson:"userName"`
	UserAvatar *string   `bson:"userAvatar"`
	Text       string    `bson:"text"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// RatingDocument represents a single user's rating of a story
type RatingDocument struct {
	ID        string    `bson:"_id"`
	StoryID   string    `bson:"storyId"`
	UserID    string    `bson:"userId"`
	Value     int       `bson:"value"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// ProgressDocument is keyed by "{userId}_{storyId}"
type ProgressDocument struct {
	ID           string    `bson:"_id"`
	UserID       string    `bson:"userId"`
	StoryID      string    `bson:"storyId"`
	ChapterID    string    `bson:"chapterId,omitempty"`
	LastReadDate time.Time `bson:"lastReadDate"`
}

func commentToDocument(c *models.Comment) *CommentDocument {
	return &CommentDocument{
		ID:         c.ID,
		StoryID:    c.StoryID,
		UserID:     c.UserID,
		UserName:   c.UserName,
		UserAvatar: c.UserAvatar,
		Text:       c.Text,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// Helper function to convert CommentDocument to models.Comment
func documentToComment(doc *CommentDocument) *models.Comment {
	return &models.Comment{
		ID:         doc.ID,
		StoryID:    doc.StoryID,
		UserID:     doc.UserID,
		UserName:   doc.UserName,
		UserAvatar: doc.UserAvatar,
		Text:       doc.Text,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

// SaveComment creates or updates a comment in MongoDB
func (m *MongoDB) SaveComment(ctx context.Context, comment *models.Comment) error {
	doc := commentToDocument(comment)

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": doc}

	result, err := m.Comments.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		log.Printf("Error saving comment %s: %v", comment.ID, err)
		return fmt.Errorf("failed to save comment: %w", err)
	}

	log.Printf("Saved comment %s. Matched: %d, Modified: %d, Upserted: %d",
		comment.ID, result.MatchedCount, result.ModifiedCount, result.UpsertedCount)
	return nil
}

// GetComment retrieves a comment by ID
func (m *MongoDB) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var doc CommentDocument

	err := m.Comments.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Comment not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return documentToComment(&doc), nil
}

// GetStoryComments retrieves all comments for a story, newest first
func (m *MongoDB) GetStoryComments(ctx context.Context, storyID string) ([]*models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := m.Comments.Find(ctx, bson.M{"storyId": storyID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get story comments: %w", err)
	}
	defer cursor.Close(ctx)

	comments := make([]*models.Comment, 0)
	for cursor.Next(ctx) {
		var doc CommentDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode comment: %w", err)
		}
		comments = append(comments, documentToComment(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration failed: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment
func (m *MongoDB) DeleteComment(ctx context.Context, id string) error {
	result, err := m.Comments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if result.DeletedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Comment not found", nil)
	}
	return nil
}

// UpsertRating stores the rating keyed by (storyId, userId)
func (m *MongoDB) UpsertRating(ctx context.Context, rating *models.Rating) error {
	filter := bson.M{
		"storyId": rating.StoryID,
		"userId":  rating.UserID,
	}
	update := bson.M{
		"$set": bson.M{
			"value":     rating.Value,
			"updatedAt": rating.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":       rating.ID,
			"createdAt": rating.CreatedAt,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := m.Ratings.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

// GetStoryRatings returns every rating of a story
func (m *MongoDB) GetStoryRatings(ctx context.Context, storyID string) ([]*models.Rating, error) {
	cursor, err := m.Ratings.Find(ctx, bson.M{"storyId": storyID})
	if err != nil {
		return nil, fmt.Errorf("failed to get ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []RatingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode ratings: %w", err)
	}

	ratings := make([]*models.Rating, len(docs))
	for i := range docs {
		ratings[i] = documentToRating(&docs[i])
	}
	return ratings, nil
}

// GetUserRating returns the rating a user gave a story
func (m *MongoDB) GetUserRating(ctx context.Context, storyID, userID string) (*models.Rating, error) {
	var doc RatingDocument
	err := m.Ratings.FindOne(ctx, bson.M{
		"storyId": storyID,
		"userId":  userID,
	}).Decode(&doc)

	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Rating not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	return documentToRating(&doc), nil
}

func documentToRating(doc *RatingDocument) *models.Rating {
	return &models.Rating{
		ID:        doc.ID,
		StoryID:   doc.StoryID,
		UserID:    doc.UserID,
		Value:     doc.Value,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// UpsertProgress records the latest read of a story by a user
func (m *MongoDB) UpsertProgress(ctx context.Context, progress *models.ReadingProgress) error {
	doc := ProgressDocument{
		ID:           progress.ID,
		UserID:       progress.UserID,
		StoryID:      progress.StoryID,
		ChapterID:    progress.ChapterID,
		LastReadDate: progress.LastReadDate,
	}

	opts := options.Update().SetUpsert(true)
	if _, err := m.Progress.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts); err != nil {
		return fmt.Errorf("failed to save reading progress: %w", err)
	}
	return nil
}

// GetUserProgress returns a user's reading progress, most recent first
func (m *MongoDB) GetUserProgress(ctx context.Context, userID string) ([]*models.ReadingProgress, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastReadDate", Value: -1}})
	cursor, err := m.Progress.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get reading progress: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []ProgressDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reading progress: %w", err)
	}

	entries := make([]*models.ReadingProgress, len(docs))
	for i, doc := range docs {
		entries[i] = &models.ReadingProgress{
			ID:           doc.ID,
			UserID:       doc.UserID,
			StoryID:      doc.StoryID,
			ChapterID:    doc.ChapterID,
			LastReadDate: doc.LastReadDate,
		}
	}
	return entries, nil
}
