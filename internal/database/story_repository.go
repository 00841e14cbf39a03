// internal/database/story_repository.go
package database

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"athemaria/internal/models"
	"athemaria/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChapterDocument is a chapter embedded in a story document.
type ChapterDocument struct {
	ID      string `bson:"id"`
	Title   string `bson:"title"`
	Content string `bson:"content"`
	Order   int    `bson:"order"`
}

// StoryDocument represents the MongoDB schema for a story as it is written.
// readCount is owned by IncrementReadCount and only set on insert.
type StoryDocument struct {
	ID          string            `bson:"_id"`
	Title       string            `bson:"title"`
	Description string            `bson:"description"`
	Chapters    []ChapterDocument `bson:"chapters"`
	Genres      []string          `bson:"genres"`
	Tags        []string          `bson:"tags"`
	AuthorID    string            `bson:"authorId"`
	AuthorName  string            `bson:"authorName"`
	Status      string            `bson:"status"`
	CoverImage  string            `bson:"coverImage"`
	CreatedAt   time.Time         `bson:"createdAt"`
	UpdatedAt   time.Time         `bson:"updatedAt"`
	Deleted     bool              `bson:"deleted"`
	DeletedAt   *string           `bson:"deletedAt"`
	// RemovedByAdmin is omitted for stories never touched by moderation.
	RemovedByAdmin bool `bson:"removedByAdmin,omitempty"`
}

// storedStoryDocument is the read-side schema. Older documents may carry a
// single "content" field instead of chapters, genres/tags as a plain string,
// or deletedAt as a number.
type storedStoryDocument struct {
	ID          string            `bson:"_id"`
	Title       string            `bson:"title"`
	Description string            `bson:"description"`
	Content     string            `bson:"content,omitempty"`
	Chapters    []ChapterDocument `bson:"chapters,omitempty"`
	Genres      bson.RawValue     `bson:"genres,omitempty"`
	Tags        bson.RawValue     `bson:"tags,omitempty"`
	AuthorID    string            `bson:"authorId"`
	AuthorName  string            `bson:"authorName"`
	Status      string            `bson:"status"`
	CoverImage  string            `bson:"coverImage"`
	CreatedAt   time.Time         `bson:"createdAt"`
	UpdatedAt   time.Time         `bson:"updatedAt"`
	ReadCount   int               `bson:"readCount"`
	Deleted     bool              `bson:"deleted"`
	DeletedAt   bson.RawValue     `bson:"deletedAt,omitempty"`
	// RemovedByAdmin is missing on documents written before moderation locks.
	RemovedByAdmin bool `bson:"removedByAdmin,omitempty"`
}

// StoryToDocument converts a Story model to a MongoDB document.
func StoryToDocument(story *models.Story) *StoryDocument {
	chapters := make([]ChapterDocument, len(story.Chapters))
	for i, ch := range story.Chapters {
		chapters[i] = ChapterDocument{ID: ch.ID, Title: ch.Title, Content: ch.Content, Order: ch.Order}
	}
	genres := story.Genres
	if genres == nil {
		genres = []string{}
	}
	tags := story.Tags
	if tags == nil {
		tags = []string{}
	}
	return &StoryDocument{
		ID:          story.ID,
		Title:       story.Title,
		Description: story.Description,
		Chapters:    chapters,
		Genres:      genres,
		Tags:        tags,
		AuthorID:    story.AuthorID,
		AuthorName:  story.AuthorName,
		Status:      string(story.Status),
		CoverImage:  story.CoverImage,
		CreatedAt:   story.CreatedAt,
		UpdatedAt:   story.UpdatedAt,
		Deleted:     story.Deleted,
		DeletedAt:   story.DeletedAt,

		RemovedByAdmin: story.RemovedByAdmin,
	}
}

// documentToStory converts a stored document to a normalized Story model.
func documentToStory(doc *storedStoryDocument) *models.Story {
	story := &models.Story{
		ID:          doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		Genres:      stringList(doc.Genres),
		Tags:        stringList(doc.Tags),
		AuthorID:    doc.AuthorID,
		AuthorName:  doc.AuthorName,
		Status:      models.StoryStatus(doc.Status),
		CoverImage:  doc.CoverImage,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		ReadCount:   doc.ReadCount,
		Deleted:     doc.Deleted,
		DeletedAt:   millisString(doc.DeletedAt),

		RemovedByAdmin: doc.RemovedByAdmin,
	}
	if story.Status == "" {
		story.Status = models.StatusDraft
	}

	if len(doc.Chapters) == 0 {
		story.Chapters = []models.Chapter{models.DefaultChapter(doc.Content)}
		return story
	}

	story.Chapters = make([]models.Chapter, len(doc.Chapters))
	for i, ch := range doc.Chapters {
		order := ch.Order
		if order == 0 {
			order = i + 1
		}
		story.Chapters[i] = models.Chapter{ID: ch.ID, Title: ch.Title, Content: ch.Content, Order: order}
	}
	sort.SliceStable(story.Chapters, func(i, j int) bool {
		return story.Chapters[i].Order < story.Chapters[j].Order
	})
	return story
}

// stringList accepts an array of strings or a single legacy string.
func stringList(v bson.RawValue) []string {
	switch v.Type {
	case bsontype.String:
		s := strings.TrimSpace(v.StringValue())
		if s == "" {
			return []string{}
		}
		return []string{s}
	case bsontype.Array:
		values, err := v.Array().Values()
		if err != nil {
			return []string{}
		}
		out := make([]string, 0, len(values))
		for _, e := range values {
			if s, ok := e.StringValueOK(); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// millisString reads deletedAt stored as a string, a number or a date.
func millisString(v bson.RawValue) *string {
	var s string
	switch v.Type {
	case bsontype.String:
		s = v.StringValue()
	case bsontype.Int64:
		s = strconv.FormatInt(v.Int64(), 10)
	case bsontype.Int32:
		s = strconv.FormatInt(int64(v.Int32()), 10)
	case bsontype.Double:
		s = strconv.FormatInt(int64(v.Double()), 10)
	case bsontype.DateTime:
		s = strconv.FormatInt(v.DateTime(), 10)
	default:
		return nil
	}
	return &s
}

// SaveStory creates or updates a story in MongoDB.
func (m *MongoDB) SaveStory(ctx context.Context, story *models.Story) error {
	doc := StoryToDocument(story)

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": story.ID}
	update := bson.M{
		"$set":         doc,
		"$setOnInsert": bson.M{"readCount": story.ReadCount},
		"$unset":       bson.M{"content": ""},
	}

	if _, err := m.Stories.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}
	return nil
}

// GetStory retrieves a story by its ID.
func (m *MongoDB) GetStory(ctx context.Context, id string) (*models.Story, error) {
	var doc storedStoryDocument

	err := m.Stories.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewStoryNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	return documentToStory(&doc), nil
}

// DeleteStory permanently removes a story document.
func (m *MongoDB) DeleteStory(ctx context.Context, id string) error {
	result, err := m.Stories.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete story %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return utils.NewStoryNotFoundError(id)
	}
	return nil
}

// GetStoriesByAuthor returns every story of an author, deleted ones included.
func (m *MongoDB) GetStoriesByAuthor(ctx context.Context, authorID string) ([]*models.Story, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	return m.findStories(ctx, bson.M{"authorId": authorID}, opts)
}

// GetStoriesByStatus returns the newest stories with the given status.
func (m *MongoDB) GetStoriesByStatus(ctx context.Context, status models.StoryStatus, limit int) ([]*models.Story, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return m.findStories(ctx, bson.M{"status": string(status)}, opts)
}

// GetStoriesByIDs returns the stories that exist among ids, in ids order.
func (m *MongoDB) GetStoriesByIDs(ctx context.Context, ids []string) ([]*models.Story, error) {
	if len(ids) == 0 {
		return []*models.Story{}, nil
	}
	found, err := m.findStories(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Story, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}
	stories := make([]*models.Story, 0, len(found))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			stories = append(stories, s)
		}
	}
	return stories, nil
}

// UpdateStoryStatus sets the status of a story.
func (m *MongoDB) UpdateStoryStatus(ctx context.Context, id string, status models.StoryStatus, updatedAt time.Time) error {
	update := bson.M{"$set": bson.M{"status": string(status), "updatedAt": updatedAt}}
	return m.updateStory(ctx, id, update)
}

// MarkStoryDeleted soft-deletes a story. byAdmin locks it against author restore.
func (m *MongoDB) MarkStoryDeleted(ctx context.Context, id string, deletedAt string, byAdmin bool, updatedAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"deleted":        true,
		"deletedAt":      deletedAt,
		"removedByAdmin": byAdmin,
		"updatedAt":      updatedAt,
	}}
	return m.updateStory(ctx, id, update)
}

// RestoreStory clears the soft-delete markers of a story.
func (m *MongoDB) RestoreStory(ctx context.Context, id string, updatedAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"deleted":        false,
		"deletedAt":      nil,
		"removedByAdmin": false,
		"updatedAt":      updatedAt,
	}}
	return m.updateStory(ctx, id, update)
}

// IncrementReadCount bumps the read counter of a story.
func (m *MongoDB) IncrementReadCount(ctx context.Context, id string) error {
	return m.updateStory(ctx, id, bson.M{"$inc": bson.M{"readCount": 1}})
}

// FindPurgeableStories selects deleted stories whose deletedAt timestamp
// string compares below cutoff.
func (m *MongoDB) FindPurgeableStories(ctx context.Context, cutoff string) ([]*models.Story, error) {
	filter := bson.M{
		"deleted":   true,
		"deletedAt": bson.M{"$lt": cutoff},
	}
	return m.findStories(ctx, filter, options.Find())
}

func (m *MongoDB) updateStory(ctx context.Context, id string, update bson.M) error {
	result, err := m.Stories.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update story %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return utils.NewStoryNotFoundError(id)
	}
	return nil
}

func (m *MongoDB) findStories(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Story, error) {
	cursor, err := m.Stories.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	defer cursor.Close(ctx)

	stories := make([]*models.Story, 0)
	for cursor.Next(ctx) {
		var doc storedStoryDocument
		if err := cursor.Decode(&doc); err != nil {
			log.Printf("Error decoding story document: %v", err)
			continue
		}
		stories = append(stories, documentToStory(&doc))
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration failed: %w", err)
	}
	return stories, nil
}
