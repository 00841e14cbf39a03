package services

import (
	"context"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"athemaria/internal/database"
	"athemaria/internal/models"
	"athemaria/internal/storage"
	"athemaria/internal/utils"

	"github.com/google/uuid"
)

// DefaultRetention is how long a soft-deleted story is kept before purge.
const DefaultRetention = 30 * 24 * time.Hour

// StoryConfig carries the settings the story service needs from config.
type StoryConfig struct {
	PublicBaseURL    string
	PlaceholderCover string // blob path of the default cover
	Retention        time.Duration
}

type StoryService struct {
	db     database.DBAdapter
	blobs  storage.BlobStore
	config StoryConfig
	now    Clock
}

func NewStoryService(db database.DBAdapter, blobs storage.BlobStore, config StoryConfig) *StoryService {
	if config.PlaceholderCover == "" {
		config.PlaceholderCover = storage.PlaceholderCoverPath
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	return &StoryService{db: db, blobs: blobs, config: config, now: time.Now}
}

// SetClock replaces the time source.
func (s *StoryService) SetClock(now Clock) { s.now = now }

// Retention returns the configured soft-delete retention window.
func (s *StoryService) Retention() time.Duration { return s.config.Retention }

// PlaceholderCoverURL is the public URL of the default cover image.
func (s *StoryService) PlaceholderCoverURL() string {
	return storage.PublicURL(s.config.PublicBaseURL, s.config.PlaceholderCover)
}

type ChapterInput struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content"`
}

type CreateStoryInput struct {
	Title       string             `json:"title" validate:"required,max=200"`
	Description string             `json:"description" validate:"required,max=5000"`
	Genres      []string           `json:"genres" validate:"required,min=1,max=3,dive,required"`
	Tags        []string           `json:"tags" validate:"omitempty,dive,required"`
	Status      models.StoryStatus `json:"status" validate:"omitempty,oneof=draft published"`
	CoverImage  string             `json:"coverImage"`
	Chapters    []ChapterInput     `json:"chapters" validate:"omitempty,dive"`
}

// UpdateStoryInput is a patch; nil fields are left unchanged.
type UpdateStoryInput struct {
	Title       *string             `json:"title" validate:"omitempty,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=5000"`
	Genres      *[]string           `json:"genres" validate:"omitempty,min=1,max=3,dive,required"`
	Tags        *[]string           `json:"tags" validate:"omitempty,dive,required"`
	Status      *models.StoryStatus `json:"status" validate:"omitempty,oneof=draft published"`
	CoverImage  *string             `json:"coverImage"`
}

// CreateStory stores a new story owned by authorID.
func (s *StoryService) CreateStory(ctx context.Context, authorID string, input CreateStoryInput) (*models.Story, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	story := &models.Story{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Genres:      input.Genres,
		Tags:        normalizeTags(input.Tags),
		AuthorID:    authorID,
		AuthorName:  s.displayName(ctx, authorID),
		Status:      input.Status,
		CoverImage:  input.CoverImage,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if story.Status == "" {
		story.Status = models.StatusDraft
	}
	if story.CoverImage == "" {
		story.CoverImage = s.PlaceholderCoverURL()
	}

	if len(input.Chapters) == 0 {
		story.Chapters = []models.Chapter{newChapter(models.DefaultChapterTitle, "", 1)}
	} else {
		for i, ch := range input.Chapters {
			story.Chapters = append(story.Chapters, newChapter(ch.Title, ch.Content, i+1))
		}
	}

	if err := s.db.SaveStory(ctx, story); err != nil {
		return nil, storeError("create story", err)
	}
	log.Printf("Created story %s by author %s", story.ID, authorID)
	return story, nil
}

func newChapter(title, content string, order int) models.Chapter {
	return models.Chapter{ID: uuid.NewString(), Title: title, Content: content, Order: order}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func (s *StoryService) displayName(ctx context.Context, userID string) string {
	profile, err := s.db.GetProfile(ctx, userID)
	if err != nil || profile.DisplayName == "" {
		return AnonymousName
	}
	return profile.DisplayName
}

// GetStory returns the normalized story. Deleted stories are still returned;
// reader-facing paths go through GetVisibleStory.
func (s *StoryService) GetStory(ctx context.Context, id string) (*models.Story, error) {
	story, err := s.db.GetStory(ctx, id)
	if err != nil {
		return nil, storeError("get story", err)
	}
	return story, nil
}

// GetVisibleStory returns the story only if viewerID may read it. Hidden
// stories answer STORY_NOT_FOUND so their existence is not revealed.
func (s *StoryService) GetVisibleStory(ctx context.Context, id, viewerID string) (*models.Story, error) {
	story, err := s.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}
	if !story.VisibleTo(viewerID) {
		return nil, utils.NewStoryNotFoundError(id)
	}
	return story, nil
}

// getOwnedStory loads a story and checks userID is its author.
func (s *StoryService) getOwnedStory(ctx context.Context, id, userID string) (*models.Story, error) {
	story, err := s.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}
	if story.AuthorID != userID {
		return nil, utils.NewForbiddenError("only the author can modify this story")
	}
	return story, nil
}

// UpdateStory applies an author's patch.
func (s *StoryService) UpdateStory(ctx context.Context, id, userID string, patch UpdateStoryInput) (*models.Story, error) {
	if err := ValidateInput(patch); err != nil {
		return nil, err
	}
	story, err := s.getOwnedStory(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, utils.NewInvalidInputError("title is required")
		}
		story.Title = title
	}
	if patch.Description != nil {
		if strings.TrimSpace(*patch.Description) == "" {
			return nil, utils.NewInvalidInputError("description is required")
		}
		story.Description = *patch.Description
	}
	if patch.Genres != nil {
		story.Genres = *patch.Genres
	}
	if patch.Tags != nil {
		story.Tags = normalizeTags(*patch.Tags)
	}
	if patch.CoverImage != nil {
		story.CoverImage = *patch.CoverImage
		if story.CoverImage == "" {
			story.CoverImage = s.PlaceholderCoverURL()
		}
	}
	if patch.Status != nil && *patch.Status != "" && *patch.Status != story.Status {
		// a story under correction is republished by moderation, not by its author
		if story.Status == models.StatusPendingCorrection {
			return nil, utils.NewAppError(utils.ErrInvalidTransition,
				"Story is awaiting moderation review", nil)
		}
		story.Status = *patch.Status
	}
	story.UpdatedAt = s.now()

	if err := s.db.SaveStory(ctx, story); err != nil {
		return nil, storeError("update story", err)
	}
	return story, nil
}

// UploadCover stores a cover image and points the story at it.
func (s *StoryService) UploadCover(ctx context.Context, id, userID, filename, contentType string, r io.Reader) (*models.Story, error) {
	story, err := s.getOwnedStory(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	path := storage.CoverPath(id, filename, s.now())
	if _, err := s.blobs.Put(ctx, path, contentType, r); err != nil {
		log.Printf("Error uploading cover for story %s: %v", id, err)
		return nil, utils.NewAppError(utils.ErrStorage, "Failed to upload cover image", err)
	}

	story.CoverImage = storage.PublicURL(s.config.PublicBaseURL, path)
	story.UpdatedAt = s.now()
	if err := s.db.SaveStory(ctx, story); err != nil {
		return nil, storeError("update story cover", err)
	}
	return story, nil
}

// AddChapter appends a chapter after the current last one.
func (s *StoryService) AddChapter(ctx context.Context, storyID, userID string, input ChapterInput) (*models.Chapter, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}
	story, err := s.getOwnedStory(ctx, storyID, userID)
	if err != nil {
		return nil, err
	}

	chapter := newChapter(input.Title, input.Content, story.NextChapterOrder())
	story.Chapters = append(story.Chapters, chapter)
	story.UpdatedAt = s.now()
	if err := s.db.SaveStory(ctx, story); err != nil {
		return nil, storeError("add chapter", err)
	}
	return &chapter, nil
}

// UpdateChapter replaces the title and content of one chapter.
func (s *StoryService) UpdateChapter(ctx context.Context, storyID, chapterID, userID string, input ChapterInput) (*models.Chapter, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}
	story, err := s.getOwnedStory(ctx, storyID, userID)
	if err != nil {
		return nil, err
	}

	idx := chapterIndex(story, chapterID)
	if idx < 0 {
		return nil, utils.NewNotFoundError("Chapter", chapterID)
	}
	story.Chapters[idx].Title = input.Title
	story.Chapters[idx].Content = input.Content
	story.UpdatedAt = s.now()
	if err := s.db.SaveStory(ctx, story); err != nil {
		return nil, storeError("update chapter", err)
	}
	chapter := story.Chapters[idx]
	return &chapter, nil
}

// DeleteChapter removes a chapter. The last remaining chapter can't be removed.
func (s *StoryService) DeleteChapter(ctx context.Context, storyID, chapterID, userID string) error {
	story, err := s.getOwnedStory(ctx, storyID, userID)
	if err != nil {
		return err
	}

	idx := chapterIndex(story, chapterID)
	if idx < 0 {
		return utils.NewNotFoundError("Chapter", chapterID)
	}
	if len(story.Chapters) == 1 {
		return utils.NewInvalidInputError("A story must keep at least one chapter")
	}
	story.Chapters = append(story.Chapters[:idx], story.Chapters[idx+1:]...)
	story.UpdatedAt = s.now()
	if err := s.db.SaveStory(ctx, story); err != nil {
		return storeError("delete chapter", err)
	}
	return nil
}

func chapterIndex(story *models.Story, chapterID string) int {
	for i, ch := range story.Chapters {
		if ch.ID == chapterID {
			return i
		}
	}
	return -1
}

// GetUserStories lists an author's stories, newest updated first, without
// soft-deleted ones.
func (s *StoryService) GetUserStories(ctx context.Context, authorID string) ([]*models.Story, error) {
	stories, err := s.db.GetStoriesByAuthor(ctx, authorID)
	if err != nil {
		return nil, storeError("get user stories", err)
	}
	return filterStories(stories, func(st *models.Story) bool { return !st.Deleted }), nil
}

// GetDeletedStories lists an author's soft-deleted stories.
func (s *StoryService) GetDeletedStories(ctx context.Context, authorID string) ([]*models.Story, error) {
	stories, err := s.db.GetStoriesByAuthor(ctx, authorID)
	if err != nil {
		return nil, storeError("get deleted stories", err)
	}
	return filterStories(stories, func(st *models.Story) bool { return st.Deleted }), nil
}

func filterStories(stories []*models.Story, keep func(*models.Story) bool) []*models.Story {
	out := make([]*models.Story, 0, len(stories))
	for _, st := range stories {
		if keep(st) {
			out = append(out, st)
		}
	}
	return out
}

const (
	SortNewest   = "new"
	SortMostRead = "popular"
)

// ListOptions narrows the public story listing.
type ListOptions struct {
	Genre string
	Sort  string // SortNewest (default) or SortMostRead
	Limit int
}

// GetPublishedStories lists published, non-deleted stories.
func (s *StoryService) GetPublishedStories(ctx context.Context, opts ListOptions) ([]*models.Story, error) {
	stories, err := s.db.GetStoriesByStatus(ctx, models.StatusPublished, 0)
	if err != nil {
		return nil, storeError("get published stories", err)
	}

	stories = filterStories(stories, func(st *models.Story) bool {
		if st.Deleted {
			return false
		}
		return opts.Genre == "" || containsFold(st.Genres, opts.Genre)
	})

	if opts.Sort == SortMostRead {
		sort.SliceStable(stories, func(i, j int) bool { return stories[i].ReadCount > stories[j].ReadCount })
	}
	if opts.Limit > 0 && len(stories) > opts.Limit {
		stories = stories[:opts.Limit]
	}
	return stories, nil
}

// SearchStories matches published stories by title or tag, case-insensitively.
func (s *StoryService) SearchStories(ctx context.Context, query string, limit int) ([]*models.Story, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, utils.NewInvalidInputError("Search query is required")
	}

	stories, err := s.GetPublishedStories(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	matches := filterStories(stories, func(st *models.Story) bool {
		if strings.Contains(strings.ToLower(st.Title), q) {
			return true
		}
		for _, tag := range st.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				return true
			}
		}
		return false
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// SoftDeleteStory marks a story deleted by its author.
func (s *StoryService) SoftDeleteStory(ctx context.Context, id, actorID string) error {
	story, err := s.getOwnedStory(ctx, id, actorID)
	if err != nil {
		return err
	}
	return s.markDeleted(ctx, story, false)
}

// markDeleted soft-deletes without an ownership check; moderation passes
// byAdmin. An existing deletedAt is kept so repeat deletes never push the
// purge date back.
func (s *StoryService) markDeleted(ctx context.Context, story *models.Story, byAdmin bool) error {
	if story.Deleted && (story.RemovedByAdmin || !byAdmin) {
		return nil
	}
	now := s.now()
	deletedAt := models.MillisTimestamp(now)
	if story.Deleted && story.DeletedAt != nil {
		deletedAt = *story.DeletedAt
	}
	if err := s.db.MarkStoryDeleted(ctx, story.ID, deletedAt, byAdmin, now); err != nil {
		return storeError("delete story", err)
	}
	log.Printf("Soft-deleted story %s (admin: %t)", story.ID, byAdmin)
	return nil
}

// RestoreStory clears the soft-delete markers. Only the author may restore,
// and not after moderation removed the story.
func (s *StoryService) RestoreStory(ctx context.Context, id, actorID string) (*models.Story, error) {
	story, err := s.getOwnedStory(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if !story.Deleted {
		return story, nil
	}
	if story.RemovedByAdmin {
		return nil, utils.NewForbiddenError("this story was removed by a moderator")
	}
	return s.restore(ctx, id)
}

func (s *StoryService) restore(ctx context.Context, id string) (*models.Story, error) {
	if err := s.db.RestoreStory(ctx, id, s.now()); err != nil {
		return nil, storeError("restore story", err)
	}
	log.Printf("Restored story %s", id)
	return s.GetStory(ctx, id)
}

// PurgeDeletedStories permanently removes stories soft-deleted before
// now minus the retention window. Deletes run one by one; the first failure
// stops the run and is returned along with what was purged so far.
func (s *StoryService) PurgeDeletedStories(ctx context.Context, now time.Time) ([]string, error) {
	cutoff := now.Add(-s.config.Retention)
	candidates, err := s.db.FindPurgeableStories(ctx, models.MillisTimestamp(cutoff))
	if err != nil {
		return nil, storeError("find purgeable stories", err)
	}

	purged := make([]string, 0, len(candidates))
	for _, story := range candidates {
		// the query already filters; this guards stores with looser predicates
		if !story.DeletedBefore(cutoff) {
			continue
		}
		if err := s.db.DeleteStory(ctx, story.ID); err != nil {
			log.Printf("Purge aborted at story %s: %v", story.ID, err)
			return purged, storeError("purge story "+story.ID, err)
		}
		purged = append(purged, story.ID)
	}

	log.Printf("Purged %d deleted stories older than %s", len(purged), cutoff.Format(time.RFC3339))
	return purged, nil
}
