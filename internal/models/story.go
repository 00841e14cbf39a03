package models

import (
	"strconv"
	"time"
)

// StoryStatus is the publication state of a story.
type StoryStatus string

const (
	StatusDraft             StoryStatus = "draft"
	StatusPublished         StoryStatus = "published"
	StatusPendingCorrection StoryStatus = "pending_correction"
)

// Valid reports whether s is one of the known statuses.
func (s StoryStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusPendingCorrection:
		return true
	}
	return false
}

const (
	DefaultChapterID    = "default"
	DefaultChapterTitle = "Chapter 1"
	MaxGenres           = 3
)

type Chapter struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

type Story struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Chapters    []Chapter   `json:"chapters"`
	Genres      []string    `json:"genres"`
	Tags        []string    `json:"tags"`
	AuthorID    string      `json:"authorId"`
	AuthorName  string      `json:"authorName"`
	Status      StoryStatus `json:"status"`
	CoverImage  string      `json:"coverImage"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	ReadCount   int         `json:"readCount"`
	Deleted     bool        `json:"deleted"`
	DeletedAt   *string     `json:"deletedAt"` // millisecond epoch, as a string
	// RemovedByAdmin marks a soft delete made by moderation; only an admin can undo it.
	RemovedByAdmin bool `json:"removedByAdmin"`
}

// DefaultChapter is the single chapter a legacy story is upgraded to.
func DefaultChapter(content string) Chapter {
	return Chapter{
		ID:      DefaultChapterID,
		Title:   DefaultChapterTitle,
		Content: content,
		Order:   1,
	}
}

// MillisTimestamp formats t the way DeletedAt is stored.
func MillisTimestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// DeletedBefore reports whether the story was soft-deleted before the given
// cutoff. Timestamps are compared as strings, mirroring the store query.
func (s *Story) DeletedBefore(cutoff time.Time) bool {
	if !s.Deleted || s.DeletedAt == nil {
		return false
	}
	return *s.DeletedAt < MillisTimestamp(cutoff)
}

// VisibleTo reports whether viewerID may read the story. Published stories
// that are not deleted are public; everything else is visible to its author only.
func (s *Story) VisibleTo(viewerID string) bool {
	if viewerID != "" && viewerID == s.AuthorID {
		return true
	}
	return s.Status == StatusPublished && !s.Deleted
}

// Clone returns a deep copy so callers can't mutate shared state.
func (s *Story) Clone() *Story {
	c := *s
	c.Chapters = append([]Chapter(nil), s.Chapters...)
	c.Genres = append([]string{}, s.Genres...)
	c.Tags = append([]string{}, s.Tags...)
	if s.DeletedAt != nil {
		d := *s.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}

// NextChapterOrder returns the order value for a newly appended chapter.
func (s *Story) NextChapterOrder() int {
	highest := 0
	for _, ch := range s.Chapters {
		if ch.Order > highest {
			highest = ch.Order
		}
	}
	return highest + 1
}
