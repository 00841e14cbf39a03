package models

import (
	"time"
)

type Comment struct {
	ID         string    `json:"id"`
	StoryID    string    `json:"storyId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserAvatar *string   `json:"userAvatar"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Rating is unique per (StoryID, UserID).
type Rating struct {
	ID        string    `json:"id"`
	StoryID   string    `json:"storyId"`
	UserID    string    `json:"userId"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	MinRating = 1
	MaxRating = 5
)

// AverageRating is computed on read from every rating of a story.
type AverageRating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// ReadingProgress is keyed by ProgressID(userID, storyID).
type ReadingProgress struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	StoryID      string    `json:"storyId"`
	ChapterID    string    `json:"chapterId,omitempty"`
	LastReadDate time.Time `json:"lastReadDate"`
}

// ProgressID builds the composite reading progress key.
func ProgressID(userID, storyID string) string {
	return userID + "_" + storyID
}
