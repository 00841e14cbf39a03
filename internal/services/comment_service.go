package services

import (
	"context"
	"log"
	"strings"
	"time"

	"athemaria/internal/database"
	"athemaria/internal/models"
	"athemaria/internal/utils"

	"github.com/google/uuid"
)

const maxCommentLength = 5000

type CommentService struct {
	db            database.DBAdapter
	notifications *NotificationService // optional; notifies story authors
	now           Clock
}

func NewCommentService(db database.DBAdapter, notifications *NotificationService) *CommentService {
	return &CommentService{db: db, notifications: notifications, now: time.Now}
}

func cleanCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", utils.NewInvalidInputError("Comment text is required")
	}
	if len(text) > maxCommentLength {
		return "", utils.NewInvalidInputError("Comment is too long")
	}
	return text, nil
}

// AddComment posts a comment, copying the commenter's name and avatar from
// their profile.
func (s *CommentService) AddComment(ctx context.Context, storyID, userID, text string) (*models.Comment, error) {
	text, err := cleanCommentText(text)
	if err != nil {
		return nil, err
	}

	story, err := s.db.GetStory(ctx, storyID)
	if err != nil {
		return nil, storeError("get story", err)
	}
	if story.Deleted {
		return nil, utils.NewStoryNotFoundError(storyID)
	}

	now := s.now()
	comment := &models.Comment{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		UserID:    userID,
		UserName:  AnonymousName,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if profile, err := s.db.GetProfile(ctx, userID); err == nil {
		if profile.DisplayName != "" {
			comment.UserName = profile.DisplayName
		}
		if profile.Avatar != "" {
			avatar := profile.Avatar
			comment.UserAvatar = &avatar
		}
	}

	if err := s.db.SaveComment(ctx, comment); err != nil {
		return nil, storeError("add comment", err)
	}

	if s.notifications != nil && story.AuthorID != userID {
		_, err := s.notifications.Create(ctx, story.AuthorID, models.NotifyNewComment,
			comment.UserName+" commented on \""+story.Title+"\"", storyLink(storyID))
		if err != nil {
			log.Printf("Failed to notify author of comment %s: %v", comment.ID, err)
		}
	}
	return comment, nil
}

// GetStoryComments lists comments of a story, newest first.
func (s *CommentService) GetStoryComments(ctx context.Context, storyID string) ([]*models.Comment, error) {
	comments, err := s.db.GetStoryComments(ctx, storyID)
	if err != nil {
		return nil, storeError("get comments", err)
	}
	return comments, nil
}

// getOwned re-fetches the comment and fails with FORBIDDEN before any write
// when userID is not its author.
func (s *CommentService) getOwned(ctx context.Context, commentID, userID string) (*models.Comment, error) {
	comment, err := s.db.GetComment(ctx, commentID)
	if err != nil {
		return nil, storeError("get comment", err)
	}
	if comment.UserID != userID {
		return nil, utils.NewForbiddenError("only the author can change this comment")
	}
	return comment, nil
}

// UpdateComment replaces the text of the caller's own comment.
func (s *CommentService) UpdateComment(ctx context.Context, commentID, userID, text string) (*models.Comment, error) {
	text, err := cleanCommentText(text)
	if err != nil {
		return nil, err
	}
	comment, err := s.getOwned(ctx, commentID, userID)
	if err != nil {
		return nil, err
	}

	comment.Text = text
	comment.UpdatedAt = s.now()
	if err := s.db.SaveComment(ctx, comment); err != nil {
		return nil, storeError("update comment", err)
	}
	return comment, nil
}

// DeleteComment removes the caller's own comment.
func (s *CommentService) DeleteComment(ctx context.Context, commentID, userID string) error {
	if _, err := s.getOwned(ctx, commentID, userID); err != nil {
		return err
	}
	if err := s.db.DeleteComment(ctx, commentID); err != nil {
		return storeError("delete comment", err)
	}
	return nil
}

func storyLink(storyID string) string {
	return "/stories/" + storyID
}
