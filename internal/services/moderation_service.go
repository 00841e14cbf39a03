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

type ModerationService struct {
	db            database.DBAdapter
	stories       *StoryService
	notifications *NotificationService
	now           Clock
}

func NewModerationService(db database.DBAdapter, stories *StoryService, notifications *NotificationService) *ModerationService {
	return &ModerationService{db: db, stories: stories, notifications: notifications, now: time.Now}
}

// CreateReport files a report against a story.
func (s *ModerationService) CreateReport(ctx context.Context, storyID, userID, reason string) (*models.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, utils.NewInvalidInputError("Report reason is required")
	}
	if _, err := s.db.GetStory(ctx, storyID); err != nil {
		return nil, storeError("get story", err)
	}

	report := &models.Report{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		UserID:    userID,
		Reason:    reason,
		CreatedAt: s.now(),
	}
	if err := s.db.SaveReport(ctx, report); err != nil {
		return nil, storeError("create report", err)
	}
	log.Printf("Story %s reported by user %s", storyID, userID)
	return report, nil
}

// GetReports lists reports, newest first.
func (s *ModerationService) GetReports(ctx context.Context, includeResolved bool) ([]*models.Report, error) {
	reports, err := s.db.GetReports(ctx, includeResolved)
	if err != nil {
		return nil, storeError("get reports", err)
	}
	return reports, nil
}

// AdminActionInput names the target by report or directly by story.
type AdminActionInput struct {
	ReportID   string                 `json:"reportId"`
	StoryID    string                 `json:"storyId" validate:"required_without=ReportID"`
	ActionType models.AdminActionType `json:"actionType" validate:"required,oneof=delete request_correction approve block"`
	Message    string                 `json:"message" validate:"max=2000"`
}

// TakeAdminAction records the action and then applies its effects. Each
// effect is a separate write; there is no rollback, so a failure leaves the
// earlier writes in place and returns the first error.
func (s *ModerationService) TakeAdminAction(ctx context.Context, adminID string, input AdminActionInput) (*models.AdminAction, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}

	storyID := input.StoryID
	if input.ReportID != "" {
		report, err := s.db.GetReport(ctx, input.ReportID)
		if err != nil {
			return nil, storeError("get report", err)
		}
		if storyID != "" && storyID != report.StoryID {
			return nil, utils.NewInvalidInputError("Report does not belong to the given story")
		}
		storyID = report.StoryID
	}

	story, err := s.db.GetStory(ctx, storyID)
	if err != nil {
		return nil, storeError("get story", err)
	}

	action := &models.AdminAction{
		ID:         uuid.NewString(),
		StoryID:    storyID,
		ReportID:   input.ReportID,
		AdminID:    adminID,
		ActionType: input.ActionType,
		Message:    input.Message,
		CreatedAt:  s.now(),
	}
	if err := s.db.SaveAdminAction(ctx, action); err != nil {
		return nil, storeError("record admin action", err)
	}

	if err := s.applyAction(ctx, story, action); err != nil {
		return action, err
	}

	if input.ReportID != "" {
		if err := s.db.ResolveReport(ctx, input.ReportID); err != nil {
			return action, storeError("resolve report", err)
		}
	}
	log.Printf("Admin %s applied %s to story %s", adminID, action.ActionType, storyID)
	return action, nil
}

func (s *ModerationService) applyAction(ctx context.Context, story *models.Story, action *models.AdminAction) error {
	var (
		typ     models.NotificationType
		message string
	)

	switch action.ActionType {
	case models.ActionRequestCorrection:
		if err := s.db.UpdateStoryStatus(ctx, story.ID, models.StatusPendingCorrection, s.now()); err != nil {
			return storeError("request correction", err)
		}
		typ = models.NotifyCorrectionRequested
		message = withReason("A correction was requested for \""+story.Title+"\"", action.Message)

	case models.ActionDelete:
		if err := s.stories.markDeleted(ctx, story, true); err != nil {
			return err
		}
		typ = models.NotifyStoryDeleted
		message = withReason("Your story \""+story.Title+"\" was removed", action.Message)

	case models.ActionApprove:
		// approving lifts an earlier moderation removal
		if story.Deleted {
			if _, err := s.stories.restore(ctx, story.ID); err != nil {
				return err
			}
		}
		if err := s.db.UpdateStoryStatus(ctx, story.ID, models.StatusPublished, s.now()); err != nil {
			return storeError("approve story", err)
		}
		typ = models.NotifyStoryApproved
		message = withReason("Your story \""+story.Title+"\" was approved", action.Message)

	case models.ActionBlock:
		if err := s.stories.markDeleted(ctx, story, true); err != nil {
			return err
		}
		typ = models.NotifyStoryBlocked
		message = withReason("Your story \""+story.Title+"\" was blocked", action.Message)

	default:
		return utils.NewInvalidInputError("Unknown action type: " + string(action.ActionType))
	}

	if _, err := s.notifications.Create(ctx, story.AuthorID, typ, message, storyLink(story.ID)); err != nil {
		return err
	}
	return nil
}

func withReason(message, reason string) string {
	if reason = strings.TrimSpace(reason); reason != "" {
		return message + ": " + reason
	}
	return message
}

// GetAdminActions returns the moderation history of a story.
func (s *ModerationService) GetAdminActions(ctx context.Context, storyID string) ([]*models.AdminAction, error) {
	actions, err := s.db.GetAdminActions(ctx, storyID)
	if err != nil {
		return nil, storeError("get admin actions", err)
	}
	return actions, nil
}
