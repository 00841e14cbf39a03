package services

import (
	"context"
	"log"
	"time"

	"athemaria/internal/database"
	"athemaria/internal/models"
	"athemaria/internal/utils"

	"github.com/google/uuid"
)

// Notifier delivers a stored notification in real time. Delivery is best effort.
type Notifier interface {
	Notify(n *models.Notification)
}

type NotificationService struct {
	db       database.DBAdapter
	notifier Notifier
	now      Clock
}

func NewNotificationService(db database.DBAdapter) *NotificationService {
	return &NotificationService{db: db, now: time.Now}
}

// SetNotifier attaches the realtime delivery path. nil disables it.
func (s *NotificationService) SetNotifier(n Notifier) { s.notifier = n }

// Create stores a notification for userID and hands it to the notifier.
func (s *NotificationService) Create(ctx context.Context, userID string, typ models.NotificationType, message, link string) (*models.Notification, error) {
	if userID == "" {
		return nil, utils.NewInvalidInputError("Notification recipient is required")
	}

	n := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Message:   message,
		Link:      link,
		CreatedAt: s.now(),
	}
	if err := s.db.SaveNotification(ctx, n); err != nil {
		return nil, storeError("create notification", err)
	}

	if s.notifier != nil {
		s.notifier.Notify(n)
	}
	return n, nil
}

// GetUserNotifications lists a user's notifications, newest first.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	list, err := s.db.GetUserNotifications(ctx, userID)
	if err != nil {
		return nil, storeError("get notifications", err)
	}
	return list, nil
}

// MarkRead marks one of the caller's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	n, err := s.db.GetNotification(ctx, id)
	if err != nil {
		return storeError("get notification", err)
	}
	if n.UserID != userID {
		return utils.NewForbiddenError("notification belongs to another user")
	}
	if err := s.db.MarkNotificationRead(ctx, id); err != nil {
		return storeError("mark notification read", err)
	}
	return nil
}

// MarkAllRead marks every notification of the user read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.db.MarkAllNotificationsRead(ctx, userID); err != nil {
		return storeError("mark all notifications read", err)
	}
	return nil
}

// UnreadCount counts unread notifications; errors count as zero.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) int {
	list, err := s.db.GetUserNotifications(ctx, userID)
	if err != nil {
		log.Printf("Error counting notifications for user %s: %v", userID, err)
		return 0
	}
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count
}
