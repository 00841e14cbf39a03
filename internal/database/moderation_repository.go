package database

import (
	"context"
	"fmt"
	"time"

	"athemaria/internal/models"
	"athemaria/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReportDocument struct {
	ID        string    `bson:"_id"`
	StoryID   string    `bson:"storyId"`
	UserID    string    `bson:"userId"`
	Reason    string    `bson:"reason"`
	CreatedAt time.Time `bson:"createdAt"`
	Resolved  bool      `bson:"resolved"`
}

type AdminActionDocument struct {
	ID         string    `bson:"_id"`
	StoryID    string    `bson:"storyId"`
	ReportID   string    `bson:"reportId,omitempty"`
	AdminID    string    `bson:"adminId,omitempty"`
	ActionType string    `bson:"actionType"`
	Message    string    `bson:"message"`
	CreatedAt  time.Time `bson:"createdAt"`
}

type NotificationDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Type      string    `bson:"type"`
	Message   string    `bson:"message"`
	Link      string    `bson:"link"`
	CreatedAt time.Time `bson:"createdAt"`
	Read      bool      `bson:"read"`
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

// SaveReport stores a new story report
func (m *MongoDB) SaveReport(ctx context.Context, report *models.Report) error {
	doc := ReportDocument{
		ID:        report.ID,
		StoryID:   report.StoryID,
		UserID:    report.UserID,
		Reason:    report.Reason,
		CreatedAt: report.CreatedAt,
		Resolved:  report.Resolved,
	}
	opts := options.Update().SetUpsert(true)
	if _, err := m.Reports.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by ID
func (m *MongoDB) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var doc ReportDocument
	err := m.Reports.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Report not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return documentToReport(&doc), nil
}

// GetReports lists reports, newest first; resolved ones only when asked for
func (m *MongoDB) GetReports(ctx context.Context, includeResolved bool) ([]*models.Report, error) {
	filter := bson.M{}
	if !includeResolved {
		filter["resolved"] = false
	}

	cursor, err := m.Reports.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []ReportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}

	reports := make([]*models.Report, len(docs))
	for i := range docs {
		reports[i] = documentToReport(&docs[i])
	}
	return reports, nil
}

// ResolveReport marks a report resolved
func (m *MongoDB) ResolveReport(ctx context.Context, id string) error {
	result, err := m.Reports.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"resolved": true}})
	if err != nil {
		return fmt.Errorf("failed to resolve report: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Report not found", nil)
	}
	return nil
}

func documentToReport(doc *ReportDocument) *models.Report {
	return &models.Report{
		ID:        doc.ID,
		StoryID:   doc.StoryID,
		UserID:    doc.UserID,
		Reason:    doc.Reason,
		CreatedAt: doc.CreatedAt,
		Resolved:  doc.Resolved,
	}
}

// SaveAdminAction appends to the moderation audit trail
func (m *MongoDB) SaveAdminAction(ctx context.Context, action *models.AdminAction) error {
	doc := AdminActionDocument{
		ID:         action.ID,
		StoryID:    action.StoryID,
		ReportID:   action.ReportID,
		AdminID:    action.AdminID,
		ActionType: string(action.ActionType),
		Message:    action.Message,
		CreatedAt:  action.CreatedAt,
	}
	if _, err := m.AdminActions.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save admin action: %w", err)
	}
	return nil
}

// GetAdminActions returns the audit trail for a story, newest first
func (m *MongoDB) GetAdminActions(ctx context.Context, storyID string) ([]*models.AdminAction, error) {
	cursor, err := m.AdminActions.Find(ctx, bson.M{"storyId": storyID}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to get admin actions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []AdminActionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode admin actions: %w", err)
	}

	actions := make([]*models.AdminAction, len(docs))
	for i, doc := range docs {
		actions[i] = &models.AdminAction{
			ID:         doc.ID,
			StoryID:    doc.StoryID,
			ReportID:   doc.ReportID,
			AdminID:    doc.AdminID,
			ActionType: models.AdminActionType(doc.ActionType),
			Message:    doc.Message,
			CreatedAt:  doc.CreatedAt,
		}
	}
	return actions, nil
}

// SaveNotification stores a notification for its recipient
func (m *MongoDB) SaveNotification(ctx context.Context, n *models.Notification) error {
	doc := NotificationDocument{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Message:   n.Message,
		Link:      n.Link,
		CreatedAt: n.CreatedAt,
		Read:      n.Read,
	}
	opts := options.Update().SetUpsert(true)
	if _, err := m.Notifications.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// GetNotification retrieves a notification by ID
func (m *MongoDB) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var doc NotificationDocument
	err := m.Notifications.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Notification not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return documentToNotification(&doc), nil
}

// GetUserNotifications lists a user's notifications, newest first
func (m *MongoDB) GetUserNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	cursor, err := m.Notifications.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []NotificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}

	notifications := make([]*models.Notification, len(docs))
	for i := range docs {
		notifications[i] = documentToNotification(&docs[i])
	}
	return notifications, nil
}

// MarkNotificationRead flags one notification as read
func (m *MongoDB) MarkNotificationRead(ctx context.Context, id string) error {
	result, err := m.Notifications.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Notification not found", nil)
	}
	return nil
}

// MarkAllNotificationsRead flags every unread notification of a user as read
func (m *MongoDB) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	filter := bson.M{"userId": userID, "read": false}
	if _, err := m.Notifications.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}}); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func documentToNotification(doc *NotificationDocument) *models.Notification {
	return &models.Notification{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Type:      models.NotificationType(doc.Type),
		Message:   doc.Message,
		Link:      doc.Link,
		CreatedAt: doc.CreatedAt,
		Read:      doc.Read,
	}
}
