package database

import (
	"context"
	"time"

	"athemaria/internal/models"
)

// DBAdapter defines the persistence operations used by the services.
// MongoDB is the production backend; MemoryDB backs tests and local runs.
type DBAdapter interface {
	// Connection
	Close(ctx context.Context) error

	// Story methods
	SaveStory(ctx context.Context, story *models.Story) error
	GetStory(ctx context.Context, id string) (*models.Story, error)
	DeleteStory(ctx context.Context, id string) error
	GetStoriesByAuthor(ctx context.Context, authorID string) ([]*models.Story, error)
	GetStoriesByStatus(ctx context.Context, status models.StoryStatus, limit int) ([]*models.Story, error)
	GetStoriesByIDs(ctx context.Context, ids []string) ([]*models.Story, error)
	UpdateStoryStatus(ctx context.Context, id string, status models.StoryStatus, updatedAt time.Time) error
	MarkStoryDeleted(ctx context.Context, id string, deletedAt string, byAdmin bool, updatedAt time.Time) error
	RestoreStory(ctx context.Context, id string, updatedAt time.Time) error
	IncrementReadCount(ctx context.Context, id string) error
	// FindPurgeableStories returns deleted stories whose deletedAt sorts before cutoff.
	FindPurgeableStories(ctx context.Context, cutoff string) ([]*models.Story, error)

	// Profile methods
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, profile *models.UserProfile) error
	UpdateProfileList(ctx context.Context, userID string, list models.ProfileList, storyID string, add bool) error

	// Credential methods
	CreateCredential(ctx context.Context, cred *models.Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error)
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	SavePasswordReset(ctx context.Context, reset *models.PasswordReset) error
	GetActivePasswordResets(ctx context.Context, email string, now time.Time) ([]*models.PasswordReset, error)
	MarkPasswordResetUsed(ctx context.Context, id string) error
	// RecordPasswordResetFailure counts a wrong code; the reset is used up
	// once attempts reach maxAttempts.
	RecordPasswordResetFailure(ctx context.Context, id string, maxAttempts int) error

	// Comment methods
	SaveComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	GetStoryComments(ctx context.Context, storyID string) ([]*models.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	// Rating methods
	UpsertRating(ctx context.Context, rating *models.Rating) error
	GetStoryRatings(ctx context.Context, storyID string) ([]*models.Rating, error)
	GetUserRating(ctx context.Context, storyID, userID string) (*models.Rating, error)

	// Reading progress methods
	UpsertProgress(ctx context.Context, progress *models.ReadingProgress) error
	GetUserProgress(ctx context.Context, userID string) ([]*models.ReadingProgress, error)

	// Moderation methods
	SaveReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	GetReports(ctx context.Context, includeResolved bool) ([]*models.Report, error)
	ResolveReport(ctx context.Context, id string) error
	SaveAdminAction(ctx context.Context, action *models.AdminAction) error
	GetAdminActions(ctx context.Context, storyID string) ([]*models.AdminAction, error)

	// Notification methods
	SaveNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	GetUserNotifications(ctx context.Context, userID string) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

var (
	_ DBAdapter = (*MongoDB)(nil)
	_ DBAdapter = (*MemoryDB)(nil)
)
