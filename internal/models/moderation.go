package models

import "time"

type Report struct {
	ID        string    `json:"id"`
	StoryID   string    `json:"storyId"`
	UserID    string    `json:"userId"` // reporter
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
	Resolved  bool      `json:"resolved"`
}

type AdminActionType string

const (
	ActionDelete            AdminActionType = "delete"
	ActionRequestCorrection AdminActionType = "request_correction"
	ActionApprove           AdminActionType = "approve"
	ActionBlock             AdminActionType = "block"
)

func (t AdminActionType) Valid() bool {
	switch t {
	case ActionDelete, ActionRequestCorrection, ActionApprove, ActionBlock:
		return true
	}
	return false
}

// AdminAction is the moderation audit trail entry.
type AdminAction struct {
	ID         string          `json:"id"`
	StoryID    string          `json:"storyId"`
	ReportID   string          `json:"reportId,omitempty"`
	AdminID    string          `json:"adminId,omitempty"`
	ActionType AdminActionType `json:"actionType"`
	Message    string          `json:"message"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type NotificationType string

const (
	NotifyCorrectionRequested NotificationType = "correction_requested"
	NotifyStoryDeleted        NotificationType = "story_deleted"
	NotifyStoryApproved       NotificationType = "story_approved"
	NotifyStoryBlocked        NotificationType = "story_blocked"
	NotifyNewComment          NotificationType = "new_comment"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"` // recipient
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Link      string           `json:"link"`
	CreatedAt time.Time        `json:"createdAt"`
	Read      bool             `json:"read"`
}
