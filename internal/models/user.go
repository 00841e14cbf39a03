package models

import (
	"slices"
	"time"
)

// UserProfile is keyed by the auth user id and created lazily on first save.
type UserProfile struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"displayName"`
	Email       string            `json:"email"`
	Bio         string            `json:"bio"`
	Avatar      string            `json:"avatar"`
	SocialLinks map[string]string `json:"socialLinks"`
	Website     string            `json:"website"`
	Favorites   []string          `json:"favorites"`
	ReadLater   []string          `json:"readLater"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// HasFavorite reports whether storyID is in the favorites list.
func (p *UserProfile) HasFavorite(storyID string) bool {
	return slices.Contains(p.Favorites, storyID)
}

// HasReadLater reports whether storyID is in the read-later list.
func (p *UserProfile) HasReadLater(storyID string) bool {
	return slices.Contains(p.ReadLater, storyID)
}

// ProfileList names one of the embedded story id lists.
type ProfileList string

const (
	ListFavorites ProfileList = "favorites"
	ListReadLater ProfileList = "readLater"
)

// Credential is the identity record behind a profile.
type Credential struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PasswordReset holds a hashed one-time reset code.
type PasswordReset struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CodeHash  string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
}
