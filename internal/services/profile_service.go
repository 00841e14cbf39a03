package services

import (
	"context"
	"io"
	"log"
	"time"

	"athemaria/internal/database"
	"athemaria/internal/models"
	"athemaria/internal/storage"
	"athemaria/internal/utils"
)

type ProfileService struct {
	db            database.DBAdapter
	blobs         storage.BlobStore
	publicBaseURL string
	now           Clock
}

func NewProfileService(db database.DBAdapter, blobs storage.BlobStore, publicBaseURL string) *ProfileService {
	return &ProfileService{db: db, blobs: blobs, publicBaseURL: publicBaseURL, now: time.Now}
}

// ProfileInput holds the editable profile fields.
type ProfileInput struct {
	DisplayName string            `json:"displayName" validate:"required,max=100"`
	Email       string            `json:"email" validate:"omitempty,email"`
	Bio         string            `json:"bio" validate:"max=2000"`
	Avatar      string            `json:"avatar"`
	SocialLinks map[string]string `json:"socialLinks" validate:"omitempty,max=10,dive,keys,required,endkeys,max=200"`
	Website     string            `json:"website" validate:"omitempty,url"`
}

// GetProfile returns the profile of userID. A user who never saved one
// gets USER_NOT_FOUND.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := s.db.GetProfile(ctx, userID)
	if err != nil {
		return nil, storeError("get profile", err)
	}
	return profile, nil
}

// SaveProfile creates the profile on first save; favorites and read-later
// lists are never touched here.
func (s *ProfileService) SaveProfile(ctx context.Context, userID string, input ProfileInput) (*models.UserProfile, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	profile := &models.UserProfile{
		ID:          userID,
		DisplayName: input.DisplayName,
		Email:       input.Email,
		Bio:         input.Bio,
		Avatar:      input.Avatar,
		SocialLinks: input.SocialLinks,
		Website:     input.Website,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if profile.SocialLinks == nil {
		profile.SocialLinks = map[string]string{}
	}
	if err := s.db.SaveProfile(ctx, profile); err != nil {
		return nil, storeError("save profile", err)
	}
	return s.GetProfile(ctx, userID)
}

// UploadAvatar stores the image at avatars/{userID}.{ext} and saves its URL
// on the profile.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID, filename, contentType string, r io.Reader) (string, error) {
	path := storage.AvatarPath(userID, filename)
	if _, err := s.blobs.Put(ctx, path, contentType, r); err != nil {
		log.Printf("Error uploading avatar for user %s: %v", userID, err)
		return "", utils.NewAppError(utils.ErrStorage, "Failed to upload avatar", err)
	}
	url := storage.PublicURL(s.publicBaseURL, path)

	profile, err := s.db.GetProfile(ctx, userID)
	if err != nil && !utils.IsNotFound(err) {
		return "", storeError("get profile", err)
	}
	if profile == nil {
		now := s.now()
		profile = &models.UserProfile{ID: userID, SocialLinks: map[string]string{}, CreatedAt: now}
	}
	profile.Avatar = url
	profile.UpdatedAt = s.now()
	if err := s.db.SaveProfile(ctx, profile); err != nil {
		return "", storeError("save avatar", err)
	}
	return url, nil
}

// ToggleFavorite flips the membership of storyID in the favorites list and
// returns the new membership.
func (s *ProfileService) ToggleFavorite(ctx context.Context, userID, storyID string) (bool, error) {
	return s.toggle(ctx, userID, storyID, models.ListFavorites)
}

// ToggleReadLater flips the membership of storyID in the read-later list.
func (s *ProfileService) ToggleReadLater(ctx context.Context, userID, storyID string) (bool, error) {
	return s.toggle(ctx, userID, storyID, models.ListReadLater)
}

func (s *ProfileService) toggle(ctx context.Context, userID, storyID string, list models.ProfileList) (bool, error) {
	if storyID == "" {
		return false, utils.NewInvalidInputError("storyId is required")
	}

	member := false
	profile, err := s.db.GetProfile(ctx, userID)
	switch {
	case err == nil:
		if list == models.ListFavorites {
			member = profile.HasFavorite(storyID)
		} else {
			member = profile.HasReadLater(storyID)
		}
	case utils.IsNotFound(err):
		// missing profile means empty lists
	default:
		return false, storeError("get profile", err)
	}

	if err := s.db.UpdateProfileList(ctx, userID, list, storyID, !member); err != nil {
		return false, storeError("update "+string(list), err)
	}
	return !member, nil
}

// GetFavoriteStories resolves the favorites list, skipping missing and deleted stories.
func (s *ProfileService) GetFavoriteStories(ctx context.Context, userID string) ([]*models.Story, error) {
	return s.listStories(ctx, userID, models.ListFavorites)
}

// GetReadLaterStories resolves the read-later list, skipping missing and deleted stories.
func (s *ProfileService) GetReadLaterStories(ctx context.Context, userID string) ([]*models.Story, error) {
	return s.listStories(ctx, userID, models.ListReadLater)
}

func (s *ProfileService) listStories(ctx context.Context, userID string, list models.ProfileList) ([]*models.Story, error) {
	profile, err := s.db.GetProfile(ctx, userID)
	if utils.IsNotFound(err) {
		return []*models.Story{}, nil
	}
	if err != nil {
		return nil, storeError("get profile", err)
	}

	ids := profile.Favorites
	if list == models.ListReadLater {
		ids = profile.ReadLater
	}
	stories, err := s.db.GetStoriesByIDs(ctx, ids)
	if err != nil {
		return nil, storeError("get "+string(list)+" stories", err)
	}
	return filterStories(stories, func(st *models.Story) bool { return !st.Deleted }), nil
}
