// internal/database/user_repository.go
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"athemaria/internal/models"
	"athemaria/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserDocument represents the MongoDB schema for a user profile
type UserDocument struct {
	ID          string            `bson:"_id"`         // Auth user id
	DisplayName string            `bson:"displayName"` // Public name
	Email       string            `bson:"email"`       // Contact email
	Bio         string            `bson:"bio"`
	Avatar      string            `bson:"avatar"`      // Public avatar URL
	SocialLinks map[string]string `bson:"socialLinks"` // Platform -> handle
	Website     string            `bson:"website"`
	Favorites   []string          `bson:"favorites"` // Favorite story IDs
	ReadLater   []string          `bson:"readLater"` // Read-later story IDs
	CreatedAt   time.Time         `bson:"createdAt"`
	UpdatedAt   time.Time         `bson:"updatedAt"`
}

// CredentialDocument represents the MongoDB schema for login credentials
type CredentialDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// PasswordResetDocument represents a hashed one-time reset code
type PasswordResetDocument struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	CodeHash  string    `bson:"codeHash"`
	ExpiresAt time.Time `bson:"expiresAt"`
	Used      bool      `bson:"used"`
	Attempts  int       `bson:"attempts"`
	CreatedAt time.Time `bson:"createdAt"`
}

func emptyIfNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func documentToProfile(doc *UserDocument) *models.UserProfile {
	links := doc.SocialLinks
	if links == nil {
		links = map[string]string{}
	}
	return &models.UserProfile{
		ID:          doc.ID,
		DisplayName: doc.DisplayName,
		Email:       doc.Email,
		Bio:         doc.Bio,
		Avatar:      doc.Avatar,
		SocialLinks: links,
		Website:     doc.Website,
		Favorites:   emptyIfNil(doc.Favorites),
		ReadLater:   emptyIfNil(doc.ReadLater),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

// GetProfile retrieves a user profile by user ID
func (m *MongoDB) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var doc UserDocument

	err := m.Users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return documentToProfile(&doc), nil
}

// SaveProfile creates or updates a user profile. The story id lists are
// owned by UpdateProfileList and only written on insert.
func (m *MongoDB) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	set := bson.M{
		"displayName": profile.DisplayName,
		"email":       profile.Email,
		"bio":         profile.Bio,
		"avatar":      profile.Avatar,
		"socialLinks": profile.SocialLinks,
		"website":     profile.Website,
		"updatedAt":   profile.UpdatedAt,
	}
	setOnInsert := bson.M{
		"favorites": emptyIfNil(profile.Favorites),
		"readLater": emptyIfNil(profile.ReadLater),
		"createdAt": profile.CreatedAt,
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": profile.ID}
	update := bson.M{"$set": set, "$setOnInsert": setOnInsert}

	if _, err := m.Users.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// UpdateProfileList adds or removes a story from a user's favorites or read-later list
func (m *MongoDB) UpdateProfileList(ctx context.Context, userID string, list models.ProfileList, storyID string, add bool) error {
	filter := bson.M{"_id": userID}
	var update bson.M

	if add {
		update = bson.M{"$addToSet": bson.M{string(list): storyID}}
	} else {
		update = bson.M{"$pull": bson.M{string(list): storyID}}
	}

	// Upsert so a toggle on a user without a saved profile creates it.
	opts := options.Update().SetUpsert(true)
	if _, err := m.Users.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to update %s: %w", list, err)
	}
	return nil
}

// CreateCredential inserts a new credential; the email index is unique.
func (m *MongoDB) CreateCredential(ctx context.Context, cred *models.Credential) error {
	doc := CredentialDocument{
		ID:           cred.ID,
		Email:        strings.ToLower(cred.Email),
		PasswordHash: cred.PasswordHash,
		CreatedAt:    cred.CreatedAt,
	}
	if _, err := m.Credentials.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return utils.NewAppError(utils.ErrUserAlreadyExists, "Email already registered", nil)
		}
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// GetCredentialByEmail retrieves a credential by its email address
func (m *MongoDB) GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	var doc CredentialDocument

	err := m.Credentials.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &models.Credential{
		ID:           doc.ID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// UpdatePasswordHash replaces the stored password hash
func (m *MongoDB) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	result, err := m.Credentials.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"passwordHash": hash}})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrUserNotFound, "User not found", nil)
	}
	return nil
}

// SavePasswordReset stores a new reset code
func (m *MongoDB) SavePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	doc := PasswordResetDocument{
		ID:        reset.ID,
		Email:     strings.ToLower(reset.Email),
		CodeHash:  reset.CodeHash,
		ExpiresAt: reset.ExpiresAt,
		Used:      reset.Used,
		Attempts:  reset.Attempts,
		CreatedAt: reset.CreatedAt,
	}
	if _, err := m.PasswordResets.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save password reset: %w", err)
	}
	return nil
}

// GetActivePasswordResets returns unused, unexpired codes for an email, newest first
func (m *MongoDB) GetActivePasswordResets(ctx context.Context, email string, now time.Time) ([]*models.PasswordReset, error) {
	filter := bson.M{
		"email":     strings.ToLower(email),
		"used":      false,
		"expiresAt": bson.M{"$gt": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := m.PasswordResets.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get password resets: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []PasswordResetDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode password resets: %w", err)
	}

	resets := make([]*models.PasswordReset, len(docs))
	for i, doc := range docs {
		resets[i] = &models.PasswordReset{
			ID:        doc.ID,
			Email:     doc.Email,
			CodeHash:  doc.CodeHash,
			ExpiresAt: doc.ExpiresAt,
			Used:      doc.Used,
			Attempts:  doc.Attempts,
			CreatedAt: doc.CreatedAt,
		}
	}
	return resets, nil
}

// MarkPasswordResetUsed consumes a reset code
func (m *MongoDB) MarkPasswordResetUsed(ctx context.Context, id string) error {
	result, err := m.PasswordResets.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"used": true}})
	if err != nil {
		return fmt.Errorf("failed to mark password reset used: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("Password reset", id)
	}
	return nil
}

// RecordPasswordResetFailure increments the attempt counter and consumes the
// code in the same update once the counter reaches maxAttempts
func (m *MongoDB) RecordPasswordResetFailure(ctx context.Context, id string, maxAttempts int) error {
	attempts := bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$attempts", 0}}, 1}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"attempts": attempts}}},
		{{Key: "$set", Value: bson.M{"used": bson.M{"$or": bson.A{"$used", bson.M{"$gte": bson.A{"$attempts", maxAttempts}}}}}}},
	}
	result, err := m.PasswordResets.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to record password reset failure: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("Password reset", id)
	}
	return nil
}
