// Package auth implements email and password accounts on top of the
// credential collections, issuing JWT bearer tokens through the middleware
// token manager.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"athemaria/internal/database"
	"athemaria/internal/middleware"
	"athemaria/internal/models"
	"athemaria/internal/services"
	"athemaria/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const resetCodeDigits = 6

// MaxResetAttempts is how many wrong codes an active reset absorbs before
// it is invalidated.
const MaxResetAttempts = 5

// CodeSender delivers a plaintext password reset code to its owner.
type CodeSender interface {
	SendResetCode(ctx context.Context, email, code string) error
}

// LogCodeSender writes reset codes to the server log. Used when no mail
// transport is configured.
type LogCodeSender struct{}

func (LogCodeSender) SendResetCode(ctx context.Context, email, code string) error {
	log.Printf("Password reset code for %s: %s", email, code)
	return nil
}

// Session is the result of a successful signup or login.
type Session struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type SignupInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"displayName" validate:"max=100"`
}

type ResetConfirmInput struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type Service struct {
	db       database.DBAdapter
	profiles *services.ProfileService
	tokens   *middleware.TokenManager
	sender   CodeSender
	resetTTL time.Duration
	cost     int
	now      func() time.Time
}

func NewService(db database.DBAdapter, profiles *services.ProfileService, tokens *middleware.TokenManager, resetTTL time.Duration) *Service {
	return &Service{
		db:       db,
		profiles: profiles,
		tokens:   tokens,
		sender:   LogCodeSender{},
		resetTTL: resetTTL,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// SetCodeSender replaces the reset code transport.
func (s *Service) SetCodeSender(sender CodeSender) { s.sender = sender }

// SetHashCost changes the bcrypt cost for new hashes.
func (s *Service) SetHashCost(cost int) { s.cost = cost }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) hash(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	return string(bytes), err
}

// Signup creates the credential and an initial profile, then logs the user in.
func (s *Service) Signup(ctx context.Context, email, password, displayName string) (*Session, error) {
	input := SignupInput{Email: normalizeEmail(email), Password: password, DisplayName: strings.TrimSpace(displayName)}
	if err := services.ValidateInput(input); err != nil {
		return nil, err
	}

	hash, err := s.hash(input.Password)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "Failed to hash password", err)
	}
	cred := &models.Credential{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.db.CreateCredential(ctx, cred); err != nil {
		if utils.IsErrorCode(err, utils.ErrUserAlreadyExists) {
			return nil, err
		}
		log.Printf("Signup failed for %s: %v", input.Email, err)
		return nil, utils.NewDatabaseError("Failed to create account", err)
	}

	name := input.DisplayName
	if name == "" {
		name = strings.SplitN(input.Email, "@", 2)[0]
	}
	// the account is usable without a profile; it is created lazily later
	if _, err := s.profiles.SaveProfile(ctx, cred.ID, services.ProfileInput{DisplayName: name, Email: input.Email}); err != nil {
		log.Printf("Warning: failed to create initial profile for user %s: %v", cred.ID, err)
	}

	log.Printf("Created account %s for %s", cred.ID, input.Email)
	return s.session(cred.ID)
}

// Login checks the password against the stored hash. Unknown emails and
// wrong passwords both report INVALID_CREDENTIALS.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	cred, err := s.db.GetCredentialByEmail(ctx, email)
	if err != nil {
		if !utils.IsNotFound(err) {
			log.Printf("Login failed - error fetching credential for %s: %v", email, err)
			return nil, utils.NewDatabaseError("Failed to log in", err)
		}
		return nil, utils.NewAppError(utils.ErrInvalidCredentials, "Invalid credentials", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		log.Printf("Login failed - password mismatch for %s", email)
		return nil, utils.NewAppError(utils.ErrInvalidCredentials, "Invalid credentials", nil)
	}
	return s.session(cred.ID)
}

func (s *Service) session(userID string) (*Session, error) {
	token, err := s.tokens.GenerateToken(userID)
	if err != nil {
		log.Printf("Failed to generate auth token: %v", err)
		return nil, utils.NewAppError(utils.ErrInvalidToken, "Authentication error", err)
	}
	return &Session{UserID: userID, Token: token}, nil
}

// RequestPasswordReset stores a hashed one-time code and hands the plaintext
// to the code sender. Unknown emails succeed without sending anything.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := s.db.GetCredentialByEmail(ctx, email); err != nil {
		if utils.IsNotFound(err) {
			log.Printf("Password reset requested for unknown email %s", email)
			return nil
		}
		return utils.NewDatabaseError("Failed to request password reset", err)
	}

	code, err := newResetCode()
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidResetCode, "Failed to generate reset code", err)
	}
	codeHash, err := s.hash(code)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidResetCode, "Failed to hash reset code", err)
	}

	now := s.now()
	reset := &models.PasswordReset{
		ID:        uuid.NewString(),
		Email:     email,
		CodeHash:  codeHash,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}
	if err := s.db.SavePasswordReset(ctx, reset); err != nil {
		log.Printf("Failed to store password reset for %s: %v", email, err)
		return utils.NewDatabaseError("Failed to request password reset", err)
	}
	return s.sender.SendResetCode(ctx, email, code)
}

// ConfirmPasswordReset replaces the password when code matches an unused,
// unexpired reset. The matching reset is marked used.
func (s *Service) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	input := ResetConfirmInput{Email: normalizeEmail(email), Code: strings.TrimSpace(code), NewPassword: newPassword}
	if err := services.ValidateInput(input); err != nil {
		return err
	}

	resets, err := s.db.GetActivePasswordResets(ctx, input.Email, s.now())
	if err != nil {
		return utils.NewDatabaseError("Failed to load password resets", err)
	}
	var match *models.PasswordReset
	for _, r := range resets {
		if bcrypt.CompareHashAndPassword([]byte(r.CodeHash), []byte(input.Code)) == nil {
			match = r
			break
		}
	}
	if match == nil {
		for _, r := range resets {
			if err := s.db.RecordPasswordResetFailure(ctx, r.ID, MaxResetAttempts); err != nil {
				return utils.NewDatabaseError("Failed to record reset attempt", err)
			}
		}
		return utils.NewAppError(utils.ErrInvalidResetCode, "Invalid or expired reset code", nil)
	}

	cred, err := s.db.GetCredentialByEmail(ctx, input.Email)
	if err != nil {
		if utils.IsNotFound(err) {
			return err
		}
		return utils.NewDatabaseError("Failed to reset password", err)
	}
	hash, err := s.hash(input.NewPassword)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "Failed to hash password", err)
	}
	if err := s.db.UpdatePasswordHash(ctx, cred.ID, hash); err != nil {
		return utils.NewDatabaseError("Failed to reset password", err)
	}
	if err := s.db.MarkPasswordResetUsed(ctx, match.ID); err != nil {
		return utils.NewDatabaseError("Failed to consume reset code", err)
	}
	log.Printf("Password reset completed for user %s", cred.ID)
	return nil
}

func newResetCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", resetCodeDigits, n.Int64()), nil
}
