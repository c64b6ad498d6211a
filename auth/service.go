// Package auth registers and authenticates users and issues the bearer tokens
// the HTTP middleware verifies.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"storyreel/apperror"
	"storyreel/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateHandle = errors.New("handle already taken")
)

const (
	minHandleLen = 3
	maxHandleLen = 32
	// bcrypt ignores input beyond 72 bytes; reject instead of silently truncating.
	maxSecretLen = 72
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByHandle(ctx context.Context, handle string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// Identity is a user together with a freshly issued token.
type Identity struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type Service struct {
	users  UserRepository
	tokens *TokenManager
	cost   int
	now    func() time.Time
}

func NewService(users UserRepository, tokens *TokenManager) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

func (s *Service) Register(ctx context.Context, handle, secret string) (*Identity, error) {
	handle = strings.TrimSpace(handle)
	if err := validateCredentials(handle, secret); err != nil {
		return nil, err
	}

	_, err := s.users.FindByHandle(ctx, handle)
	if err == nil {
		return nil, apperror.Validation("user already exists")
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, apperror.Internal("Database error", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return nil, apperror.Internal("Failed to hash password", err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           primitive.NewObjectID(),
		Handle:       handle,
		PasswordHash: string(hashed),
		LastLogin:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Unique index on handle catches concurrent registrations.
		if errors.Is(err, ErrDuplicateHandle) {
			return nil, apperror.Validation("user already exists")
		}
		return nil, apperror.Internal("Failed to create user", err)
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, apperror.Internal("Failed to generate token", err)
	}

	slog.InfoContext(ctx, "[Register] user created", slog.String("user_id", user.ID.Hex()))
	return &Identity{User: user, Token: token}, nil
}

func (s *Service) Authenticate(ctx context.Context, handle, secret string) (*Identity, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || secret == "" {
		return nil, apperror.Validation("All fields are required")
	}

	user, err := s.users.FindByHandle(ctx, handle)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperror.Validation("Invalid Credentials")
	}
	if err != nil {
		return nil, apperror.Internal("Database error", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(secret)); err != nil {
		return nil, apperror.Validation("Invalid Credentials")
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, apperror.Internal("Database error", err)
	}
	user.LastLogin = now

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, apperror.Internal("Failed to generate token", err)
	}
	return &Identity{User: user, Token: token}, nil
}

// Verify resolves a bearer token to the user id it was issued for.
func (s *Service) Verify(token string) (primitive.ObjectID, error) {
	raw, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return primitive.NilObjectID, apperror.Unauthorized("Unauthorized - token expired")
		}
		return primitive.NilObjectID, apperror.Unauthorized("Unauthorized - invalid token")
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperror.Unauthorized("Unauthorized - invalid token")
	}
	return id, nil
}

func (s *Service) Me(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		// A valid token for a user that no longer exists.
		return nil, apperror.Unauthorized("User not found")
	}
	if err != nil {
		return nil, apperror.Internal("Database error", err)
	}
	return user, nil
}

func validateCredentials(handle, secret string) error {
	if handle == "" || secret == "" {
		return apperror.Validation("All fields are required")
	}
	if n := utf8.RuneCountInString(handle); n < minHandleLen || n > maxHandleLen {
		return apperror.Validation("Handle must be between %d and %d characters", minHandleLen, maxHandleLen)
	}
	if len(secret) > maxSecretLen {
		return apperror.Validation("Password must be at most %d bytes", maxSecretLen)
	}
	return nil
}
