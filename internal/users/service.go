package users

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"scheme-admin/internal/auth"
	"scheme-admin/internal/models"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSetupKey    = errors.New("invalid setup key")
	ErrAuthNotConfigured  = errors.New("auth not configured")
)

type Service struct {
	repo     Repository
	tokens   *auth.Manager
	setupKey string
	location *time.Location
}

func NewService(repo Repository, tokens *auth.Manager, setupKey string, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{repo: repo, tokens: tokens, setupKey: setupKey, location: location}
}

// Register creates an account. With a configured setup key the caller must
// present it and becomes an admin; without one the account is a plain user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (models.AuthResponse, error) {
	if s.tokens == nil {
		return models.AuthResponse{}, ErrAuthNotConfigured
	}
	role := models.UserRoleUser
	if s.setupKey != "" {
		if subtle.ConstantTimeCompare([]byte(req.SetupKey), []byte(s.setupKey)) != 1 {
			return models.AuthResponse{}, ErrInvalidSetupKey
		}
		role = models.UserRoleAdmin
	}

	user, err := s.create(ctx, req.Name, req.Email, req.Password, role)
	if err != nil {
		return models.AuthResponse{}, err
	}
	return s.issue(user)
}

// EnsureAdmin creates the admin account when the email is unknown.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (models.User, bool, error) {
	existing, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, false, err
	}
	user, err := s.create(ctx, name, email, password, models.UserRoleAdmin)
	if err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

func (s *Service) create(ctx context.Context, name, email, password, role string) (models.User, error) {
	if err := auth.CheckStrength(password); err != nil {
		return models.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	now := time.Now().In(s.location)
	user := models.User{
		ID:           primitive.NewObjectID().Hex(),
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, ErrEmailExists
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (models.AuthResponse, error) {
	if s.tokens == nil {
		return models.AuthResponse{}, ErrAuthNotConfigured
	}
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.AuthResponse{}, ErrInvalidCredentials
		}
		return models.AuthResponse{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		return models.AuthResponse{}, ErrInvalidCredentials
	}
	return s.issue(user)
}

// Get returns the user behind verified claims.
func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	user, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, id, password string) error {
	if err := auth.CheckStrength(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	found, err := s.repo.UpdatePassword(ctx, strings.TrimSpace(id), hash, time.Now().In(s.location))
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (s *Service) issue(user models.User) (models.AuthResponse, error) {
	token, err := s.tokens.NewAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return models.AuthResponse{}, err
	}
	return models.AuthResponse{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
