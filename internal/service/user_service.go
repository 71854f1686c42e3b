package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/apnabook-auth/internal/domain"
	"github.com/spec-kit/apnabook-auth/internal/repository"
	apperrors "github.com/spec-kit/apnabook-auth/pkg/util"
)

const (
	defaultUserListLimit = 50
	maxUserListLimit     = 200
)

// UserService exposes administrative account management.
type UserService struct {
	users repository.UserRepository
	now   func() time.Time
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users, now: time.Now}
}

// ListUsers returns accounts newest first.
func (s *UserService) ListUsers(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultUserListLimit
	}
	if filter.Limit > maxUserListLimit {
		filter.Limit = maxUserListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.users.List(ctx, filter)
}

// UpdateRole assigns a role from the closed role set.
func (s *UserService) UpdateRole(ctx context.Context, actor *domain.User, userID, rawRole string) (*domain.User, error) {
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return nil, apperrors.NewValidationError("Invalid role", map[string]any{"role": rawRole})
	}
	if actor != nil && actor.ID == userID {
		return nil, apperrors.NewValidationError("cannot change your own role", nil)
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Role = role
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateStatus blocks or reactivates an account.
func (s *UserService) UpdateStatus(ctx context.Context, actor *domain.User, userID, rawStatus string) (*domain.User, error) {
	status, ok := domain.ParseUserStatus(rawStatus)
	if !ok {
		return nil, apperrors.NewValidationError("Status is required", map[string]any{"status": rawStatus})
	}
	if actor != nil && actor.ID == userID {
		return nil, apperrors.NewValidationError("cannot change your own status", nil)
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status == domain.UserStatusActive && !user.Verified {
		return nil, apperrors.NewConflict("unverified accounts cannot be activated", nil)
	}
	user.Status = status
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) load(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}
