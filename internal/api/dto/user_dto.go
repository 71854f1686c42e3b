package dto

import (
	"time"

	"github.com/spec-kit/apnabook-auth/internal/domain"
)

// UserRoleRequest payload for role changes.
type UserRoleRequest struct {
	Role string `json:"role"`
}

// UserStatusRequest payload for status changes.
type UserStatusRequest struct {
	Status string `json:"status"`
}

// AdminUserResponse is the admin listing row.
type AdminUserResponse struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Email    string            `json:"email"`
	Role     domain.Role       `json:"role"`
	Status   domain.UserStatus `json:"status"`
	Verified bool              `json:"verified"`
	Joined   time.Time         `json:"joined"`
}

// NewAdminUserResponse maps a user to its admin projection.
func NewAdminUserResponse(u *domain.User) AdminUserResponse {
	return AdminUserResponse{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
		Verified: u.Verified,
		Joined:   u.CreatedAt,
	}
}
