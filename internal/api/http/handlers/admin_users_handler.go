package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/apnabook-auth/internal/api/dto"
	"github.com/spec-kit/apnabook-auth/internal/auth"
	"github.com/spec-kit/apnabook-auth/internal/domain"
	"github.com/spec-kit/apnabook-auth/internal/repository"
	"github.com/spec-kit/apnabook-auth/internal/service"
	apperrors "github.com/spec-kit/apnabook-auth/pkg/util"
)

// AdminUsersHandler exposes administrative account endpoints.
type AdminUsersHandler struct {
	users *service.UserService
}

// NewAdminUsersHandler constructs handler.
func NewAdminUsersHandler(userService *service.UserService) *AdminUsersHandler {
	return &AdminUsersHandler{users: userService}
}

// List handles GET /api/admin/users.
func (h *AdminUsersHandler) List(c *fiber.Ctx) error {
	filter := repository.UserFilter{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.Query("role"); raw != "" {
		role, ok := domain.ParseRole(raw)
		if !ok {
			return apperrors.NewValidationError("Invalid role", map[string]any{"role": raw})
		}
		filter.Role = &role
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := domain.ParseUserStatus(raw)
		if !ok {
			return apperrors.NewValidationError("Invalid status", map[string]any{"status": raw})
		}
		filter.Status = &status
	}

	users, err := h.users.ListUsers(c.UserContext(), filter)
	if err != nil {
		return err
	}
	resp := make([]dto.AdminUserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, dto.NewAdminUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// UpdateRole handles PATCH /api/admin/users/:id/role.
func (h *AdminUsersHandler) UpdateRole(c *fiber.Ctx) error {
	actor, id, err := h.target(c)
	if err != nil {
		return err
	}
	var req dto.UserRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.UpdateRole(c.UserContext(), actor, id, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewAdminUserResponse(user))
}

// UpdateStatus handles PATCH /api/admin/users/:id/status.
func (h *AdminUsersHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, id, err := h.target(c)
	if err != nil {
		return err
	}
	var req dto.UserStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.UpdateStatus(c.UserContext(), actor, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewAdminUserResponse(user))
}

func (h *AdminUsersHandler) target(c *fiber.Ctx) (*domain.User, string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, "", fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", apperrors.NewNotFound("user", nil)
	}
	return principal.User, id, nil
}
