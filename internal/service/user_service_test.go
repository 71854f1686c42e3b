package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/apnabook-auth/internal/domain"
	"github.com/spec-kit/apnabook-auth/internal/repository"
)

func TestUserService_UpdateRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.seedUser(t, "admin@b.com", "secret1", true)
	target := h.seedUser(t, "a@b.com", "secret1", true)

	updated, err := h.users.UpdateRole(ctx, admin, target.ID, "Seller")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSeller, updated.Role)

	stored, err := h.store.Users().GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSeller, stored.Role)

	_, err = h.users.UpdateRole(ctx, admin, target.ID, "superuser")
	requireCode(t, err, "VALIDATION_FAILED")

	_, err = h.users.UpdateRole(ctx, admin, admin.ID, "user")
	requireCode(t, err, "VALIDATION_FAILED")

	_, err = h.users.UpdateRole(ctx, admin, "00000000-0000-0000-0000-000000000000", "user")
	requireCode(t, err, "NOT_FOUND")
}

func TestUserService_UpdateStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.seedUser(t, "admin@b.com", "secret1", true)
	target := h.seedUser(t, "a@b.com", "secret1", true)
	unverified := h.seedUser(t, "p@b.com", "secret1", false)

	updated, err := h.users.UpdateStatus(ctx, admin, target.ID, "blocked")
	require.NoError(t, err)
	assert.True(t, updated.Blocked())

	_, err = h.auth.Login(ctx, "a@b.com", "secret1")
	requireCode(t, err, "FORBIDDEN")

	updated, err = h.users.UpdateStatus(ctx, admin, target.ID, "Active")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusActive, updated.Status)

	_, err = h.users.UpdateStatus(ctx, admin, unverified.ID, "active")
	requireCode(t, err, "CONFLICT")

	_, err = h.users.UpdateStatus(ctx, admin, target.ID, "pending")
	requireCode(t, err, "VALIDATION_FAILED")

	_, err = h.users.UpdateStatus(ctx, admin, admin.ID, "blocked")
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestUserService_ListUsers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, email := range []string{"a@b.com", "b@b.com", "c@b.com"} {
		h.seedUser(t, email, "secret1", true)
		h.clock.Advance(time.Second)
	}
	seller := h.seedUser(t, "s@b.com", "secret1", true)
	_, err := h.users.UpdateRole(ctx, nil, seller.ID, "seller")
	require.NoError(t, err)

	all, err := h.users.ListUsers(ctx, repository.UserFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "s@b.com", all[0].Email)

	role := domain.RoleSeller
	sellers, err := h.users.ListUsers(ctx, repository.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, sellers, 1)

	page, err := h.users.ListUsers(ctx, repository.UserFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c@b.com", page[0].Email)
}
