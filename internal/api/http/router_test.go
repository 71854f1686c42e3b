package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/apnabook-auth/internal/api/http/handlers"
	"github.com/spec-kit/apnabook-auth/internal/auth"
	"github.com/spec-kit/apnabook-auth/internal/config"
	"github.com/spec-kit/apnabook-auth/internal/domain"
	"github.com/spec-kit/apnabook-auth/internal/events"
	"github.com/spec-kit/apnabook-auth/internal/observability"
	"github.com/spec-kit/apnabook-auth/internal/ratelimit"
	"github.com/spec-kit/apnabook-auth/internal/repository"
	"github.com/spec-kit/apnabook-auth/internal/service"
)

type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (i *inbox) SendOTP(_ context.Context, email, code string, purpose domain.OTPPurpose) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[email+"|"+string(purpose)] = code
	return nil
}

func (i *inbox) code(email string, purpose domain.OTPPurpose) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.codes[email+"|"+string(purpose)]
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (s stubLimiter) Allow(_ context.Context, _ string, _ int, now time.Time) (ratelimit.Result, error) {
	if s.err != nil {
		return ratelimit.Result{}, s.err
	}
	return ratelimit.Result{Allowed: s.allowed, Reset: now.Add(30*time.Second + 400*time.Millisecond)}, nil
}

type testServer struct {
	app     *fiber.App
	store   *repository.MemoryStore
	inbox   *inbox
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	cfg := config.Config{
		App: config.AppConfig{Name: "apnabook-auth", Version: "test"},
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret",
			TokenTTLMinutes:   60,
			BcryptCost:        bcrypt.MinCost,
			OTPTTLSeconds:     300,
			OTPHashCost:       bcrypt.MinCost,
			MinPasswordLength: 6,
		},
	}
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	box := &inbox{codes: map[string]string{}}
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	otpService := service.NewOTPService(cfg.Auth, service.OTPDependencies{
		OTPRepo:    store.OTPs(),
		Sender:     box,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:          store.Users(),
		PendingSignupRepo: store.PendingSignups(),
		OTP:               otpService,
		Dispatcher:        dispatcher,
		Logger:            logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, nil, nil, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		AdminUsers:     handlers.NewAdminUsersHandler(service.NewUserService(store.Users())),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.Users()),
		OTPLimiter:     OTPRequestLimiter(limiter, 5, logger),
	})
	return &testServer{app: app, store: store, inbox: box, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (s *testServer) seed(t *testing.T, email, password string, role domain.Role, verified bool) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	status := domain.UserStatusPending
	if verified {
		status = domain.UserStatusActive
	}
	user := &domain.User{Name: "Seeded", Email: email, PasswordHash: hash, Role: role, Verified: verified, Status: status}
	require.NoError(t, s.store.Users().Create(context.Background(), user))
	return user
}

func errorCode(body map[string]any) string {
	envelope, _ := body["error"].(map[string]any)
	code, _ := envelope["code"].(string)
	return code
}

func TestSignupOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, http.MethodPost, "/api/auth/request-otp", "", map[string]string{
		"fullName": "Asha", "email": "A@B.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "OTP sent to your email", body["message"])

	resp, body = s.do(t, http.MethodPost, "/api/auth/request-otp", "", map[string]string{
		"fullName": "Asha", "email": "a@b.com", "password": "secret1",
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "THROTTLED", errorCode(body))
	assert.Equal(t, "300", resp.Header.Get(fiber.HeaderRetryAfter))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.EqualValues(t, 300, details["retryAfterSeconds"])

	code := s.inbox.code("a@b.com", domain.OTPPurposeRegister)
	require.NotEmpty(t, code)

	resp, body = s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": "a@b.com", "otp": code})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	user := body["user"].(map[string]any)
	assert.Equal(t, "a@b.com", user["email"])
	assert.Equal(t, "Asha", user["name"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "PasswordHash")

	resp, body = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a@b.com", body["user"].(map[string]any)["email"])

	resp, body = s.do(t, http.MethodPost, "/api/auth/request-otp", "", map[string]string{
		"fullName": "Asha", "email": "a@b.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", errorCode(body))
}

func TestSignupValidationOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, http.MethodPost, "/api/auth/request-otp", "", map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	resp, body = s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": "a@b.com", "otp": "123456"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OTP_NOT_FOUND", errorCode(body))
}

func TestLoginOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	s.seed(t, "a@b.com", "secret1", domain.RoleUser, true)
	s.seed(t, "p@b.com", "secret1", domain.RoleUser, false)

	resp, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "p@b.com", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoginOTPForUnverifiedOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	s.seed(t, "p@b.com", "secret1", domain.RoleUser, false)

	resp, body := s.do(t, http.MethodPost, "/api/auth/login-otp", "", map[string]string{"email": "p@b.com"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body["error"].(map[string]any)["message"], "OTP sent for verification")

	code := s.inbox.code("p@b.com", domain.OTPPurposeVerify)
	require.NotEmpty(t, code)
	assert.Empty(t, s.inbox.code("p@b.com", domain.OTPPurposeLogin))

	resp, _ = s.do(t, http.MethodPost, "/api/auth/login-otp/verify", "", map[string]string{"email": "p@b.com", "otp": code})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": "p@b.com", "otp": code})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Email verified", body["message"])

	resp, _ = s.do(t, http.MethodPost, "/api/auth/login-otp", "", map[string]string{"email": "missing@b.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoginOTPOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	s.seed(t, "a@b.com", "secret1", domain.RoleUser, true)

	resp, _ := s.do(t, http.MethodPost, "/api/auth/login-otp", "", map[string]string{"email": "a@b.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/api/auth/login-otp/verify", "", map[string]string{"email": "a@b.com", "otp": "000000"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OTP_MISMATCH", errorCode(body))

	code := s.inbox.code("a@b.com", domain.OTPPurposeLogin)
	resp, body = s.do(t, http.MethodPost, "/api/auth/login-otp/verify", "", map[string]string{"email": "a@b.com", "otp": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
}

func TestPasswordResetOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	s.seed(t, "a@b.com", "oldpass", domain.RoleUser, true)

	resp, body := s.do(t, http.MethodPost, "/api/auth/forgot-password/request-otp", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	resp, _ = s.do(t, http.MethodPost, "/api/auth/forgot-password/request-otp", "", map[string]string{"email": "a@b.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	code := s.inbox.code("a@b.com", domain.OTPPurposeReset)

	resp, body = s.do(t, http.MethodPost, "/api/auth/forgot-password/reset", "", map[string]string{
		"email": "a@b.com", "otp": code, "newPassword": "abcde",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	resp, _ = s.do(t, http.MethodPost, "/api/auth/forgot-password/reset", "", map[string]string{
		"email": "a@b.com", "otp": code, "newPassword": "abcdef",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.com", "password": "abcdef"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.seed(t, "admin@b.com", "secret1", domain.RoleAdmin, true)
	target := s.seed(t, "a@b.com", "secret1", domain.RoleUser, true)

	adminSession, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": admin.Email, "password": "secret1"})
	require.Equal(t, http.StatusOK, adminSession.StatusCode)
	adminToken := body["token"].(string)

	_, body = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": target.Email, "password": "secret1"})
	userToken := body["token"].(string)

	resp, _ := s.do(t, http.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/admin/users?role=user", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)

	resp, body = s.do(t, http.MethodPatch, "/api/admin/users/"+target.ID+"/role", adminToken, map[string]string{"role": "seller"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "seller", body["role"])

	resp, _ = s.do(t, http.MethodPatch, "/api/admin/users/"+target.ID+"/status", adminToken, map[string]string{"status": "blocked"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/auth/me", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPatch, "/api/admin/users/not-a-uuid/role", adminToken, map[string]string{"role": "seller"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOTPRequestLimiter(t *testing.T) {
	s := newTestServer(t, stubLimiter{allowed: false})
	s.seed(t, "a@b.com", "secret1", domain.RoleUser, true)

	resp, body := s.do(t, http.MethodPost, "/api/auth/login-otp", "", map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "THROTTLED", errorCode(body))
	assert.Equal(t, "31", resp.Header.Get(fiber.HeaderRetryAfter), "window remainder rounds up")
	assert.Empty(t, s.inbox.code("a@b.com", domain.OTPPurposeLogin))

	resp, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "password login is not limited")
}

func TestOTPRequestLimiterFailsOpen(t *testing.T) {
	s := newTestServer(t, stubLimiter{err: errors.New("redis down")})
	s.seed(t, "a@b.com", "secret1", domain.RoleUser, true)

	resp, _ := s.do(t, http.MethodPost, "/api/auth/login-otp", "", map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndErrors(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body["status"])
	assert.NotEmpty(t, resp.Header.Get(observability.RequestIDHeader))

	resp, body = s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "in-memory", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])

	resp, body = s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	snap := s.metrics.Snapshot()
	assert.NotEmpty(t, snap.Requests)
	assert.NotEmpty(t, snap.Errors)
}
