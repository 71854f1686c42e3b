package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/apnabook-auth/internal/auth"
	"github.com/spec-kit/apnabook-auth/internal/config"
	"github.com/spec-kit/apnabook-auth/internal/domain"
	"github.com/spec-kit/apnabook-auth/internal/events"
	"github.com/spec-kit/apnabook-auth/internal/observability"
	"github.com/spec-kit/apnabook-auth/internal/repository"
)

type sentOTP struct {
	email   string
	code    string
	purpose domain.OTPPurpose
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentOTP
	err  error
}

func (f *fakeSender) SendOTP(_ context.Context, email, code string, purpose domain.OTPPurpose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentOTP{email: email, code: code, purpose: purpose})
	return nil
}

func (f *fakeSender) last(t *testing.T, email string, purpose domain.OTPPurpose) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].email == email && f.sent[i].purpose == purpose {
			return f.sent[i].code
		}
	}
	t.Fatalf("no %s otp sent to %s", purpose, email)
	return ""
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store      *repository.MemoryStore
	sender     *fakeSender
	clock      *testClock
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	otp        *OTPService
	auth       *AuthService
	users      *UserService
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret",
			TokenTTLMinutes:   7 * 24 * 60,
			BcryptCost:        bcrypt.MinCost,
			OTPTTLSeconds:     300,
			OTPHashCost:       bcrypt.MinCost,
			MinPasswordLength: 6,
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testConfig()
	h := &harness{
		store:      repository.NewMemoryStore(),
		sender:     &fakeSender{},
		clock:      newTestClock(),
		dispatcher: events.NewInMemoryDispatcher(),
		metrics:    observability.NewMetrics(),
	}
	h.otp = NewOTPService(cfg.Auth, OTPDependencies{
		OTPRepo:    h.store.OTPs(),
		Sender:     h.sender,
		Dispatcher: h.dispatcher,
		Metrics:    h.metrics,
	})
	h.otp.now = h.clock.Now
	h.auth = NewAuthService(cfg, AuthDependencies{
		UserRepo:          h.store.Users(),
		PendingSignupRepo: h.store.PendingSignups(),
		OTP:               h.otp,
		Dispatcher:        h.dispatcher,
	})
	h.auth.now = h.clock.Now
	h.users = NewUserService(h.store.Users())
	h.users.now = h.clock.Now
	return h
}

// seedUser stores an account with the given password and verification state.
func (h *harness) seedUser(t *testing.T, email, password string, verified bool) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	status := domain.UserStatusPending
	if verified {
		status = domain.UserStatusActive
	}
	user := &domain.User{
		Name:         "Seeded",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Verified:     verified,
		Status:       status,
		CreatedAt:    h.clock.Now(),
	}
	require.NoError(t, h.store.Users().Create(context.Background(), user))
	return user
}
