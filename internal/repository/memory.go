package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/apnabook-auth/internal/domain"
)

// MemoryStore is a process-local credential store used when no database is configured.
// Each operation is atomic under a single lock; not-found is reported as pgx.ErrNoRows.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	pending map[string]*domain.PendingSignup
	otps    []*memOTP
	seq     int64
}

type memOTP struct {
	record domain.OTPRecord
	seq    int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*domain.User),
		pending: make(map[string]*domain.PendingSignup),
	}
}

// Users returns the user repository view.
func (s *MemoryStore) Users() UserRepository { return memUsers{s} }

// PendingSignups returns the pending signup repository view.
func (s *MemoryStore) PendingSignups() PendingSignupRepository { return memPending{s} }

// OTPs returns the OTP repository view.
func (s *MemoryStore) OTPs() OTPRepository { return memOTPs{s} }

type memUsers struct{ s *MemoryStore }

func (r memUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	user.ID = uuid.NewString()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

func (r memUsers) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored := *user
	stored.Email = existing.Email
	stored.CreatedAt = existing.CreatedAt
	r.s.users[user.ID] = &stored
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *user
	return &out, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Email == email {
			out := *user
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memUsers) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]domain.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && user.Status != *filter.Status {
			continue
		}
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(users) {
			return nil, nil
		}
		users = users[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(users) {
		users = users[:filter.Limit]
	}
	return users, nil
}

type memPending struct{ s *MemoryStore }

func (r memPending) Upsert(_ context.Context, pending *domain.PendingSignup) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *pending
	stored.CreatedAt = pending.UpdatedAt
	if existing, ok := r.s.pending[pending.Email]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	r.s.pending[pending.Email] = &stored
	pending.CreatedAt = stored.CreatedAt
	return nil
}

func (r memPending) GetByEmail(_ context.Context, email string) (*domain.PendingSignup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pending, ok := r.s.pending[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *pending
	return &out, nil
}

func (r memPending) Delete(_ context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.pending, email)
	return nil
}

type memOTPs struct{ s *MemoryStore }

func (r memOTPs) Create(_ context.Context, record *domain.OTPRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	record.ID = uuid.NewString()
	r.s.otps = append(r.s.otps, &memOTP{record: *record, seq: r.s.seq})
	return nil
}

func (r memOTPs) LatestActive(_ context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *memOTP
	for _, candidate := range r.s.otps {
		rec := candidate.record
		if rec.Email != email || rec.Purpose != purpose || !rec.Active() {
			continue
		}
		if latest == nil ||
			rec.CreatedAt.After(latest.record.CreatedAt) ||
			(rec.CreatedAt.Equal(latest.record.CreatedAt) && candidate.seq > latest.seq) {
			latest = candidate
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	out := latest.record
	return &out, nil
}

func (r memOTPs) InvalidateActive(_ context.Context, email string, purpose domain.OTPPurpose, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, candidate := range r.s.otps {
		rec := &candidate.record
		if rec.Email == email && rec.Purpose == purpose && rec.Active() {
			usedAt := at
			rec.UsedAt = &usedAt
			n++
		}
	}
	return n, nil
}

func (r memOTPs) MarkUsed(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, candidate := range r.s.otps {
		if candidate.record.ID == id && candidate.record.Active() {
			usedAt := at
			candidate.record.UsedAt = &usedAt
			return nil
		}
	}
	return pgx.ErrNoRows
}

// Records returns a copy of every stored passcode for (email, purpose), oldest first.
func (s *MemoryStore) Records(email string, purpose domain.OTPPurpose) []domain.OTPRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OTPRecord
	for _, candidate := range s.otps {
		if candidate.record.Email == email && candidate.record.Purpose == purpose {
			out = append(out, candidate.record)
		}
	}
	return out
}
