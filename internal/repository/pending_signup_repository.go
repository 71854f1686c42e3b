package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/apnabook-auth/internal/domain"
)

// PendingSignupRepository stores signup details awaiting OTP verification.
type PendingSignupRepository interface {
	Upsert(ctx context.Context, pending *domain.PendingSignup) error
	GetByEmail(ctx context.Context, email string) (*domain.PendingSignup, error)
	Delete(ctx context.Context, email string) error
}

type pendingSignupRepository struct {
	pool *pgxpool.Pool
}

// NewPendingSignupRepository constructs repository.
func NewPendingSignupRepository(pool *pgxpool.Pool) PendingSignupRepository {
	return &pendingSignupRepository{pool: pool}
}

// Upsert keeps at most one pending signup per email; created_at survives refreshes.
func (r *pendingSignupRepository) Upsert(ctx context.Context, pending *domain.PendingSignup) error {
	const query = `
        INSERT INTO pending_signups (email, name, password_hash, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$4)
        ON CONFLICT (email) DO UPDATE
        SET name=EXCLUDED.name, password_hash=EXCLUDED.password_hash, updated_at=EXCLUDED.updated_at
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		pending.Email,
		pending.Name,
		pending.PasswordHash,
		pending.UpdatedAt,
	).Scan(&pending.CreatedAt, &pending.UpdatedAt)
}

func (r *pendingSignupRepository) GetByEmail(ctx context.Context, email string) (*domain.PendingSignup, error) {
	const query = `
        SELECT email, name, password_hash, created_at, updated_at
        FROM pending_signups WHERE email=$1`
	var pending domain.PendingSignup
	if err := r.pool.QueryRow(ctx, query, email).Scan(
		&pending.Email,
		&pending.Name,
		&pending.PasswordHash,
		&pending.CreatedAt,
		&pending.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &pending, nil
}

func (r *pendingSignupRepository) Delete(ctx context.Context, email string) error {
	const query = `DELETE FROM pending_signups WHERE email=$1`
	_, err := r.pool.Exec(ctx, query, email)
	return err
}
