package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/apnabook-auth/internal/domain"
)

// OTPRepository manages one-time passcode persistence.
type OTPRepository interface {
	Create(ctx context.Context, record *domain.OTPRecord) error
	// LatestActive returns the newest record with no used-at marker, expired or not.
	LatestActive(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error)
	// InvalidateActive marks every unused record for the pair as used at the given time.
	InvalidateActive(ctx context.Context, email string, purpose domain.OTPPurpose, at time.Time) (int64, error)
	// MarkUsed consumes an unused record; pgx.ErrNoRows when it was already used.
	MarkUsed(ctx context.Context, id string, at time.Time) error
}

type otpRepository struct {
	pool *pgxpool.Pool
}

// NewOTPRepository constructs repository.
func NewOTPRepository(pool *pgxpool.Pool) OTPRepository {
	return &otpRepository{pool: pool}
}

func (r *otpRepository) Create(ctx context.Context, record *domain.OTPRecord) error {
	const query = `
        INSERT INTO otp_codes (email, purpose, code_hash, expires_at, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		record.Email,
		record.Purpose,
		record.CodeHash,
		record.ExpiresAt,
		record.CreatedAt,
	).Scan(&record.ID)
}

func (r *otpRepository) LatestActive(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error) {
	const query = `
        SELECT id, email, purpose, code_hash, expires_at, used_at, created_at
        FROM otp_codes
        WHERE email=$1 AND purpose=$2 AND used_at IS NULL
        ORDER BY created_at DESC, seq DESC
        LIMIT 1`
	var record domain.OTPRecord
	if err := r.pool.QueryRow(ctx, query, email, purpose).Scan(
		&record.ID,
		&record.Email,
		&record.Purpose,
		&record.CodeHash,
		&record.ExpiresAt,
		&record.UsedAt,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *otpRepository) InvalidateActive(ctx context.Context, email string, purpose domain.OTPPurpose, at time.Time) (int64, error) {
	const query = `
        UPDATE otp_codes SET used_at=$3
        WHERE email=$1 AND purpose=$2 AND used_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, email, purpose, at)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *otpRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	const query = `
        UPDATE otp_codes SET used_at=$2
        WHERE id=$1 AND used_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
