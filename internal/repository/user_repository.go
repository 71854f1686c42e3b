package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/apnabook-auth/internal/domain"
)

// UserRepository defines persistence access for marketplace accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}

// ErrDuplicateEmail is returned by Create when the address is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

const uniqueViolation = "23505"

// UserFilter defines query params for user listing.
type UserFilter struct {
	Role   *domain.Role
	Status *domain.UserStatus
	Limit  int
	Offset int
}

const userColumns = `id, name, email, password_hash, role, verified, status, created_at, updated_at`

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, verified, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Verified,
		user.Status,
		user.CreatedAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, password_hash=$2, role=$3, verified=$4, status=$5, updated_at=$6
        WHERE id=$7`

	cmd, err := r.pool.Exec(ctx, query,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.Verified,
		user.Status,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.pool.QueryRow(ctx, query, domain.NormalizeEmail(email)))
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	qb := newQueryBuilder(`SELECT ` + userColumns + ` FROM users`)
	if filter.Role != nil {
		qb.where("role = %s", *filter.Role)
	}
	if filter.Status != nil {
		qb.where("status = %s", *filter.Status)
	}
	qb.orderBy("created_at DESC")
	qb.page(filter.Limit, filter.Offset)

	query, args := qb.build()
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// scanUser resolves nullable legacy columns into the canonical domain shape.
func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user         domain.User
		name         *string
		passwordHash *string
		role         *string
		status       *string
	)
	if err := row.Scan(
		&user.ID,
		&name,
		&user.Email,
		&passwordHash,
		&role,
		&user.Verified,
		&status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.Name = domain.ResolveDisplayName(name)
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	if role != nil {
		user.Role = domain.NormalizeRole(*role)
	} else {
		user.Role = domain.RoleUser
	}
	switch {
	case status != nil && *status != "":
		user.Status = domain.UserStatus(*status)
	case user.Verified:
		user.Status = domain.UserStatusActive
	default:
		user.Status = domain.UserStatusPending
	}
	return &user, nil
}
