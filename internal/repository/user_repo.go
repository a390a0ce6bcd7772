package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"diaspora-api/internal/domain"
)

const uniqueViolationCode = "23505"

// ErrDuplicateEmail se devuelve cuando la restriccion unica de email rechaza un insert.
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository define el contrato de persistencia para usuarios.
// GetOne devuelve pgx.ErrNoRows si ningun usuario coincide con el filtro.
type UserRepository interface {
	GetOne(ctx context.Context, filter domain.UserFilter) (domain.User, error)
	GetAll(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
	Create(ctx context.Context, user domain.User) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, name, email, phone, password_hash, user_type, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, name, email, phone, password_hash, user_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.UserType,
		user.CreatedAt,
	)
	return mapWriteError(err)
}

func (r *PgUserRepository) GetOne(ctx context.Context, filter domain.UserFilter) (domain.User, error) {
	where, args := buildUserFilter(filter)
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at LIMIT 1`

	var u domain.User
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.UserType,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	return u, err
}

func (r *PgUserRepository) GetAll(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	where, args := buildUserFilter(filter)
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.Phone,
			&u.PasswordHash,
			&u.UserType,
			&u.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// buildUserFilter arma la clausula WHERE con placeholders posicionales.
func buildUserFilter(filter domain.UserFilter) (string, []any) {
	if filter.IsEmpty() {
		return "", nil
	}

	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("name", filter.Name)
	add("email", filter.Email)
	add("phone", filter.Phone)
	add("user_type", filter.UserType)

	return " WHERE " + strings.Join(conds, " AND "), args
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, pgErr.ConstraintName)
	}
	return err
}
