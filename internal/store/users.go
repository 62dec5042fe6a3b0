package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lireddit/server/internal/domain"
)

const userColumns = `id, username, email, password, created_at, updated_at`

// CreateUser inserts a user. ErrDuplicate is returned when the username or
// email is already taken.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*domain.User, error) {
	rows, err := s.db.Query(ctx,
		`INSERT INTO users (username, email, password) VALUES ($1, $2, $3) RETURNING `+userColumns,
		username, email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", translate(err))
	}
	u, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domain.User])
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", translate(err))
	}
	return u, nil
}

// UserByID returns ErrNotFound for an unknown id.
func (s *Store) UserByID(ctx context.Context, id int) (*domain.User, error) {
	return s.userWhere(ctx, "id = $1", id)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.userWhere(ctx, "username = $1", username)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.userWhere(ctx, "email = $1", email)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (*domain.User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE `+cond, arg)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	u, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domain.User])
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// UsersByIDs returns the users that exist among ids, in no particular order.
func (s *Store) UsersByIDs(ctx context.Context, ids []int) ([]*domain.User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[domain.User])
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return users, nil
}

// UpdatePassword replaces the stored hash for id.
func (s *Store) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET password = $1, updated_at = now() WHERE id = $2`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
