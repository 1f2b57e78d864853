package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/users"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &UserStore{db: db}, nil
}

func (s *UserStore) List(ctx context.Context) ([]users.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, display_name, is_admin, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	out := make([]users.User, 0)
	for rows.Next() {
		var u users.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return out, nil
}

func (s *UserStore) Get(ctx context.Context, id string) (users.User, error) {
	var u users.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, is_admin, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, fmt.Errorf("%w: %s", users.ErrNotFound, id)
		}
		return users.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// Upsert keeps the first recorded created_at and stamps NOW() when none is given.
func (s *UserStore) Upsert(ctx context.Context, u users.User) error {
	query := `
		INSERT INTO users (id, email, display_name, is_admin, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, display_name = EXCLUDED.display_name, is_admin = EXCLUDED.is_admin
	`
	if _, err := s.db.ExecContext(ctx, query, u.ID, u.Email, u.DisplayName, u.IsAdmin, nullTime(u.CreatedAt)); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
