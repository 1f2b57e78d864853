package users

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

// User mirrors the account record kept by the external auth provider.
type User struct {
	ID          string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id string) (User, error)
	// Upsert records the profile carried by a verified token the first time it is seen.
	Upsert(ctx context.Context, u User) error
}
