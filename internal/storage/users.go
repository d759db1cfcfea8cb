package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dindion/internal/auth"
)

// Users stores accounts in the same database as the tree.
type Users struct {
	queries *Queries
}

var _ auth.UserStore = (*Users)(nil)

// Users returns the account store sharing this tree's database.
func (t *SQLiteTree) Users() *Users {
	return &Users{queries: t.queries}
}

func (u *Users) CreateUser(ctx context.Context, user auth.User) error {
	err := u.queries.InsertUser(ctx, user.UID, strings.ToLower(user.Email), user.PasswordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (u *Users) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	row, err := u.queries.GetUserByEmail(ctx, strings.ToLower(email))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return auth.User{UID: row.UID, Email: row.Email, PasswordHash: row.PasswordHash, CreatedAt: row.CreatedAt}, nil
}

// UserByID looks an account up by uid.
func (u *Users) UserByID(ctx context.Context, uid string) (auth.User, error) {
	row, err := u.queries.GetUserByID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return auth.User{UID: row.UID, Email: row.Email, PasswordHash: row.PasswordHash, CreatedAt: row.CreatedAt}, nil
}
