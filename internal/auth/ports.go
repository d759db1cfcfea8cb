// Package auth is the identity collaborator: accounts, session tokens and
// auth-state subscriptions.
package auth

import (
	"context"
	"errors"
	"time"
)

type (
	// User is a stored account.
	User struct {
		UID          string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Identity is the signed-in principal. A nil *Identity means "signed out".
	Identity struct {
		UID   string
		Email string
	}

	UserStore interface {
		// CreateUser fails with ErrEmailTaken when the email is registered.
		CreateUser(ctx context.Context, u User) error
		// UserByEmail fails with ErrUserNotFound for unknown emails.
		UserByEmail(ctx context.Context, email string) (User, error)
	}
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must have at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired session")
)
