package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrSessionExpired     = errors.New("session_expired")
	ErrUserNotFound       = errors.New("user_not_found")
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (User, error)
	Login(ctx context.Context, req LoginRequest) (Session, User, error)
	Logout(ctx context.Context, token string) error

	// Authenticate resolves a session token to its user, enforcing expiry.
	Authenticate(ctx context.Context, token string) (User, error)

	GetUser(ctx context.Context, id snowflake.ID) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}
