package authorization

import (
	"context"
	"errors"

	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
)

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidRole = errors.New("invalid_role")
)

// Service answers whether a member role may hit a route. The policy is a
// static table compiled into the binary; nothing is stored or mutated at
// runtime.
type Service interface {
	Authorize(ctx context.Context, role organizationdomain.Role, method, path string) error
}
