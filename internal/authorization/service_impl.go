package authorization

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds the enforcer from the embedded model and the static
// policy table. No adapter: the policy never changes at runtime.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(_ context.Context, role organizationdomain.Role, method, path string) error {
	switch role {
	case organizationdomain.RoleOwner, organizationdomain.RoleAdmin, organizationdomain.RoleMember:
	default:
		return ErrInvalidRole
	}

	subject := fmt.Sprintf("role:%s", role)
	allowed, err := s.enforcer.Enforce(subject, path, method)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("request denied",
			zap.String("role", string(role)),
			zap.String("method", method),
			zap.String("path", path))
		return ErrForbidden
	}
	return nil
}

// seedPolicies is the whole authorization surface: path regex by role, deny
// by default. Owners inherit admin, admins inherit member.
func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Members read everything in their org.
		{"role:member", `^/api/v1/(organization|tiers|subscriptions|charges|prospects)(/.*)?$`, `^GET$`},
		// Members manage their own subscriptions and purchases.
		{"role:member", `^/api/v1/subscriptions(/.*)?$`, `^POST$`},
		{"role:member", `^/api/v1/charges$`, `^POST$`},

		// Admins run the storefront.
		{"role:admin", `^/api/v1/tiers(/.*)?$`, `^(POST|PUT|PATCH|DELETE)$`},
		{"role:admin", `^/api/v1/prospects(/.*)?$`, `^(POST|DELETE)$`},
		{"role:admin", `^/api/v1/organization$`, `^(PUT|PATCH)$`},
		{"role:admin", `^/api/v1/organization/invites(/.*)?$`, `^POST$`},

		// Owners additionally control membership and the payment account.
		{"role:owner", `^/api/v1/organization/members(/.*)?$`, `^(PUT|PATCH|DELETE)$`},
		{"role:owner", `^/api/v1/organization/transfer$`, `^POST$`},
		{"role:owner", `^/api/v1/organization/account(/.*)?$`, `^(POST|DELETE)$`},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	groupings := [][]string{
		{"role:owner", "role:admin"},
		{"role:admin", "role:member"},
	}
	for _, g := range groupings {
		if _, err := enforcer.AddGroupingPolicy(g[0], g[1]); err != nil {
			return err
		}
	}
	return nil
}

var Module = fx.Module("authorization.service",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
