package auth

import (
	"github.com/market-dot-dev/studio-sub000/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(service.NewService),
)
