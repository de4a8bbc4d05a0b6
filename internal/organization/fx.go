package organization

import (
	"github.com/market-dot-dev/studio-sub000/internal/organization/repository"
	"github.com/market-dot-dev/studio-sub000/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
