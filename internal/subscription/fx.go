package subscription

import (
	"github.com/market-dot-dev/studio-sub000/internal/subscription/repository"
	"github.com/market-dot-dev/studio-sub000/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideSubscriberCounter),
	fx.Provide(service.NewService),
)
