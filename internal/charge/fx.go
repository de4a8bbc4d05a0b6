package charge

import (
	"github.com/market-dot-dev/studio-sub000/internal/charge/service"
	"go.uber.org/fx"
)

var Module = fx.Module("charge.service",
	fx.Provide(service.NewService),
)
