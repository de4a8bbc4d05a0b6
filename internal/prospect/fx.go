package prospect

import (
	"github.com/market-dot-dev/studio-sub000/internal/prospect/service"
	"go.uber.org/fx"
)

var Module = fx.Module("prospect.service",
	fx.Provide(service.NewService),
)
