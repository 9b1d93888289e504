package stockadjustment

import (
	"github.com/sitelane/materialflow/internal/stockadjustment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stockadjustment.service",
	fx.Provide(service.New),
)
