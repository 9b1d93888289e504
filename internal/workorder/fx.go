package workorder

import (
	"github.com/sitelane/materialflow/internal/workorder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workorder.service",
	fx.Provide(service.New),
)
