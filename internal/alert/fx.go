package alert

import (
	"github.com/sitelane/materialflow/internal/alert/service"
	"go.uber.org/fx"
)

var Module = fx.Module("alert.service",
	fx.Provide(service.New),
)
