package reallocation

import (
	"github.com/sitelane/materialflow/internal/reallocation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reallocation.service",
	fx.Provide(service.New),
)
