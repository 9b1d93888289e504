package material

import (
	"github.com/sitelane/materialflow/internal/material/service"
	"go.uber.org/fx"
)

var Module = fx.Module("material.service",
	fx.Provide(service.New),
)
