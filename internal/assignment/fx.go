package assignment

import (
	"github.com/sitelane/materialflow/internal/assignment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("assignment.service",
	fx.Provide(service.New),
)
