package audit

import (
	"github.com/sitelane/materialflow/internal/audit/repository"
	"github.com/sitelane/materialflow/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
