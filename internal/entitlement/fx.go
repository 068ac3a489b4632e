package entitlement

import (
	"github.com/smallbiznis/filmbilling/internal/entitlement/repository"
	"github.com/smallbiznis/filmbilling/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
