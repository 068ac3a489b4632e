package catalog

import (
	"github.com/smallbiznis/filmbilling/internal/catalog/client"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.client",
	fx.Provide(client.New),
)
