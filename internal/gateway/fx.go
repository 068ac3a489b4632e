package gateway

import (
	"github.com/smallbiznis/filmbilling/internal/gateway/signature"
	"github.com/smallbiznis/filmbilling/internal/gateway/yookassa"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.yookassa",
	fx.Provide(signature.New),
	fx.Provide(yookassa.New),
)
