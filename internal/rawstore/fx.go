package rawstore

import "go.uber.org/fx"

var Module = fx.Module("rawstore",
	fx.Provide(New),
)
