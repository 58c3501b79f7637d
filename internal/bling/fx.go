package bling

import "go.uber.org/fx"

var Module = fx.Module("bling",
	fx.Provide(NewClient),
	fx.Provide(NewFetcher),
)
