package grpc

import "go.uber.org/fx"

var Module = fx.Module("relay-grpc",
	fx.Provide(
		NewHealthService,
	),
	fx.Invoke(RegisterHealthService),
)
