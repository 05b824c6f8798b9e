package bootstrap

import (
	"billiard-hall/cmd/bootstrap/components"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.WithLogger(NewFxLogger),
	ConfigModule,
	LoggerModule,
	DBModule,
	MessagingModule,
	components.UseCaseModule,
	fx.Invoke(StartMessaging),
)
