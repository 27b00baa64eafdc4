//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"ytmon/internal"
	"ytmon/internal/controllers"
	"ytmon/internal/monitor"
	"ytmon/internal/providers"
	"ytmon/internal/services"
	"ytmon/internal/source"
	"ytmon/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		monitor.NewFileManager,
		wire.Bind(new(services.Persister), new(*monitor.FileManager)),
		services.NewMonitorService,
		source.NewYouTubeSource,
		monitor.NewRefreshGate,
		monitor.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
