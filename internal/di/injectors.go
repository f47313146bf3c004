//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"github.com/wikimedia/research-similar-users/internal"
	"github.com/wikimedia/research-similar-users/internal/controllers"
	"github.com/wikimedia/research-similar-users/internal/dataset"
	"github.com/wikimedia/research-similar-users/internal/mediawiki"
	"github.com/wikimedia/research-similar-users/internal/models"
	"github.com/wikimedia/research-similar-users/internal/providers"
	"github.com/wikimedia/research-similar-users/internal/services"
	"github.com/wikimedia/research-similar-users/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewCacheProvider,
		providers.NewMetricsProvider,

		models.NewUserStore,
		mediawiki.NewClient,
		services.NewSimilarityService,

		dataset.NewZstdCompressor,
		dataset.NewBaselineLoader,
		dataset.NewFileManager,
		dataset.NewScheduler,

		controllers.NewSimilarityController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
