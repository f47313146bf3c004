package internal

import (
	"net/http"

	"github.com/wikimedia/research-similar-users/internal/controllers"
	"github.com/wikimedia/research-similar-users/internal/providers"
)

func InitRoutes(similarityController *controllers.SimilarityController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/similarusers", http.HandlerFunc(similarityController.SimilarUsers))
	return routers
}
