package internal

import (
	"net/http"

	"ytmon/internal/controllers"
	"ytmon/internal/providers"
	"ytmon/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, healthController *controllers.HealthController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/api/history", http.HandlerFunc(apiController.GetHistory))
	// legacy alias kept for older dashboards
	routers.Get("/history", http.HandlerFunc(apiController.GetHistory))
	routers.Get("/api/stats", http.HandlerFunc(apiController.GetStats))
	// alias of /health; older dashboards poll it under the API prefix
	routers.Get("/api/health", http.HandlerFunc(healthController.Health))
	routers.Post("/api/ingest", http.HandlerFunc(apiController.Ingest))
	routers.Post("/api/refresh/recommended", http.HandlerFunc(apiController.RefreshRecommended))
	return routers
}
