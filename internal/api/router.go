// Package api builds the Gin engine and wires the gateway's HTTP surface.
package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kisansathi/gateway/internal/ai"
	"github.com/kisansathi/gateway/internal/app"
	"github.com/kisansathi/gateway/internal/assetcache"
	"github.com/kisansathi/gateway/internal/handlers"
	"github.com/kisansathi/gateway/internal/middleware"
	"github.com/kisansathi/gateway/internal/notifications"
	"github.com/kisansathi/gateway/internal/store"
)

// Dependencies carries the wired services the router mounts.
type Dependencies struct {
	Config   *app.Config
	Store    *store.Store
	Manager  *assetcache.Manager
	Registry *assetcache.Registry
	AIClient *ai.Client
	Hub      *notifications.Hub
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
// Requests that match no API route fall through to the asset cache, which
// serves the cached app shell or proxies the origin.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store must be provided")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("asset cache manager must be provided")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("sync registry must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	if deps.Config.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}

	api := r.Group("/api")

	// Offline pending records
	offlineHandler, err := handlers.NewOfflineHandler(deps.Store)
	if err != nil {
		return nil, err
	}
	offline := api.Group("/offline")
	{
		offline.POST("", offlineHandler.Save)
		offline.GET("", offlineHandler.List)
		offline.POST("/:id/synced", offlineHandler.MarkSynced)
	}

	// Sync triggers
	syncHandler, err := handlers.NewSyncHandler(deps.Store, deps.Registry)
	if err != nil {
		return nil, err
	}
	api.POST("/sync", syncHandler.Drain)
	api.GET("/sync/tags", syncHandler.Tags)
	api.POST("/sync/:tag", syncHandler.Trigger)

	// Crop analysis submissions
	if deps.Config.Remote.CropAnalysisEndpoint != "" {
		cropHandler, err := handlers.NewCropAnalysisHandler(deps.Store, deps.Manager, deps.Config.Remote.CropAnalysisEndpoint)
		if err != nil {
			return nil, err
		}
		api.POST("/crop-analysis", cropHandler.Submit)
	}

	// Cached upstream data
	if deps.Config.Remote.WeatherEndpoint != "" {
		weatherHandler, err := handlers.NewWeatherHandler(deps.Store, deps.Config.Remote.WeatherEndpoint)
		if err != nil {
			return nil, err
		}
		api.GET("/weather", weatherHandler.Get)
	}
	if deps.Config.Remote.PricesEndpoint != "" {
		pricesHandler, err := handlers.NewPricesHandler(deps.Store, deps.Config.Remote.PricesEndpoint)
		if err != nil {
			return nil, err
		}
		api.GET("/prices", pricesHandler.Get)
	}

	// Navigation state
	navHandler, err := handlers.NewNavigationHandler(deps.Store)
	if err != nil {
		return nil, err
	}
	api.POST("/navigation", navHandler.Save)
	api.GET("/navigation", navHandler.Last)

	// Advisory model proxy
	if deps.AIClient != nil {
		aiHandler, err := handlers.NewAIHandler(deps.AIClient)
		if err != nil {
			return nil, err
		}
		api.POST("/ai/ask", aiHandler.Ask)
	}

	// Push notification fanout
	if deps.Hub != nil {
		r.GET("/ws/notifications", func(c *gin.Context) {
			deps.Hub.Serve(c.Writer, c.Request)
		})
	}

	// Metrics endpoint
	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// Everything else is app-shell traffic served cache-first.
	r.NoRoute(gin.WrapH(deps.Manager))

	return r, nil
}
