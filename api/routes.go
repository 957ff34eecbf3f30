package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsetup/api/handlers"
	"github.com/customeros/mailsetup/api/middleware"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/tracing"
)

const (
	AppSource    = "mailsetup"
	APIKeyHeader = "X-MAILSETUP-API-KEY"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, log logger.Logger, provisioner interfaces.ProvisionerService, apikey string) {
	if provisioner == nil {
		panic("Provisioner cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())                                         // Gin's built-in recovery
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer())) // Our custom Jaeger recovery

	// setup handlers
	apiHandlers := handlers.InitHandlers(log, provisioner)

	// Health check (no custom context needed)
	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  APIKeyHeader,
		ValidAPIKey: apikey,
	})

	// API group with version and custom context
	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.IdentityMiddleware())
	api.Use(middleware.CustomContextMiddleware(AppSource)) // Add custom context for all /v1/* endpoints
	api.Use(middleware.TracingMiddleware())                // Add tracing for all /v1/* endpoints
	{
		accounts := api.Group("/accounts")
		{
			accounts.POST("", apiHandlers.Accounts.Create())
			accounts.POST("/template", apiHandlers.Accounts.Template())
			accounts.POST("/finalize", apiHandlers.Accounts.Finalize())
			accounts.GET("/attempts", apiHandlers.Accounts.ListAttempts())
		}

		oauth := api.Group("/oauth")
		{
			oauth.POST("/:provider/sessions", apiHandlers.OAuth.Begin())
			oauth.POST("/sessions/:id/complete", apiHandlers.OAuth.Complete())
		}
	}
}
