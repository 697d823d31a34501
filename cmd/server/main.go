package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/tradiehub/credits-server/internal/api"
	"github.com/tradiehub/credits-server/internal/catalog"
	"github.com/tradiehub/credits-server/internal/config"
	"github.com/tradiehub/credits-server/internal/repository"
	"github.com/tradiehub/credits-server/internal/service"
	"github.com/tradiehub/credits-server/internal/utils"
)

func main() {
	utils.SetupLogging()

	// Load configuration
	cfg := config.LoadConfig()

	// Load the immutable package/subscription catalogs
	cat := catalog.Default()
	if cfg.Credits.CatalogPath != "" {
		var err error
		cat, err = catalog.Load(cfg.Credits.CatalogPath)
		if err != nil {
			slog.Error("failed to load catalog", "path", cfg.Credits.CatalogPath, "error", err)
			os.Exit(1)
		}
	}

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		slog.Error("failed to set up database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	svc := service.NewDefaultService(repo, cat, cfg.Auth.JWTSecret, cfg.Credits.WelcomeCredits)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(), api.MetricsMiddleware())

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("starting server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
