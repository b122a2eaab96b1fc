package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/controllers"
	container "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Container"
	implementation "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Repository/Implementation"

	alerting "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/alerting"
	commands "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/commands"
	identity "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/identity"
	ingest "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/ingest"
	liveness "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/liveness"
	weather "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/implementation/weather"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.ApiService/middleware"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting Telemetry API Service")

	// Initialize state store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize database")
	}

	// Get database connection
	db, err := ctr.GetDatabase()
	if err != nil {
		logger.FatalWithError(err, "Failed to get database connection")
	}
	dialect := ctr.GetDialect()

	// Create repositories
	deviceRepo := implementation.NewSQLDeviceRepository(db, dialect)
	dataPointRepo := implementation.NewSQLDataPointRepository(db, dialect)
	alertRepo := implementation.NewSQLAlertRepository(db, dialect)
	commandRepo := implementation.NewSQLCommandRepository(db, dialect)

	// Get configuration
	config := ctr.GetConfig()

	// Domain services
	alertEngine := alerting.NewEngine(alertRepo, config.Alerting, logger)
	ingestService := ingest.NewService(deviceRepo, dataPointRepo, alertEngine, config.Identity.DefaultOwnerID, logger)
	commandService := commands.NewService(deviceRepo, commandRepo, logger)
	weatherService := weather.NewService(config.Weather, alertEngine, logger)
	ownerResolver := identity.NewResolver(config.Identity)

	healthChecker, err := ctr.GetHealthChecker()
	if err != nil {
		logger.FatalWithError(err, "Failed to get health checker")
	}

	// Liveness monitor runs for the lifetime of the process
	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	defer monitorCancel()
	monitor := liveness.NewMonitor(deviceRepo, alertEngine, config.Liveness, logger)
	go monitor.Run(monitorCtx)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.OwnerMiddleware(ownerResolver))

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	telemetryController := controllers.NewTelemetryController(ingestService, logger)
	internalController := controllers.NewInternalController(ingestService, config.Ingest.InternalAPISecret, logger)
	deviceController := controllers.NewDeviceController(deviceRepo, dataPointRepo, logger)
	commandController := controllers.NewCommandController(commandService, logger)
	alertController := controllers.NewAlertController(alertRepo, logger)
	dashboardController := controllers.NewDashboardController(deviceRepo, dataPointRepo, alertRepo, commandRepo, logger)
	weatherController := controllers.NewWeatherController(weatherService, logger)
	healthController := controllers.NewHealthController(healthChecker, logger)

	// Register all routes
	telemetryController.RegisterRoutes(router)
	internalController.RegisterRoutes(router)
	deviceController.RegisterRoutes(router)
	commandController.RegisterRoutes(router)
	alertController.RegisterRoutes(router)
	dashboardController.RegisterRoutes(router)
	weatherController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	// Get port from configuration
	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("Telemetry service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	// Stop the liveness monitor before draining HTTP
	monitorCancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
