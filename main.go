// File: clinicsched/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicsched/backend"
	"clinicsched/config"
	"clinicsched/handlers"
	"clinicsched/middleware"
	"clinicsched/routes"
	"clinicsched/services/scheduling"
	"clinicsched/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	utils.InitSessionCache()

	// Practice-management backend client: serves as slot oracle, booking
	// oracle, provider directory, waitlist and appointment writer.
	apiClient := backend.NewClient(
		config.AppConfig.BackendBaseURL,
		config.AppConfig.BackendAPIToken,
		time.Duration(config.AppConfig.BackendTimeoutSeconds)*time.Second,
		logger,
	)

	checker := &scheduling.DefaultChecker{
		Slots:     apiClient,
		Bookings:  apiClient,
		Providers: apiClient,
		Logger:    logger,
	}

	sessionService := &scheduling.DefaultSessionService{
		Cache:    utils.GetSessionCacheClient(),
		Checker:  checker,
		Waitlist: apiClient,
		Writer:   apiClient,
		Logger:   logger,
		TTL:      time.Duration(config.AppConfig.SessionTTLMinutes) * time.Minute,
		Debounce: time.Duration(config.AppConfig.DebounceMillis) * time.Millisecond,
	}
	schedulingHandler := handlers.NewSchedulingHandler(sessionService)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(routes.CORSMiddleware())
	router.Use(middleware.RateLimitMiddleware())

	routes.RegisterSchedulingRoutes(router, schedulingHandler)
	routes.RegisterHealthRoute(router)

	utils.StartHealthMonitor(utils.GetSessionCacheClient(), apiClient)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
