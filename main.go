package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"oncodetect/internal"
	"oncodetect/internal/config"
	"oncodetect/internal/container"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewLoggerWithOptions(internal.LogOptions{
		Level:  internal.ParseLogLevel(appConfig.Logging.Level),
		Format: appConfig.Logging.Format,
		File:   appConfig.Logging.File,
	})
	defer func() { _ = logger.Sync() }()

	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appConfig, logger); err != nil {
		logger.Error("Console stopped with error: %v", err)
		log.Fatalf("Console failed: %v", err)
	}
}

func run(ctx context.Context, appConfig *config.Config, logger *internal.Logger) error {
	c, err := container.New(appConfig, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           c.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting OncoDetect console on http://localhost:%s (analysis service %s)",
			appConfig.Server.Port, appConfig.Analysis.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return c.Cases.RunJanitor(gctx, time.Minute)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down console...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
		defer cancel()
		// SSE streams end when the hub closes
		c.SSEHub.Close()
		err := httpServer.Shutdown(shutdownCtx)
		c.Shutdown(shutdownCtx)
		return err
	})

	return g.Wait()
}
