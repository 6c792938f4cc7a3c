// Command stubservice serves a deterministic stand-in for the remote
// analysis service so the console can be developed and demoed offline.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"oncodetect/adapters/stub"
	"oncodetect/internal"
	"oncodetect/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	port := flag.String("port", appConfig.Stub.Port, "listen port")
	delay := flag.Duration("delay", 0, "artificial latency added to analysis responses")
	flag.Parse()

	logger := internal.NewLoggerWithOptions(internal.LogOptions{
		Level:  internal.ParseLogLevel(appConfig.Logging.Level),
		Format: appConfig.Logging.Format,
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr: ":" + *port,
		Handler: stub.NewService(stub.Options{
			Delay:          *delay,
			MaxUploadBytes: appConfig.Upload.MaxImageBytes,
		}, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("[Stub] Analysis stub listening on http://localhost:%s", *port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Stub server failed: %v", err)
	}
}
