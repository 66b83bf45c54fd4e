package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anima-backend/infrastructure/config"
	"anima-backend/infrastructure/di"
	"anima-backend/infrastructure/persistence/schema"
	"anima-backend/interfaces/http/rest"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer container.Close()

	// Development stacks get their table created on the fly
	if cfg.StorageDriver == config.DriverDynamoDB && !cfg.IsProduction() {
		awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
		if err != nil {
			container.Logger.Fatal("Failed to load AWS config", zap.Error(err))
		}
		if err := schema.EnsureTable(ctx, di.ProvideDynamoDBClient(awsCfg), cfg.DynamoDBTable, container.Logger); err != nil {
			container.Logger.Fatal("Failed to bootstrap table", zap.Error(err))
		}
	}

	// The entity must exist before anything can vote on it
	if _, err := container.Lifecycle.EnsureSeeded(ctx); err != nil {
		container.Logger.Fatal("Failed to seed first life", zap.Error(err))
	}

	// Background jobs: the verdict loop and the respawn watcher
	container.Democracy.Start(ctx)
	container.Respawn.Start(ctx)

	handler := rest.NewRouter(container).Setup()

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("storageDriver", cfg.StorageDriver),
			zap.String("votingMode", cfg.VotingMode),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("Shutting down server...")

	// Stop jobs first so no new transitions start mid-shutdown
	container.Democracy.Stop()
	container.Respawn.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}

	log.Println("Server stopped")
}
