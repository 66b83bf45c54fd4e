package main

import (
	"context"
	"log"
	"time"

	"anima-backend/infrastructure/config"
	"anima-backend/infrastructure/di"

	"go.uber.org/zap"
)

// One-shot democracy pass for out-of-process scheduling (cron, EventBridge
// Scheduler). Shares the whole container with the API server, so the verdict
// path is identical to the in-process ticker.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
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

	outcome, err := container.Democracy.CheckOnce(ctx, time.Now())
	if err != nil {
		container.Logger.Fatal("Democracy check failed", zap.Error(err))
	}

	container.Logger.Info("Democracy check complete",
		zap.Bool("skipped", outcome.Skipped),
		zap.Bool("roundClosed", outcome.RoundClosed),
		zap.String("verdict", outcome.Verdict),
		zap.Int("live", outcome.Live),
		zap.Int("die", outcome.Die),
		zap.Bool("killed", outcome.Killed),
	)
}
