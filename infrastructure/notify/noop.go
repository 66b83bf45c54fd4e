package notify

import (
	"context"

	"anima-backend/application/ports"

	"go.uber.org/zap"
)

// LoggingNotifier is the development RuntimeNotifier: notifications land in
// the log and always succeed.
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier creates a logging notifier
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

// NotifyRebirth logs the rebirth parameters
func (n *LoggingNotifier) NotifyRebirth(ctx context.Context, params ports.RebirthParams) error {
	n.logger.Info("Rebirth notification (logging only)",
		zap.Int("lifeNumber", params.LifeNumber),
		zap.String("state", params.State),
		zap.Int("memoryCount", params.MemoryCount),
		zap.String("memoryEmotion", params.MemoryEmotion),
	)
	return nil
}

// RequestRestart logs the restart request
func (n *LoggingNotifier) RequestRestart(ctx context.Context, reason string) error {
	n.logger.Info("Runtime restart requested (logging only)", zap.String("reason", reason))
	return nil
}

// LoggingIntentionCloser is the development IntentionCloser
type LoggingIntentionCloser struct {
	logger *zap.Logger
}

// NewLoggingIntentionCloser creates a logging intention closer
func NewLoggingIntentionCloser(logger *zap.Logger) ports.IntentionCloser {
	return &LoggingIntentionCloser{logger: logger}
}

// CloseActive logs the close
func (c *LoggingIntentionCloser) CloseActive(ctx context.Context, outcome string) error {
	c.logger.Info("Intention closed (logging only)", zap.String("outcome", outcome))
	return nil
}
