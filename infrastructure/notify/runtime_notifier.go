package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"anima-backend/application/ports"
	pkgerrors "anima-backend/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// HTTPRuntimeNotifier reaches the entity's runtime over HTTP. All calls go
// through a circuit breaker: when the runtime is down, the breaker fails
// fast instead of stacking timeouts inside the respawn sequence.
type HTTPRuntimeNotifier struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewHTTPRuntimeNotifier creates an HTTP runtime notifier
func NewHTTPRuntimeNotifier(baseURL string, logger *zap.Logger) *HTTPRuntimeNotifier {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "runtime-notifier",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Runtime notifier circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &HTTPRuntimeNotifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: breaker,
		logger:  logger,
	}
}

// NotifyRebirth informs the runtime of its new life parameters
func (n *HTTPRuntimeNotifier) NotifyRebirth(ctx context.Context, params ports.RebirthParams) error {
	return n.post(ctx, "/internal/rebirth", params)
}

// RequestRestart asks the runtime process to restart itself
func (n *HTTPRuntimeNotifier) RequestRestart(ctx context.Context, reason string) error {
	return n.post(ctx, "/internal/restart", map[string]string{"reason": reason})
}

func (n *HTTPRuntimeNotifier) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("runtime returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		return pkgerrors.ErrNotificationFailure.
			WithDetail("path", path).
			WithCause(err)
	}
	return nil
}

// HTTPIntentionCloser closes the in-flight intention record owned by the
// planning collaborator, over the same runtime surface.
type HTTPIntentionCloser struct {
	notifier *HTTPRuntimeNotifier
}

// NewHTTPIntentionCloser creates an HTTP intention closer sharing the
// notifier's client and breaker.
func NewHTTPIntentionCloser(notifier *HTTPRuntimeNotifier) ports.IntentionCloser {
	return &HTTPIntentionCloser{notifier: notifier}
}

// CloseActive marks the active intention finished with the given outcome
func (c *HTTPIntentionCloser) CloseActive(ctx context.Context, outcome string) error {
	return c.notifier.post(ctx, "/internal/intentions/close", map[string]string{"outcome": outcome})
}
