package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse represents the API error response format
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Code      string                 `json:"code,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorHandler handles errors and sends appropriate HTTP responses
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		debug:  debug,
	}
}

// Handle processes an error and sends an HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	requestID := r.Header.Get("X-Request-ID")

	response := ErrorResponse{
		Error:     true,
		RequestID: requestID,
	}
	status := http.StatusInternalServerError

	if de := GetDomainError(err); de != nil {
		status = de.StatusCode
		response.Type = string(de.Type)
		response.Code = de.Code
		response.Message = de.Message
		response.Details = de.Details
		response.Retryable = de.Retryable

		if status >= 500 {
			h.logger.Error("Request failed",
				zap.String("code", de.Code),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		} else {
			h.logger.Debug("Request rejected",
				zap.String("code", de.Code),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		}
	} else {
		response.Type = string(DomainInfrastructureError)
		response.Message = "Internal server error"
		if h.debug {
			response.Message = err.Error()
		}
		h.logger.Error("Unhandled error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		h.logger.Error("Failed to encode error response", zap.Error(encodeErr))
	}
}
