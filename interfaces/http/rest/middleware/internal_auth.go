package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"anima-backend/pkg/auth"
	"anima-backend/pkg/common"

	"go.uber.org/zap"
)

type contextKey string

const operatorIDKey contextKey = "operatorID"

// InternalAuth guards the privileged routes. A request passes with the
// shared internal secret, or with a valid operator bearer token; operator
// identity is stashed in the context so handlers can require it for the
// manual death cause. An empty secret leaves the routes open, which the
// container already warned about outside production.
func InternalAuth(secret string, validator *auth.OperatorValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if header := r.Header.Get("X-Internal-Secret"); secret != "" && header != "" {
				if subtle.ConstantTimeCompare([]byte(header), []byte(secret)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
				logger.Warn("Rejected internal request with bad secret",
					zap.String("path", r.URL.Path))
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid internal secret")
				return
			}

			if token := bearerToken(r); token != "" && validator != nil {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					logger.Warn("Rejected operator token",
						zap.String("path", r.URL.Path), zap.Error(err))
					common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid operator token")
					return
				}
				ctx := context.WithValue(r.Context(), operatorIDKey, claims.OperatorID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		})
	}
}

// OperatorID returns the authenticated operator's ID, or empty when the
// request authenticated with the shared secret only.
func OperatorID(ctx context.Context) string {
	id, _ := ctx.Value(operatorIDKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
