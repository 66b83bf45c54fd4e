package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Fingerprint derives the opaque per-voter identity from a request. The hash
// covers the client IP and user agent so the stored value cannot be reversed
// into a network origin; handlers never persist the raw inputs.
func Fingerprint(r *http.Request) string {
	sum := sha256.Sum256([]byte(ClientIP(r) + "|" + r.UserAgent()))
	return hex.EncodeToString(sum[:])
}

// ClientIP extracts the client IP address, honoring proxy headers
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	// Check X-Real-IP header
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
