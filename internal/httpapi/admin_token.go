package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// GenerateAdminToken returns a fresh random token and its bcrypt hash, for
// callers (internal/app) that need to auto-provision one when the operator
// hasn't set one.
func GenerateAdminToken() (token string, hash []byte, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, err
	}
	token = hex.EncodeToString(raw)
	hash, err = bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return token, hash, err
}

// HashAdminToken bcrypt-hashes an operator-supplied token for comparison at
// request time; the plaintext itself is never retained.
func HashAdminToken(token string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
}

// adminAuthMiddleware guards /get_stats and /health (spec_full DOMAIN STACK)
// with a bearer token checked against a bcrypt hash.
func adminAuthMiddleware(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				slog.Warn("admin auth: missing token", slog.String("path", r.URL.Path))
				writeError(w, errUnauthorized("missing admin token"))
				return
			}
			provided := strings.TrimPrefix(auth, "Bearer ")
			if bcrypt.CompareHashAndPassword(hash, []byte(provided)) != nil {
				slog.Warn("admin auth: invalid token", slog.String("path", r.URL.Path))
				writeError(w, errUnauthorized("invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
