package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Failed gate attempts allowed per client IP per window.
const (
	gateFailureLimit  = 10
	gateFailureWindow = time.Minute
)

// GateConfig configures the shared household basic-auth gate.
type GateConfig struct {
	User         string
	PasswordHash string
	// Open lists exact paths served without credentials.
	Open []string
}

// Gate returns middleware requiring HTTP Basic credentials that match the
// configured user and bcrypt hash. With no user or hash configured it passes
// every request through. Failed attempts count against the client IP in
// limiter; once over the limit further attempts get 429 until the window
// ends.
func Gate(cfg GateConfig, limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(cfg.Open))
	for _, p := range cfg.Open {
		open[p] = true
	}
	enabled := cfg.User != "" && cfg.PasswordHash != ""

	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ip := RealIP(r)
			key := "gate:" + ip
			if limiter.Exceeded(key, gateFailureLimit) {
				tooManyRequests(w, limiter.RetryAfter(key))
				return
			}

			user, pass, ok := r.BasicAuth()
			if ok && checkCredentials(cfg, user, pass) {
				next.ServeHTTP(w, r)
				return
			}

			if ok {
				limiter.Allow(key, gateFailureLimit, gateFailureWindow)
				logger.Warn("gate login failed", "remote", ip, "user", user)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="splitcart", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
		})
	}
}

func checkCredentials(cfg GateConfig, user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.User)) == 1
	// bcrypt runs even when the user does not match.
	passOK := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(pass)) == nil
	return userOK && passOK
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
