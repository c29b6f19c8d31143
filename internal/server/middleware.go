package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"goa.design/goa/v3/middleware"

	"jnsite/internal/config"
)

// securityHeaders adds security headers to responses
func securityHeaders(handler http.Handler, cfg *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// HSTS only when served over TLS outside debug
		if !cfg.App.Debug && r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		handler.ServeHTTP(w, r)
	})
}

// cors applies the configured origin policy. Only the public submit
// endpoint is meant to be called cross-origin, so credentials are not
// allowed.
func cors(handler http.Handler, cfg *config.Config) http.Handler {
	allowAny := len(cfg.CORS.AllowedOrigins) == 0 || cfg.CORS.AllowedOrigins[0] == "*"
	methods := strings.Join(cfg.CORS.AllowedMethods, ", ")
	headers := strings.Join(cfg.CORS.AllowedHeaders, ", ")
	maxAge := fmt.Sprintf("%d", cfg.CORS.MaxAge)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			handler.ServeHTTP(w, r)
			return
		}

		if !allowAny && !originAllowed(origin, cfg.CORS.AllowedOrigins) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			handler.ServeHTTP(w, r)
			return
		}

		if allowAny {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.Header().Set("Access-Control-Allow-Headers", headers)
		w.Header().Set("Access-Control-Expose-Headers", "Content-Type, X-Request-Id")
		w.Header().Set("Access-Control-Max-Age", maxAge)

		// Preflight
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		handler.ServeHTTP(w, r)
	})
}

func originAllowed(origin string, allowed []string) bool {
	for _, o := range allowed {
		if strings.EqualFold(origin, strings.TrimSpace(o)) {
			return true
		}
	}
	return false
}

// statusWriter wraps http.ResponseWriter to capture status code
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLogging logs all incoming requests and their responses
func requestLogging(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip health checks and scrapes to reduce noise
		if r.URL.Path == healthPath || r.URL.Path == metricsPath {
			handler.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		reqID, _ := r.Context().Value(middleware.RequestIDKey).(string)
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		log.Printf("[REQUEST] id=%s %s %s from %s", reqID, r.Method, r.URL.Path, r.RemoteAddr)

		handler.ServeHTTP(wrapped, r)

		statusText := "OK"
		if wrapped.statusCode >= 400 {
			statusText = "ERROR"
		}
		log.Printf("[RESPONSE] id=%s %s %s -> %d %s (%v)", reqID, r.Method, r.URL.Path, wrapped.statusCode, statusText, time.Since(start))
	})
}
