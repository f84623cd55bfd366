package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/Moeed-Tahir/perfect-connect/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// APIKeyHeader is the header carrying the API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth checks API keys against bcrypt hashes.
// Only hashes are held in memory; plaintext keys never reach the config.
type APIKeyAuth struct {
	hashes [][]byte
}

// NewAPIKeyAuth creates an authenticator. With no hashes every request passes.
func NewAPIKeyAuth(hashes []string) (*APIKeyAuth, error) {
	a := &APIKeyAuth{}
	for _, h := range hashes {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, &ConfigError{Field: "api_key_hashes", Err: err}
		}
		a.hashes = append(a.hashes, []byte(h))
	}
	return a, nil
}

// HashAPIKey returns the bcrypt hash to put into configuration for key.
func HashAPIKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Enabled reports whether keys are checked.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.hashes) > 0
}

// IsValid checks key against every configured hash.
func (a *APIKeyAuth) IsValid(key string) bool {
	if key == "" {
		return false
	}
	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return true
		}
	}
	return false
}

// Middleware rejects requests without a valid API key.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if key == "" {
			writeErrorBody(w, http.StatusUnauthorized, "missing_api_key", "API key is required")
			return
		}
		if !a.IsValid(key) {
			writeErrorBody(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ConfigError reports invalid server configuration.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "http: invalid " + e.Field + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING & METRICS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// requestLogger attaches a request-scoped logger and correlation ID to the
// context and logs one line per request. The correlation ID is the chi request ID.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		correlationID := chimiddleware.GetReqID(r.Context())
		if correlationID == "" {
			correlationID = logger.NewCorrelationID()
		}
		reqLogger := s.logger.With().Str(logger.CorrelationIDKey, correlationID).Logger()

		ctx := logger.WithCorrelationID(r.Context(), correlationID)
		ctx = logger.WithContext(ctx, s.logger)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := reqLogger.Debug()
		if status >= http.StatusInternalServerError {
			event = reqLogger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// metricsMiddleware records request counts by route pattern, so path
// parameters do not explode label cardinality.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.deps.Metrics.RecordHTTPRequest(route, r.Method, strconv.Itoa(status), time.Since(start))
	})
}
