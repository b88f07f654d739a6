package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cashback-platform/internal/services"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	authContextKey contextKey = "auth_context"
	RequestIDKey   contextKey = "request_id"
)

// AuthContext is the caller identity resolved once per request from the
// bearer token.
type AuthContext struct {
	UserID   int
	UserType string
	Email    string
	StoreID  *int
}

func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.UserType == "admin"
}

type TokenValidator interface {
	ValidateToken(tokenString string) (*services.Claims, error)
}

type ErrorResponse struct {
	Status  bool   `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func CORS() func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID", "X-Response-Time"},
		MaxAge:         86400,
	})
	return c.Handler
}

func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			w.Header().Set("Content-Security-Policy", "default-src 'self'")
			next.ServeHTTP(w, r)
		})
	}
}

type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(r, b),
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.limiter.Allow() {
				respondWithError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequestLogging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = generateRequestID()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			r = r.WithContext(ctx)

			logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("Incoming request")

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Msg("Request completed")
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	start       time.Time
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	if !rw.start.IsZero() {
		rw.Header().Set("X-Response-Time", time.Since(rw.start).String())
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func generateRequestID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Authentication resolves the bearer token into an AuthContext.
func Authentication(validator TokenValidator, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "missing_authorization", "Authorization header is required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondWithError(w, http.StatusUnauthorized, "invalid_authorization", "Invalid authorization header format")
				return
			}

			claims, err := validator.ValidateToken(parts[1])
			if err != nil {
				logger.Warn().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("Invalid token")
				respondWithError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
				return
			}

			auth := &AuthContext{
				UserID:   claims.UserID,
				UserType: claims.Role,
				Email:    claims.Email,
				StoreID:  claims.StoreID,
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), auth)))
		})
	}
}

func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

func GetAuthContext(r *http.Request) (*AuthContext, bool) {
	auth, ok := r.Context().Value(authContextKey).(*AuthContext)
	return auth, ok && auth != nil
}

func RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := GetAuthContext(r)
			if !ok {
				respondWithError(w, http.StatusForbidden, "forbidden", "User role not found")
				return
			}

			allowed := false
			for _, role := range allowedRoles {
				if auth.UserType == role {
					allowed = true
					break
				}
			}

			if !allowed {
				respondWithError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

var allowedContentTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"multipart/form-data",
}

// RequestValidation rejects POST and PUT bodies the handlers cannot decode.
func RequestValidation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (r.Method == http.MethodPost || r.Method == http.MethodPut) && r.ContentLength != 0 {
				contentType := r.Header.Get("Content-Type")
				supported := false
				for _, ct := range allowedContentTypes {
					if strings.Contains(contentType, ct) {
						supported = true
						break
					}
				}
				if !supported {
					respondWithError(w, http.StatusBadRequest, "invalid_content_type", "Content-Type must be JSON, form or multipart")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ErrorHandling(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error().
						Interface("error", err).
						Str("request_id", GetRequestID(r.Context())).
						Str("path", r.URL.Path).
						Str("method", r.Method).
						Msg("Panic recovered")

					respondWithError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func PerformanceMonitoring(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK, start: start}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			if duration > 1*time.Second {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Dur("duration", duration).
					Int("status", wrapped.statusCode).
					Msg("Slow request detected")
			}
		})
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
