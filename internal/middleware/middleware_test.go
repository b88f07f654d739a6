package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cashback-platform/internal/services"

	"github.com/rs/zerolog"
)

type validatorMock struct {
	ValidateTokenFunc func(tokenString string) (*services.Claims, error)
}

func (m *validatorMock) ValidateToken(tokenString string) (*services.Claims, error) {
	return m.ValidateTokenFunc(tokenString)
}

func TestAuthentication(t *testing.T) {
	storeID := 7
	validator := &validatorMock{
		ValidateTokenFunc: func(tokenString string) (*services.Claims, error) {
			if tokenString != "good" {
				return nil, errors.New("token is expired")
			}
			return &services.Claims{UserID: 70, Email: "loja@example.com", Role: "store", StoreID: &storeID}, nil
		},
	}

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"Given no header Then 401", "", http.StatusUnauthorized},
		{"Given a non bearer scheme Then 401", "Basic abc", http.StatusUnauthorized},
		{"Given an invalid token Then 401", "Bearer bad", http.StatusUnauthorized},
		{"Given a valid token Then the identity reaches the handler", "Bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *AuthContext
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = GetAuthContext(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/store/balance-payments", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Authentication(validator, zerolog.Nop())(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if got == nil || got.UserID != 70 || got.UserType != "store" || got.StoreID == nil || *got.StoreID != 7 {
				t.Errorf("auth context = %+v", got)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		auth     *AuthContext
		wantCode int
	}{
		{"Given no identity Then 403", nil, http.StatusForbidden},
		{"Given a client on an admin route Then 403", &AuthContext{UserID: 1, UserType: "client"}, http.StatusForbidden},
		{"Given an admin Then the request passes", &AuthContext{UserID: 2, UserType: "admin"}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reserve", nil)
			if tt.auth != nil {
				req = req.WithContext(WithAuthContext(req.Context(), tt.auth))
			}
			rec := httptest.NewRecorder()

			RequireRole("admin")(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantCode    int
	}{
		{"Given a JSON body Then it passes", http.MethodPost, "application/json", `{}`, http.StatusOK},
		{"Given a multipart body Then it passes", http.MethodPost, "multipart/form-data; boundary=x", "--x--", http.StatusOK},
		{"Given a form body Then it passes", http.MethodPut, "application/x-www-form-urlencoded", "status=aprovado", http.StatusOK},
		{"Given a plain text body Then 400", http.MethodPost, "text/plain", "hello", http.StatusBadRequest},
		{"Given an empty POST Then it passes", http.MethodPost, "", "", http.StatusOK},
		{"Given a GET Then the body type is not checked", http.MethodGet, "text/plain", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/api/v1/admin/balance-payments", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()

			RequestValidation()(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestRequestLoggingPropagatesRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()

	RequestLogging(zerolog.Nop())(next).ServeHTTP(rec, req)

	if seen != "req-42" {
		t.Errorf("request id in context = %q, want req-42", seen)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID header = %q, want req-42", got)
	}
}

func TestPerformanceMonitoringSetsResponseTime(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	rec := httptest.NewRecorder()
	PerformanceMonitoring(zerolog.Nop())(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Header().Get("X-Response-Time") == "" {
		t.Error("X-Response-Time header not set")
	}
}

func TestErrorHandlingRecoversPanics(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	ErrorHandling(zerolog.Nop())(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
