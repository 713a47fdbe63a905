package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name              string
		config            CORSConfig
		origin            string
		method            string
		expectedOrigin    string
		expectCredentials bool
		expectedMaxAge    string
		expectedStatus    int
		expectedBody      string
	}{
		{
			name: "exact origin match with credentials",
			config: CORSConfig{
				AllowedOrigins:   []string{"https://hw.example.com"},
				AllowedMethods:   []string{"GET", "POST"},
				AllowedHeaders:   []string{"Content-Type", "Authorization"},
				AllowCredentials: true,
				MaxAge:           600,
			},
			origin:            "https://hw.example.com",
			method:            http.MethodPost,
			expectedOrigin:    "https://hw.example.com",
			expectCredentials: true,
			expectedMaxAge:    "600",
			expectedStatus:    http.StatusOK,
			expectedBody:      "OK",
		},
		{
			name: "wildcard subdomain match",
			config: CORSConfig{
				AllowedOrigins: []string{"*.example.com"},
				AllowedMethods: []string{"GET"},
			},
			origin:         "https://api.example.com",
			method:         http.MethodGet,
			expectedOrigin: "https://api.example.com",
			expectedMaxAge: "300",
			expectedStatus: http.StatusOK,
			expectedBody:   "OK",
		},
		{
			name: "disallowed origin gets no credentials",
			config: CORSConfig{
				AllowedOrigins:   []string{"https://hw.example.com"},
				AllowedMethods:   []string{"GET"},
				AllowCredentials: true,
			},
			origin:         "https://evil.test",
			method:         http.MethodGet,
			expectedMaxAge: "300",
			expectedStatus: http.StatusOK,
			expectedBody:   "OK",
		},
		{
			name: "preflight short-circuits",
			config: CORSConfig{
				AllowedOrigins: []string{"http://localhost:3000"},
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			},
			origin:         "http://localhost:3000",
			method:         http.MethodOptions,
			expectedOrigin: "http://localhost:3000",
			expectedMaxAge: "300",
			expectedStatus: http.StatusNoContent,
			expectedBody:   "",
		},
		{
			name: "any origin",
			config: CORSConfig{
				AllowedOrigins: []string{"*"},
			},
			origin:         "https://whatever.test",
			method:         http.MethodGet,
			expectedOrigin: "https://whatever.test",
			expectedMaxAge: "300",
			expectedStatus: http.StatusOK,
			expectedBody:   "OK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://relay.test/api/execute", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			CORS(tt.config)(okHandler()).ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.expectedOrigin {
				t.Errorf("expected Access-Control-Allow-Origin %q, got %q", tt.expectedOrigin, got)
			}
			creds := w.Header().Get("Access-Control-Allow-Credentials") == "true"
			if creds != tt.expectCredentials {
				t.Errorf("expected credentials %v, got %v", tt.expectCredentials, creds)
			}
			if got := w.Header().Get("Access-Control-Max-Age"); got != tt.expectedMaxAge {
				t.Errorf("expected Access-Control-Max-Age %q, got %q", tt.expectedMaxAge, got)
			}
			if w.Header().Get("Vary") != "Origin" {
				t.Errorf("expected Vary: Origin, got %q", w.Header().Get("Vary"))
			}
			if w.Body.String() != tt.expectedBody {
				t.Errorf("expected body %q, got %q", tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestCORSConfig_OriginAllowed(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins: []string{"https://hw.example.com", "https://www.hw.example.com", "*.preview.test"},
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://hw.example.com", true},
		{"https://www.hw.example.com", true},
		{"https://pr-12.preview.test", true},
		{"https://preview.test", false},
		{"https://hw.example.com.evil.test", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := cfg.OriginAllowed(tt.origin); got != tt.want {
				t.Errorf("OriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
