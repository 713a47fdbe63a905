package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	tg := NewTokenGenerator("test-secret-key-that-is-long-enough", time.Minute)
	operator, err := tg.GenerateAccessToken("ops", []string{RoleOperator})
	require.NoError(t, err)
	viewer, err := tg.GenerateAccessToken("viewer", []string{"viewer"})
	require.NoError(t, err)

	var gotSubject string
	handler := RequireRole(tg, RoleOperator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = ClaimsFromContext(r.Context()).Name
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"missing role", "Bearer " + viewer, http.StatusForbidden},
		{"operator", "Bearer " + operator, http.StatusOK},
		{"lowercase scheme", "bearer " + operator, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSubject = ""
			req := httptest.NewRequest(http.MethodPost, "/api/execute", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "ops", gotSubject)
			} else {
				assert.Empty(t, gotSubject)
				assert.Contains(t, w.Body.String(), `"success":false`)
			}
		})
	}
}

func TestClaimsFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, ClaimsFromContext(req.Context()))
}
