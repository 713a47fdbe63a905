package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), "relay", Config{}, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_WithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "relay", Config{Enabled: true, SampleRatio: 1}, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestParseSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{"always_on", 0, "AlwaysOnSampler"},
		{"ALWAYS_OFF", 0, "AlwaysOffSampler"},
		{"traceidratio", 0.25, "TraceIDRatioBased{0.25}"},
		{"traceidratio", 2, "AlwaysOnSampler"},
		{"", 0.5, "ParentBased{root:TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, ParseSampler(tt.name, tt.ratio).Description(), tt.want)
		})
	}
}

func TestInstrumentClient(t *testing.T) {
	client := InstrumentClient(&http.Client{})
	_, ok := client.Transport.(*otelhttp.Transport)
	assert.True(t, ok)

	assert.NotNil(t, InstrumentClient(nil).Transport)
}

func TestHTTPMiddleware(t *testing.T) {
	h := HTTPMiddleware("relay")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/up", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
