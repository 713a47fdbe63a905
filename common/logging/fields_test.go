package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal any
	}{
		{"service", Service("relay"), FieldService, "relay"},
		{"method", Method("POST"), FieldMethod, "POST"},
		{"path", Path("/api/execute"), FieldPath, "/api/execute"},
		{"status", Status(502), FieldStatus, int64(502)},
		{"duration", Duration(1500 * time.Millisecond), FieldDuration, int64(1500)},
		{"error", Error(errors.New("boom")), FieldError, "boom"},
		{"nil error", Error(nil), FieldError, ""},
		{"operation", Operation("execute"), FieldOperation, "execute"},
		{"stage", Stage("decrypt"), FieldStage, "decrypt"},
		{"kind", Kind("forward_error"), FieldKind, "forward_error"},
		{"records", Records(3), FieldRecords, int64(3)},
		{"bytes", Bytes(128), FieldBytes, int64(128)},
		{"ip", IP("10.0.0.1"), FieldIP, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if got := tt.attr.Value.Any(); got != tt.wantVal {
				t.Errorf("value = %v (%T), want %v (%T)", got, got, tt.wantVal, tt.wantVal)
			}
		})
	}
}
