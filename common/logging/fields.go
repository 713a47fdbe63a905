package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across the relay.
const (
	FieldService   = "service"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldStage     = "stage"
	FieldKind      = "kind"
	FieldRecords   = "records"
	FieldBytes     = "bytes"
	FieldIP        = "ip"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Operation returns a slog attribute for the relay operation (execute, clear).
func Operation(op string) slog.Attr {
	return slog.String(FieldOperation, op)
}

// Stage returns a slog attribute for a pipeline stage.
func Stage(stage string) slog.Attr {
	return slog.String(FieldStage, stage)
}

// Kind returns a slog attribute for an error kind.
func Kind(kind string) slog.Attr {
	return slog.String(FieldKind, kind)
}

// Records returns a slog attribute for a record count.
func Records(n int) slog.Attr {
	return slog.Int(FieldRecords, n)
}

// Bytes returns a slog attribute for a byte count.
func Bytes(n int) slog.Attr {
	return slog.Int(FieldBytes, n)
}

// IP returns a slog attribute for the client IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}
