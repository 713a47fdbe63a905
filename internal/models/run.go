package models

import (
	"time"

	"github.com/telhawk-systems/userrelay/internal/relay"
)

// RunRecord summarizes one relay run for events and history. It carries
// counts only, never payload data.
type RunRecord struct {
	ID         string    `json:"id" yaml:"id"`
	RequestID  string    `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Operation  string    `json:"operation" yaml:"operation"`
	Success    bool      `json:"success" yaml:"success"`
	Kind       string    `json:"kind,omitempty" yaml:"kind,omitempty"`
	Stage      string    `json:"stage,omitempty" yaml:"stage,omitempty"`
	Records    int       `json:"records" yaml:"records"`
	Bytes      int       `json:"bytes" yaml:"bytes"`
	DurationMS int64     `json:"duration_ms" yaml:"duration_ms"`
	Timestamp  time.Time `json:"@timestamp" yaml:"timestamp"`
}

// NewRunRecord copies the loggable fields of res.
func NewRunRecord(id, requestID string, res relay.Result, at time.Time) RunRecord {
	return RunRecord{
		ID:         id,
		RequestID:  requestID,
		Operation:  string(res.Operation),
		Success:    res.Success,
		Kind:       string(res.Kind),
		Stage:      string(res.Stage),
		Records:    res.Records,
		Bytes:      res.Bytes,
		DurationMS: res.Duration.Milliseconds(),
		Timestamp:  at.UTC(),
	}
}

// RunList is the response body of GET /api/runs.
type RunList struct {
	Runs  []RunRecord `json:"runs" yaml:"runs"`
	Total int         `json:"total" yaml:"total"`
}
