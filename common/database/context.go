package database

import (
	"context"
	"time"
)

// Standard timeout durations for database operations
const (
	// DefaultQueryTimeout is the timeout for read queries
	DefaultQueryTimeout = 5 * time.Second

	// DefaultPingTimeout bounds readiness checks
	DefaultPingTimeout = 2 * time.Second

	// DefaultMigrateTimeout is the timeout for schema migrations at startup
	DefaultMigrateTimeout = 30 * time.Second
)

// QueryContext creates a context with DefaultQueryTimeout.
// Use this for SELECT queries and read operations.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultQueryTimeout)
}

// PingContext creates a context with DefaultPingTimeout.
func PingContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultPingTimeout)
}

// MigrateContext creates a context with DefaultMigrateTimeout.
func MigrateContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultMigrateTimeout)
}
