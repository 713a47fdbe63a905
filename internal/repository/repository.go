package repository

import (
	"context"

	"github.com/telhawk-systems/userrelay/internal/models"
)

// Repository reads the users table.
type Repository interface {
	// ListUsers returns one page ordered by id and the total row count.
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	Ping(ctx context.Context) error
	Close()
}
