package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/telhawk-systems/userrelay/internal/models"
)

// InMemoryRepository serves a fixed user list. Used when no database is
// configured and in tests.
type InMemoryRepository struct {
	users []*models.User
	mu    sync.RWMutex
}

func NewInMemoryRepository(users ...*models.User) *InMemoryRepository {
	sorted := append([]*models.User(nil), users...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &InMemoryRepository{users: sorted}
}

func (r *InMemoryRepository) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.users)
	if offset < 0 || offset >= total || limit <= 0 {
		return []*models.User{}, total, nil
	}
	end := offset + limit
	if end > total || end < offset {
		end = total
	}

	page := make([]*models.User, end-offset)
	copy(page, r.users[offset:end])
	return page, total, nil
}

func (r *InMemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *InMemoryRepository) Close() {}
