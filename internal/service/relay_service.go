package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/telhawk-systems/userrelay/internal/models"
	"github.com/telhawk-systems/userrelay/internal/relay"
	"github.com/telhawk-systems/userrelay/internal/repository"
	"github.com/telhawk-systems/userrelay/internal/secret"
)

var ErrHistoryDisabled = errors.New("run history is not enabled")

// RunHistory serves recently recorded runs.
type RunHistory interface {
	Recent(ctx context.Context, limit int) (*models.RunList, error)
	Ping(ctx context.Context) error
}

type RelayService struct {
	pipeline *relay.Pipeline
	source   relay.Source
	sink     relay.Sink
	repo     repository.Repository
	history  RunHistory
}

type Option func(*RelayService)

// WithHistory enables RecentRuns. Without it RecentRuns returns
// ErrHistoryDisabled.
func WithHistory(h RunHistory) Option {
	return func(s *RelayService) { s.history = h }
}

func NewRelayService(pipeline *relay.Pipeline, source relay.Source, sink relay.Sink, repo repository.Repository, opts ...Option) *RelayService {
	s := &RelayService{
		pipeline: pipeline,
		source:   source,
		sink:     sink,
		repo:     repo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute fetches, opens and forwards one envelope. A non-empty key
// replaces the key carried by the envelope.
func (s *RelayService) Execute(ctx context.Context, key secret.String) relay.Result {
	var opts []relay.RunOption
	if !key.IsZero() {
		opts = append(opts, relay.WithKey(key))
	}
	return s.pipeline.Run(ctx, s.source, s.sink, opts...)
}

func (s *RelayService) Clear(ctx context.Context) relay.Result {
	return s.pipeline.Clear(ctx, s.sink)
}

// ListUsers returns one page of users. Pages past the end, including ones
// whose offset would not fit in an int, come back empty.
func (s *RelayService) ListUsers(ctx context.Context, page, limit int) (*models.UserList, error) {
	users, total, err := s.repo.ListUsers(ctx, limit, pageOffset(page, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return &models.UserList{
		Users: users,
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}

func pageOffset(page, limit int) int {
	if page <= 1 || limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

func (s *RelayService) RecentRuns(ctx context.Context, limit int) (*models.RunList, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Recent(ctx, limit)
}

// Ready checks the user store and, when enabled, the history cluster.
func (s *RelayService) Ready(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("user store: %w", err)
	}
	if s.history != nil {
		if err := s.history.Ping(ctx); err != nil {
			return fmt.Errorf("run history: %w", err)
		}
	}
	return nil
}
