package protocol

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// breakerRepo guards a database-backed repository with a circuit breaker so
// a failing database degrades to the built-in tables instead of stalling
// every compute request.
type breakerRepo struct {
	next Repository
	cb   *gobreaker.CircuitBreaker
}

// BreakerSettings configures NewBreakerRepo.
type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func NewBreakerRepo(next Repository, s BreakerSettings, logger zerolog.Logger) Repository {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.Name == "" {
		s.Name = "protocol-store"
	}
	threshold := s.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return &breakerRepo{next: next, cb: cb}
}

func (b *breakerRepo) one(fn func() (*Protocol, error)) (*Protocol, error) {
	res, err := b.cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return nil, err
	}
	return res.(*Protocol), nil
}

func (b *breakerRepo) exec(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) { return nil, fn() })
	return err
}

func (b *breakerRepo) Create(ctx context.Context, p *Protocol) error {
	return b.exec(func() error { return b.next.Create(ctx, p) })
}

func (b *breakerRepo) GetByID(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	return b.one(func() (*Protocol, error) { return b.next.GetByID(ctx, id) })
}

func (b *breakerRepo) GetByName(ctx context.Context, name string) (*Protocol, error) {
	return b.one(func() (*Protocol, error) { return b.next.GetByName(ctx, name) })
}

func (b *breakerRepo) Update(ctx context.Context, p *Protocol) error {
	return b.exec(func() error { return b.next.Update(ctx, p) })
}

func (b *breakerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return b.exec(func() error { return b.next.Delete(ctx, id) })
}

type listResult struct {
	items []*Protocol
	total int
}

func (b *breakerRepo) List(ctx context.Context, limit, offset int) ([]*Protocol, int, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		items, total, err := b.next.List(ctx, limit, offset)
		return listResult{items: items, total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	lr := res.(listResult)
	return lr.items, lr.total, nil
}
