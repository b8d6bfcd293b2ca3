package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TxRunner runs fn inside a transaction when the store supports one.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func noTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type Service struct {
	repo    Repository
	catalog *Catalog
	inTx    TxRunner
	logger  zerolog.Logger
}

func NewService(repo Repository, catalog *Catalog, inTx TxRunner, logger zerolog.Logger) *Service {
	if inTx == nil {
		inTx = noTx
	}
	return &Service{repo: repo, catalog: catalog, inTx: inTx, logger: logger}
}

func (s *Service) Catalog() *Catalog { return s.catalog }

func (s *Service) CreateProtocol(ctx context.Context, p *Protocol) error {
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.checkNameFree(ctx, p); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.refresh(ctx)
	return nil
}

func (s *Service) GetProtocol(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProtocol replaces a stored protocol. The default protocol keeps its
// name and stays active so the catalog can always resolve it.
func (s *Service) UpdateProtocol(ctx context.Context, p *Protocol) error {
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing.Name == s.catalog.DefaultName() {
		if p.Name != existing.Name {
			return fmt.Errorf("%w: cannot rename the default protocol %q", ErrConflict, existing.Name)
		}
		if !p.Active {
			return fmt.Errorf("%w: cannot deactivate the default protocol %q", ErrConflict, existing.Name)
		}
	}
	if p.Name != existing.Name {
		if err := s.checkNameFree(ctx, p); err != nil {
			return err
		}
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.refresh(ctx)
	return nil
}

func (s *Service) DeleteProtocol(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Name == s.catalog.DefaultName() {
		return fmt.Errorf("%w: cannot delete the default protocol %q", ErrConflict, p.Name)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.refresh(ctx)
	return nil
}

func (s *Service) checkNameFree(ctx context.Context, p *Protocol) error {
	_, err := s.repo.GetByName(ctx, p.Name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: protocol %q already exists", ErrConflict, p.Name)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) ListProtocols(ctx context.Context, limit, offset int) ([]*Protocol, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Seed stores the built-in protocols plus any extra ones (e.g. loaded from a
// protocols file) that the repository does not already hold by name, then
// refreshes the catalog. It returns the number of protocols inserted.
func (s *Service) Seed(ctx context.Context, extra []*Protocol) (int, error) {
	candidates := append(Builtins(), extra...)
	inserted := 0
	err := s.inTx(ctx, func(ctx context.Context) error {
		for _, p := range candidates {
			_, err := s.repo.GetByName(ctx, p.Name)
			if err == nil {
				continue
			}
			if !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("lookup %s: %w", p.Name, err)
			}
			if err := s.repo.Create(ctx, p); err != nil {
				return fmt.Errorf("seed %s: %w", p.Name, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := s.catalog.Refresh(ctx); err != nil {
		return inserted, err
	}
	s.logger.Info().Int("inserted", inserted).Msg("dosing protocols seeded")
	return inserted, nil
}

func (s *Service) refresh(ctx context.Context) {
	if err := s.catalog.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("protocol catalog refresh failed")
	}
}
