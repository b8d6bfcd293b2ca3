package protocol

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no protocol matches the lookup.
var ErrNotFound = errors.New("protocol not found")

// ErrConflict is returned when a write clashes with an existing protocol or
// would remove the default protocol from the catalog.
var ErrConflict = errors.New("protocol conflict")

type Repository interface {
	Create(ctx context.Context, p *Protocol) error
	GetByID(ctx context.Context, id uuid.UUID) (*Protocol, error)
	GetByName(ctx context.Context, name string) (*Protocol, error)
	Update(ctx context.Context, p *Protocol) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Protocol, int, error)
}
