package protocol

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepo backs the catalog when no database is configured.
type memoryRepo struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*Protocol
}

func NewMemoryRepo() Repository {
	return &memoryRepo{data: make(map[uuid.UUID]*Protocol)}
}

func (m *memoryRepo) Create(_ context.Context, p *Protocol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data {
		if existing.Name == p.Name {
			return fmt.Errorf("%w: protocol %q already exists", ErrConflict, p.Name)
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	m.data[p.ID] = &cp
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Protocol, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryRepo) GetByName(_ context.Context, name string) (*Protocol, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.data {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) Update(_ context.Context, p *Protocol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.data[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	m.data[p.ID] = &cp
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *memoryRepo) List(_ context.Context, limit, offset int) ([]*Protocol, int, error) {
	m.mu.RLock()
	all := make([]*Protocol, 0, len(m.data))
	for _, p := range m.data {
		cp := *p
		all = append(all, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
