package protocol

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const refreshPageSize = 100

// Catalog is the read path used by the compute engine: an in-memory
// name-to-protocol index rebuilt from the repository. Built-in protocols are
// always resolvable, even when the repository is unreachable.
type Catalog struct {
	repo        Repository
	logger      zerolog.Logger
	defaultName string

	mu     sync.RWMutex
	byName map[string]*Protocol
	cron   *cron.Cron
}

func NewCatalog(repo Repository, defaultName string, logger zerolog.Logger) *Catalog {
	if defaultName == "" {
		defaultName = DefaultName
	}
	c := &Catalog{repo: repo, logger: logger, defaultName: defaultName}
	c.byName = builtinIndex()
	return c
}

func builtinIndex() map[string]*Protocol {
	idx := make(map[string]*Protocol)
	for _, p := range Builtins() {
		idx[p.Name] = p
	}
	return idx
}

// Resolve returns the named protocol, or the catalog default for "".
// The returned value is a copy and safe to hand to the engine.
func (c *Catalog) Resolve(name string) (*Protocol, error) {
	if name == "" {
		name = c.defaultName
	}
	c.mu.RLock()
	p, ok := c.byName[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	cp := *p
	cp.PotassiumTiers = append([]PotassiumTier(nil), p.PotassiumTiers...)
	return &cp, nil
}

// DefaultName returns the protocol used when a request names none.
func (c *Catalog) DefaultName() string { return c.defaultName }

// Names lists every resolvable protocol name in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Refresh rebuilds the index from the repository. Stored protocols override
// built-ins of the same name; inactive or invalid ones are skipped. On error
// the previous index is kept.
func (c *Catalog) Refresh(ctx context.Context) error {
	idx := builtinIndex()
	offset := 0
	for {
		items, total, err := c.repo.List(ctx, refreshPageSize, offset)
		if err != nil {
			return fmt.Errorf("list protocols: %w", err)
		}
		for _, p := range items {
			if !p.Active {
				delete(idx, p.Name)
				continue
			}
			if err := p.Validate(); err != nil {
				c.logger.Warn().Err(err).Str("protocol", p.Name).Msg("skipping invalid protocol")
				continue
			}
			idx[p.Name] = p
		}
		offset += len(items)
		if len(items) == 0 || offset >= total {
			break
		}
	}
	if _, ok := idx[c.defaultName]; !ok {
		return fmt.Errorf("default protocol %q is not available", c.defaultName)
	}

	c.mu.Lock()
	c.byName = idx
	c.mu.Unlock()
	c.logger.Debug().Int("protocols", len(idx)).Msg("protocol catalog refreshed")
	return nil
}

// StartRefresh schedules Refresh on a cron spec such as "@every 5m".
func (c *Catalog) StartRefresh(ctx context.Context, spec string) error {
	sched := cron.New()
	if _, err := sched.AddFunc(spec, func() {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Error().Err(err).Msg("protocol catalog refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("register protocol refresh %q: %w", spec, err)
	}
	sched.Start()
	c.mu.Lock()
	c.cron = sched
	c.mu.Unlock()
	c.logger.Info().Str("schedule", spec).Msg("protocol refresh scheduled")
	return nil
}

// Stop halts scheduled refreshes and waits for a running one to finish.
func (c *Catalog) Stop() {
	c.mu.Lock()
	sched := c.cron
	c.cron = nil
	c.mu.Unlock()
	if sched != nil {
		<-sched.Stop().Done()
	}
}
