package protocol

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepo struct {
	Repository
	err error
}

func (f failingRepo) List(context.Context, int, int) ([]*Protocol, int, error) {
	return nil, 0, f.err
}

func custom(name string) *Protocol {
	p := Default()
	p.ID = uuid.Nil
	p.Name = name
	p.ChlorideThreshold = 118
	return p
}

func TestCatalog_ResolvesBuiltinsWithoutRefresh(t *testing.T) {
	c := NewCatalog(failingRepo{err: errors.New("down")}, "", zerolog.Nop())

	p, err := c.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, p.Name)

	p, err = c.Resolve(ConservativeName)
	require.NoError(t, err)
	assert.Equal(t, CalciumRanged, p.CalciumPolicy)

	_, err = c.Resolve("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{DefaultName, ConservativeName}, c.Names())
}

func TestCatalog_ResolveReturnsCopy(t *testing.T) {
	c := NewCatalog(NewMemoryRepo(), "", zerolog.Nop())
	p, err := c.Resolve("")
	require.NoError(t, err)
	p.PotassiumTiers[0].SafeLimit = 42
	p.ChlorideThreshold = 1

	again, _ := c.Resolve("")
	assert.Equal(t, 0.5, again.PotassiumTiers[0].SafeLimit)
	assert.Equal(t, 120.0, again.ChlorideThreshold)
}

func TestCatalog_RefreshAddsStoredProtocols(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Create(ctx, custom("clinic-icu")))

	c := NewCatalog(repo, "", zerolog.Nop())
	require.NoError(t, c.Refresh(ctx))

	p, err := c.Resolve("clinic-icu")
	require.NoError(t, err)
	assert.Equal(t, 118.0, p.ChlorideThreshold)
}

func TestCatalog_RefreshPagesThroughRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	for i := 0; i < refreshPageSize+5; i++ {
		require.NoError(t, repo.Create(ctx, custom(uuid.NewString()[:8]+"-p")))
	}
	c := NewCatalog(repo, "", zerolog.Nop())
	require.NoError(t, c.Refresh(ctx))
	assert.Len(t, c.Names(), refreshPageSize+5+2)
}

func TestCatalog_RefreshSkipsInactiveAndInvalid(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	inactive := custom("retired")
	inactive.Active = false
	require.NoError(t, repo.Create(ctx, inactive))

	broken := custom("broken")
	broken.ChlorideThreshold = 0
	require.NoError(t, repo.Create(ctx, broken))

	c := NewCatalog(repo, "", zerolog.Nop())
	require.NoError(t, c.Refresh(ctx))

	_, err := c.Resolve("retired")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Resolve("broken")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_StoredOverridesBuiltin(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	override := custom(ConservativeName)
	override.ChlorideThreshold = 112
	require.NoError(t, repo.Create(ctx, override))

	c := NewCatalog(repo, "", zerolog.Nop())
	require.NoError(t, c.Refresh(ctx))
	p, err := c.Resolve(ConservativeName)
	require.NoError(t, err)
	assert.Equal(t, 112.0, p.ChlorideThreshold)
}

func TestCatalog_RefreshErrorKeepsIndex(t *testing.T) {
	c := NewCatalog(failingRepo{err: errors.New("connection refused")}, "", zerolog.Nop())
	err := c.Refresh(context.Background())
	assert.ErrorContains(t, err, "connection refused")

	_, err = c.Resolve("")
	assert.NoError(t, err)
}

func TestCatalog_RefreshRequiresDefault(t *testing.T) {
	c := NewCatalog(NewMemoryRepo(), "clinic-icu", zerolog.Nop())
	assert.Equal(t, "clinic-icu", c.DefaultName())
	assert.ErrorContains(t, c.Refresh(context.Background()), `default protocol "clinic-icu"`)
}

func TestCatalog_StartRefresh(t *testing.T) {
	c := NewCatalog(NewMemoryRepo(), "", zerolog.Nop())
	assert.Error(t, c.StartRefresh(context.Background(), "not a schedule"))

	require.NoError(t, c.StartRefresh(context.Background(), "@every 1h"))
	c.Stop()
	c.Stop()
}
