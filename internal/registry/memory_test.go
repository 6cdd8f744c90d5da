package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktimacloud/report-engine/internal/template"
)

func sampleTemplate(name string) *template.Template {
	return &template.Template{
		Name: name,
		Sections: []template.TemplateSection{
			{ID: "s-1", Order: 0, Blocks: []template.ContentBlock{
				{Kind: template.BlockText, Content: "body"},
			}},
		},
		IsActive: true,
	}
}

func TestMemoryRegistrySaveAssignsID(t *testing.T) {
	reg := NewMemoryRegistry()

	id, err := reg.Save(context.Background(), sampleTemplate("survey"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	loaded, err := reg.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, loaded.ID)
	assert.Equal(t, "survey", loaded.Name)
	assert.False(t, loaded.CreatedAt.IsZero())
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestMemoryRegistryLoadNotFound(t *testing.T) {
	reg := NewMemoryRegistry()

	_, err := reg.Load(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRegistrySaveIsolatesCaller(t *testing.T) {
	reg := NewMemoryRegistry()
	tpl := sampleTemplate("survey")

	id, err := reg.Save(context.Background(), tpl)
	require.NoError(t, err)

	// Mutating the caller's copy must not leak into the store.
	tpl.Name = "mutated"
	tpl.Sections[0].Blocks[0].Content = "mutated"

	loaded, err := reg.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "survey", loaded.Name)
	assert.Equal(t, "body", loaded.Sections[0].Blocks[0].Content)

	// And mutating a loaded copy must not affect later loads.
	loaded.Name = "also mutated"
	again, err := reg.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "survey", again.Name)
}

func TestMemoryRegistrySaveExistingKeepsID(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	id, err := reg.Save(ctx, sampleTemplate("v1"))
	require.NoError(t, err)

	loaded, err := reg.Load(ctx, id)
	require.NoError(t, err)
	created := loaded.CreatedAt

	loaded.Name = "v2"
	id2, err := reg.Save(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	updated, err := reg.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Name)
	assert.Equal(t, created, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.Before(created))
}

func TestMemoryRegistryListFilters(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	_, err := reg.Save(ctx, sampleTemplate("Survey Report"))
	require.NoError(t, err)
	_, err = reg.Save(ctx, sampleTemplate("Valuation Report"))
	require.NoError(t, err)

	inactive := sampleTemplate("Old Report")
	inactive.IsActive = false
	_, err = reg.Save(ctx, inactive)
	require.NoError(t, err)

	all, err := reg.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := reg.List(ctx, Filter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	matched, err := reg.List(ctx, Filter{NameContains: "valuation"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Valuation Report", matched[0].Name)
}

func TestMemoryRegistryListOrdersByUpdatedAt(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	first := sampleTemplate("first")
	first.ID = "id-first"
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	_, err := reg.Save(ctx, first)
	require.NoError(t, err)

	second := sampleTemplate("second")
	second.ID = "id-second"
	_, err = reg.Save(ctx, second)
	require.NoError(t, err)

	// Re-saving the first template bumps it to the top of the listing.
	loaded, err := reg.Load(ctx, "id-first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = reg.Save(ctx, loaded)
	require.NoError(t, err)

	summaries, err := reg.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "id-first", summaries[0].ID)
	assert.Equal(t, "id-second", summaries[1].ID)
}
