package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "cache", "skillmesh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleSnapshot() *skilltypes.RegistrySnapshot {
	return &skilltypes.RegistrySnapshot{
		Skills: []*skilltypes.Skill{
			{
				ID:          "deploy",
				Name:        "Deploy",
				Description: "Deploy a service",
				Source:      skilltypes.SourceRepository,
				Content:     "# Deploy\n\nSteps.",
				Parameters: []skilltypes.ParameterSchema{
					{Name: "service", Type: skilltypes.TypeString, Required: true},
				},
			},
		},
		Sources: []skilltypes.SourceDescriptor{
			{Type: skilltypes.SourceTypeGit, URL: "https://github.com/acme/skills", Priority: 1},
		},
		LastSync: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot()))

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Skills, 1)
	assert.Equal(t, "deploy", loaded.Skills[0].ID)
	require.Len(t, loaded.Skills[0].Parameters, 1)
	assert.True(t, loaded.Skills[0].Parameters[0].Required)
	require.Len(t, loaded.Sources, 1)
	assert.Equal(t, skilltypes.SourceTypeGit, loaded.Sources[0].Type)
}

func TestSaveSnapshotUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := sampleSnapshot()
	require.NoError(t, store.SaveSnapshot(ctx, first))

	second := sampleSnapshot()
	second.Skills[0].Description = "updated"
	require.NoError(t, store.SaveSnapshot(ctx, second))

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "updated", loaded.Skills[0].Description)
}

func TestLoadSnapshotEmpty(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestIsFresh(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fresh, err := store.IsFresh(ctx, time.Hour)
	require.NoError(t, err)
	assert.False(t, fresh, "no snapshot yet")

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot()))

	fresh, err = store.IsFresh(ctx, time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.IsFresh(ctx, time.Nanosecond)
	require.NoError(t, err)
	assert.False(t, fresh, "older than the allowed age")
}
