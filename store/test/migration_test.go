package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openparl/hansardsearch/internal/profile"
	"github.com/openparl/hansardsearch/store"
)

func TestMigrationOperations(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, profile.BackendLegacy)

	mustCreateDocument(t, ts, 1, 4)
	mustCreateDocument(t, ts, 2, 3)

	legacyCount, err := ts.CountPassages(ctx, profile.BackendLegacy)
	require.NoError(t, err)
	require.EqualValues(t, 7, legacyCount)

	normalizedCount, err := ts.CountPassages(ctx, profile.BackendNormalized)
	require.NoError(t, err)
	require.Zero(t, normalizedCount)

	// Traverse in batches the way the migration engine does.
	migrated := 0
	for offset := 0; ; offset += 3 {
		batch, err := ts.ListLegacyPassages(ctx, offset, 3)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		inserted, err := ts.InsertNormalizedPassages(ctx, batch)
		require.NoError(t, err)
		require.Equal(t, len(batch), inserted)
		migrated += inserted
	}
	require.Equal(t, 7, migrated)

	normalizedCount, err = ts.CountPassages(ctx, profile.BackendNormalized)
	require.NoError(t, err)
	require.EqualValues(t, 7, normalizedCount)
}

func TestInsertNormalizedPassagesIdempotent(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, profile.BackendLegacy)

	mustCreateDocument(t, ts, 1, 3)

	batch, err := ts.ListLegacyPassages(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	inserted, err := ts.InsertNormalizedPassages(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 3, inserted)

	// Re-running the same batch inserts nothing and fails nothing.
	inserted, err = ts.InsertNormalizedPassages(ctx, batch)
	require.NoError(t, err)
	require.Zero(t, inserted)

	count, err := ts.CountPassages(ctx, profile.BackendNormalized)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
}

func TestGetNormalizedPassageByUID(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, profile.BackendLegacy)

	mustCreateDocument(t, ts, 1, 2)

	batch, err := ts.ListLegacyPassages(ctx, 0, 10)
	require.NoError(t, err)
	_, err = ts.InsertNormalizedPassages(ctx, batch)
	require.NoError(t, err)

	got, err := ts.GetNormalizedPassageByUID(ctx, batch[1].UID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, batch[1].Content, got.Content)
	require.Equal(t, batch[1].ChunkIndex, got.ChunkIndex)
	require.Equal(t, batch[1].DocumentID, got.DocumentID)
	require.Equal(t, batch[1].Embedding, got.Embedding)

	missing, err := ts.GetNormalizedPassageByUID(ctx, "no-such-uid")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestListLegacyPassagesStableOrder(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, profile.BackendLegacy)

	mustCreateDocument(t, ts, 1, 5)

	first, err := ts.ListLegacyPassages(ctx, 0, 10)
	require.NoError(t, err)
	second, err := ts.ListLegacyPassages(ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, first, second)

	paged := []*store.Passage{}
	for offset := 0; offset < 5; offset += 2 {
		batch, err := ts.ListLegacyPassages(ctx, offset, 2)
		require.NoError(t, err)
		paged = append(paged, batch...)
	}
	require.Equal(t, first, paged)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, profile.BackendLegacy)

	// NewTestingStore already migrated; a second call must be a no-op.
	require.NoError(t, ts.Migrate(ctx))

	mustCreateDocument(t, ts, 1, 1)
	require.NoError(t, ts.Migrate(ctx))

	docs, err := ts.ListDocuments(ctx, &store.FindDocument{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}
