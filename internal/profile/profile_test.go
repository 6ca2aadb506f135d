package profile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	p := New()
	p.DSN = ":memory:"
	require.NoError(t, p.Validate())
	require.Equal(t, "dev", p.Mode)
	require.Equal(t, "sqlite", p.Driver)
	require.Equal(t, BackendLegacy, p.Backend)
	require.Equal(t, 768, p.EmbeddingDim)
	require.Equal(t, 500, p.ChunkSize)
	require.Equal(t, 50, p.ChunkOverlap)
	require.Equal(t, 100, p.MaxSearchLimit)
}

func TestValidateKeepsZeroOverlap(t *testing.T) {
	p := New()
	p.DSN = ":memory:"
	p.ChunkOverlap = 0
	require.NoError(t, p.Validate())
	require.Zero(t, p.ChunkOverlap)
}

func TestValidateRejectsNegativeOverlap(t *testing.T) {
	p := New()
	p.DSN = ":memory:"
	p.ChunkOverlap = -1
	require.Error(t, p.Validate())
}

func TestValidateRejectsBadDriver(t *testing.T) {
	p := &Profile{Driver: "mysql", DSN: "root@/hansard"}
	require.Error(t, p.Validate())
}

func TestValidateRejectsBadBackend(t *testing.T) {
	p := &Profile{Backend: "denormalized", DSN: ":memory:"}
	require.Error(t, p.Validate())
}

func TestValidateRejectsOverlapNotBelowChunkSize(t *testing.T) {
	p := &Profile{DSN: ":memory:", ChunkSize: 100, ChunkOverlap: 100}
	require.Error(t, p.Validate())

	p = &Profile{DSN: ":memory:", ChunkSize: 100, ChunkOverlap: 150}
	require.Error(t, p.Validate())

	p = &Profile{DSN: ":memory:", ChunkSize: 100, ChunkOverlap: 99}
	require.NoError(t, p.Validate())
}

func TestValidateRequiresPostgresDSN(t *testing.T) {
	p := &Profile{Driver: "postgres"}
	require.Error(t, p.Validate())

	p = &Profile{Driver: "postgres", DSN: "postgres://localhost/hansard?sslmode=disable"}
	require.NoError(t, p.Validate())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("HANSARD_DRIVER", "postgres")
	t.Setenv("HANSARD_BACKEND", "normalized")
	t.Setenv("HANSARD_EMBEDDING_DIM", "1024")
	t.Setenv("HANSARD_CHUNK_SIZE", "not-a-number")

	p := &Profile{ChunkSize: 300}
	p.FromEnv()
	require.Equal(t, "postgres", p.Driver)
	require.Equal(t, BackendNormalized, p.Backend)
	require.Equal(t, 1024, p.EmbeddingDim)
	// Unparsable values fall back to the existing value.
	require.Equal(t, 300, p.ChunkSize)
}
