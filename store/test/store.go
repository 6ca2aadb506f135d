package test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openparl/hansardsearch/internal/profile"
	"github.com/openparl/hansardsearch/store"
	"github.com/openparl/hansardsearch/store/db"
)

// NewTestingStore creates an in-memory SQLite store with the schema applied,
// using the given passage layout.
func NewTestingStore(ctx context.Context, t *testing.T, backend profile.Backend) *store.Store {
	p := getTestingProfile(t, backend)
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err, "failed to create db driver")

	s := store.New(driver, p)
	require.NoError(t, s.Migrate(ctx), "failed to migrate db")

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("failed to close store: %v", err)
		}
	})
	return s
}

func getTestingProfile(t *testing.T, backend profile.Backend) *profile.Profile {
	p := &profile.Profile{
		Mode:    "test",
		Driver:  getDriverFromEnv(),
		DSN:     os.Getenv("POSTGRES_TEST_DSN"),
		Backend: backend,
	}
	if p.Driver == "postgres" && p.DSN == "" {
		t.Skip("POSTGRES_TEST_DSN is not set, skipping postgres test")
	}
	if p.Driver == "sqlite" {
		p.DSN = ":memory:"
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid test profile: %v", err)
	}
	return p
}

func getDriverFromEnv() string {
	driver := os.Getenv("HANSARD_TEST_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}

// SampleDocument returns a document populated with realistic metadata.
// The index keeps hashes and source references unique across calls.
func SampleDocument(index int) *store.Document {
	return &store.Document{
		UID:         fmt.Sprintf("doc-%04d", index),
		Title:       fmt.Sprintf("Second Reading Speech %d", index),
		Content:     fmt.Sprintf("Speech content number %d about water policy.", index),
		Speaker:     "Helen Madigan",
		Party:       "ALP",
		Chamber:     "House of Representatives",
		Date:        "2024-03-14",
		SourceRef:   fmt.Sprintf("hansard/2024-03-14/%d", index),
		WordCount:   7,
		ContentHash: fmt.Sprintf("hash-%04d", index),
	}
}

// SamplePassages returns n passages for a document, each with a distinct
// unit-length embedding so search ordering is deterministic.
func SamplePassages(docIndex, n, dim int) []*store.Passage {
	passages := make([]*store.Passage, 0, n)
	for i := 0; i < n; i++ {
		embedding := make([]float32, dim)
		embedding[i%dim] = 1
		passages = append(passages, &store.Passage{
			UID:        fmt.Sprintf("passage-%04d-%02d", docIndex, i),
			ChunkIndex: i,
			Content:    fmt.Sprintf("Chunk %d of speech %d.", i, docIndex),
			Embedding:  embedding,
			Speaker:    "Helen Madigan",
			Party:      "ALP",
			Chamber:    "House of Representatives",
			Date:       "2024-03-14",
			SourceRef:  fmt.Sprintf("hansard/2024-03-14/%d", docIndex),
		})
	}
	return passages
}
