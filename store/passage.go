package store

import (
	"context"

	"github.com/openparl/hansardsearch/internal/profile"
)

// Passage is one embedded chunk of a document. The UID is stable across
// storage layouts: a passage migrated from the legacy table keeps its UID in
// the normalized schema, which is what makes migration idempotent.
type Passage struct {
	ID         int64
	UID        string
	DocumentID int64
	// ChunkIndex is the 0-based, contiguous position within the document.
	ChunkIndex int
	Content    string
	Embedding  []float32
	// Denormalized filter fields. In the legacy layout they are stored
	// inline; in the normalized layout they are hydrated from the document.
	Speaker   string
	Party     string
	Chamber   string
	Date      string
	SourceRef string
	CreatedTs int64
}

// FindPassage is the find condition for passages in the active layout.
type FindPassage struct {
	DocumentID *int64
	UID        *string
	Limit      *int
}

// SearchFilters are structured constraints applied as SQL pre-filters before
// similarity ranking. All provided filters are ANDed.
type SearchFilters struct {
	Party   *string
	Chamber *string
	Speaker *string
	// DateStart and DateEnd bound the sitting date, inclusive on both ends,
	// in ISO form (YYYY-MM-DD).
	DateStart *string
	DateEnd   *string
}

// SearchPassagesOptions represents the options for similarity search.
type SearchPassagesOptions struct {
	Vector  []float32
	Filters SearchFilters
	Limit   int
}

// PassageHit is a similarity search result. Score is in [0, 1], higher is
// more similar: (1 + cosine similarity) / 2, which both drivers produce
// identically.
type PassageHit struct {
	Passage *Passage
	Score   float64
}

// Stats summarizes store contents for operational visibility.
type Stats struct {
	DocumentCount          int64
	LegacyPassageCount     int64
	NormalizedPassageCount int64
	LastDocumentCreatedTs  int64
}

// ListPassages lists passages from the active layout.
func (s *Store) ListPassages(ctx context.Context, find *FindPassage) ([]*Passage, error) {
	return retryRead(ctx, func() ([]*Passage, error) {
		return s.driver.ListPassages(ctx, find)
	})
}

// SearchPassages performs filtered vector similarity search against the
// active layout. Results are ordered by score descending, ties broken by
// chunk index then document id ascending.
func (s *Store) SearchPassages(ctx context.Context, opts *SearchPassagesOptions) ([]*PassageHit, error) {
	return retryRead(ctx, func() ([]*PassageHit, error) {
		return s.driver.SearchPassages(ctx, opts)
	})
}

// CountPassages counts passages stored under the given layout, regardless of
// which layout is active.
func (s *Store) CountPassages(ctx context.Context, backend profile.Backend) (int64, error) {
	return retryRead(ctx, func() (int64, error) {
		return s.driver.CountPassages(ctx, backend)
	})
}

// ListLegacyPassages reads legacy-layout passages ordered by row id
// ascending, for batched migration traversal.
func (s *Store) ListLegacyPassages(ctx context.Context, offset, limit int) ([]*Passage, error) {
	return retryRead(ctx, func() ([]*Passage, error) {
		return s.driver.ListLegacyPassages(ctx, offset, limit)
	})
}

// InsertNormalizedPassages inserts passages into the normalized layout,
// skipping any whose UID already exists there. It returns the number of rows
// actually inserted.
func (s *Store) InsertNormalizedPassages(ctx context.Context, passages []*Passage) (int, error) {
	return s.driver.InsertNormalizedPassages(ctx, passages)
}

// GetNormalizedPassageByUID fetches one normalized-layout passage by its
// carried UID, or nil when absent.
func (s *Store) GetNormalizedPassageByUID(ctx context.Context, uid string) (*Passage, error) {
	return retryRead(ctx, func() (*Passage, error) {
		return s.driver.GetNormalizedPassageByUID(ctx, uid)
	})
}

// Stats returns store-wide counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	return retryRead(ctx, func() (*Stats, error) {
		return s.driver.Stats(ctx)
	})
}
