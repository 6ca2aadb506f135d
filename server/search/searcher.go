package search

import (
	"context"
	"strings"

	"github.com/openparl/hansardsearch/internal/profile"
	"github.com/openparl/hansardsearch/server/ai"
	"github.com/openparl/hansardsearch/server/internal/errors"
	"github.com/openparl/hansardsearch/store"
)

const defaultLimit = 10

// Searcher answers natural-language queries against the active passage
// layout.
type Searcher struct {
	store    *store.Store
	embedder ai.EmbeddingService
	maxLimit int
}

func New(s *store.Store, embedder ai.EmbeddingService, p *profile.Profile) *Searcher {
	return &Searcher{
		store:    s,
		embedder: embedder,
		maxLimit: p.MaxSearchLimit,
	}
}

// Request is one retrieval query. Zero Limit means the default of 10; a limit
// above the configured maximum is clamped, not rejected.
type Request struct {
	Query   string
	Filters store.SearchFilters
	Limit   int
}

// Hit is one ranked passage with its parent document's identity attached.
type Hit struct {
	PassageUID    string
	DocumentID    int64
	DocumentUID   string
	DocumentTitle string
	ChunkIndex    int
	Content       string
	Speaker       string
	Party         string
	Chamber       string
	Date          string
	SourceRef     string
	// Score is in [0, 1], higher is more relevant.
	Score float64
}

func (r *Request) validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.InvalidArgument("query", "is required")
	}
	if r.Limit < 0 {
		return errors.InvalidArgument("limit", "must not be negative")
	}
	if r.Filters.DateStart != nil && r.Filters.DateEnd != nil && *r.Filters.DateStart > *r.Filters.DateEnd {
		return errors.InvalidArgument("date_start", "must not be after date_end")
	}
	return nil
}

// Search embeds the query and returns the top matching passages, ordered by
// score descending with deterministic tie-breaking.
func (s *Searcher) Search(ctx context.Context, req *Request) ([]*Hit, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		limit = s.maxLimit
	}

	vectors, err := s.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, errors.QueryFailed("failed to embed query", err)
	}

	hits, err := s.store.SearchPassages(ctx, &store.SearchPassagesOptions{
		Vector:  vectors[0],
		Filters: req.Filters,
		Limit:   limit,
	})
	if err != nil {
		return nil, errors.QueryFailed("failed to search passages", err)
	}
	return s.hydrate(ctx, hits)
}

// hydrate joins each hit with its parent document's UID and title.
func (s *Searcher) hydrate(ctx context.Context, hits []*store.PassageHit) ([]*Hit, error) {
	if len(hits) == 0 {
		return []*Hit{}, nil
	}

	seen := map[int64]bool{}
	ids := []int64{}
	for _, hit := range hits {
		if !seen[hit.Passage.DocumentID] {
			seen[hit.Passage.DocumentID] = true
			ids = append(ids, hit.Passage.DocumentID)
		}
	}
	docs, err := s.store.ListDocuments(ctx, &store.FindDocument{IDs: ids})
	if err != nil {
		return nil, errors.QueryFailed("failed to load documents", err)
	}
	byID := make(map[int64]*store.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	results := make([]*Hit, 0, len(hits))
	for _, hit := range hits {
		doc := byID[hit.Passage.DocumentID]
		if doc == nil {
			return nil, errors.QueryFailed("passage references missing document", nil)
		}
		results = append(results, &Hit{
			PassageUID:    hit.Passage.UID,
			DocumentID:    doc.ID,
			DocumentUID:   doc.UID,
			DocumentTitle: doc.Title,
			ChunkIndex:    hit.Passage.ChunkIndex,
			Content:       hit.Passage.Content,
			Speaker:       hit.Passage.Speaker,
			Party:         hit.Passage.Party,
			Chamber:       hit.Passage.Chamber,
			Date:          hit.Passage.Date,
			SourceRef:     hit.Passage.SourceRef,
			Score:         hit.Score,
		})
	}
	return results, nil
}

// Document is a full speech as returned by Fetch.
type Document struct {
	ID           int64
	UID          string
	Title        string
	Content      string
	Speaker      string
	Party        string
	Chamber      string
	Electorate   *string
	State        *string
	Date         string
	SourceRef    string
	WordCount    int
	PassageCount int
}

// Fetch returns the full document for a search hit.
func (s *Searcher) Fetch(ctx context.Context, documentID int64) (*Document, error) {
	doc, err := s.store.GetDocument(ctx, &store.FindDocument{ID: &documentID})
	if err != nil {
		return nil, errors.QueryFailed("failed to load document", err)
	}
	if doc == nil {
		return nil, errors.NotFound("document not found")
	}
	passages, err := s.store.ListPassages(ctx, &store.FindPassage{DocumentID: &documentID})
	if err != nil {
		return nil, errors.QueryFailed("failed to load passages", err)
	}
	return &Document{
		ID:           doc.ID,
		UID:          doc.UID,
		Title:        doc.Title,
		Content:      doc.Content,
		Speaker:      doc.Speaker,
		Party:        doc.Party,
		Chamber:      doc.Chamber,
		Electorate:   doc.Electorate,
		State:        doc.State,
		Date:         doc.Date,
		SourceRef:    doc.SourceRef,
		WordCount:    doc.WordCount,
		PassageCount: len(passages),
	}, nil
}
