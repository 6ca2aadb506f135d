package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"

	"github.com/openparl/hansardsearch/internal/profile"
	"github.com/openparl/hansardsearch/server/ai"
	"github.com/openparl/hansardsearch/server/internal/errors"
	"github.com/openparl/hansardsearch/store"
)

const (
	// embedBatchSize is the number of chunks sent per embedding request.
	embedBatchSize = 64
	// embedConcurrency bounds in-flight embedding requests per document.
	embedConcurrency = 4
)

// Ingestor turns raw speech transcripts into embedded, searchable documents.
type Ingestor struct {
	store    *store.Store
	embedder ai.EmbeddingService
	policy   ai.ChunkPolicy
}

func New(s *store.Store, embedder ai.EmbeddingService, p *profile.Profile) *Ingestor {
	return &Ingestor{
		store:    s,
		embedder: embedder,
		policy: ai.ChunkPolicy{
			MaxChars:     p.ChunkSize,
			OverlapChars: p.ChunkOverlap,
		},
	}
}

// Input is one speech to ingest. All fields except Electorate and State are
// required.
type Input struct {
	Title      string
	FullText   string
	Speaker    string
	Party      string
	Chamber    string
	Electorate *string
	State      *string
	// Date is the sitting date in YYYY-MM-DD form.
	Date      string
	SourceRef string
}

const (
	StatusCreated   = "created"
	StatusDuplicate = "duplicate"
)

// Result reports the outcome of one ingestion. Status is StatusCreated for a
// new document, StatusDuplicate when the same content was already ingested.
type Result struct {
	DocumentID   int64
	DocumentUID  string
	PassageCount int
	Status       string
}

func (in *Input) Validate() error {
	required := []struct {
		field, value string
	}{
		{"title", in.Title},
		{"full_text", in.FullText},
		{"speaker", in.Speaker},
		{"party", in.Party},
		{"chamber", in.Chamber},
		{"date", in.Date},
		{"source_ref", in.SourceRef},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.InvalidArgument(r.field, "is required")
		}
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return errors.InvalidArgument("date", "must be in YYYY-MM-DD form")
	}
	return nil
}

// Ingest normalizes, chunks, embeds and persists one speech. The document and
// all of its passages are written in a single transaction. Re-ingesting the
// same text is detected by content hash and reported as a duplicate, not an
// error.
func (ig *Ingestor) Ingest(ctx context.Context, input *Input) (*Result, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	normalized := ai.NormalizeText(input.FullText)
	if normalized == "" {
		return nil, errors.InvalidArgument("full_text", "is empty after normalization")
	}
	contentHash := hashContent(normalized)

	if existing, err := ig.store.GetDocument(ctx, &store.FindDocument{ContentHash: &contentHash}); err != nil {
		return nil, errors.IngestionFailed("dedup", err)
	} else if existing != nil {
		return ig.duplicateResult(ctx, existing)
	}

	chunks, err := ai.Chunk(normalized, ig.policy)
	if err != nil {
		return nil, errors.IngestionFailed("chunk", err)
	}

	embeddings, err := ig.embedChunks(ctx, chunks)
	if err != nil {
		return nil, errors.IngestionFailed("embed", err)
	}

	doc := &store.Document{
		UID:         shortuuid.New(),
		Title:       input.Title,
		Content:     normalized,
		Speaker:     input.Speaker,
		Party:       input.Party,
		Chamber:     input.Chamber,
		Electorate:  input.Electorate,
		State:       input.State,
		Date:        input.Date,
		SourceRef:   input.SourceRef,
		WordCount:   ai.WordCount(normalized),
		ContentHash: contentHash,
	}
	passages := make([]*store.Passage, 0, len(chunks))
	for i, chunk := range chunks {
		passages = append(passages, &store.Passage{
			UID:        shortuuid.New(),
			ChunkIndex: i,
			Content:    chunk,
			Embedding:  embeddings[i],
			Speaker:    input.Speaker,
			Party:      input.Party,
			Chamber:    input.Chamber,
			Date:       input.Date,
			SourceRef:  input.SourceRef,
		})
	}

	created, err := ig.store.CreateDocumentWithPassages(ctx, doc, passages)
	if err != nil {
		// A concurrent ingestion of the same text can win the race between
		// the dedup check and the insert. Treat it as a duplicate.
		if stderrors.Is(err, store.ErrUniqueViolation) {
			if existing, lookupErr := ig.store.GetDocument(ctx, &store.FindDocument{ContentHash: &contentHash}); lookupErr == nil && existing != nil {
				return ig.duplicateResult(ctx, existing)
			}
			return nil, errors.UniquenessConflict("concurrent ingestion hit a uniqueness constraint")
		}
		return nil, errors.IngestionFailed("persist", err)
	}

	slog.Info("ingested document",
		slog.String("uid", created.UID),
		slog.String("speaker", created.Speaker),
		slog.Int("passages", len(passages)))
	return &Result{
		DocumentID:   created.ID,
		DocumentUID:  created.UID,
		PassageCount: len(passages),
		Status:       StatusCreated,
	}, nil
}

func (ig *Ingestor) duplicateResult(ctx context.Context, doc *store.Document) (*Result, error) {
	docID := doc.ID
	passages, err := ig.store.ListPassages(ctx, &store.FindPassage{DocumentID: &docID})
	if err != nil {
		return nil, errors.IngestionFailed("dedup", err)
	}
	return &Result{
		DocumentID:   doc.ID,
		DocumentUID:  doc.UID,
		PassageCount: len(passages),
		Status:       StatusDuplicate,
	}, nil
}

// embedChunks embeds all chunks in bounded-concurrency batches, preserving
// chunk order in the result.
func (ig *Ingestor) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	embeddings := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		g.Go(func() error {
			vectors, err := ig.embedder.Embed(gctx, chunks[start:end])
			if err != nil {
				return err
			}
			copy(embeddings[start:end], vectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
