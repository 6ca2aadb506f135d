package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/openparl/hansardsearch/internal/profile"
	"github.com/openparl/hansardsearch/server/ai"
	apperrors "github.com/openparl/hansardsearch/server/internal/errors"
	"github.com/openparl/hansardsearch/store"
	storetest "github.com/openparl/hansardsearch/store/test"
)

type fakeEmbedder struct {
	dim   int
	calls int
	fail  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v := make([]float32, f.dim)
		v[len(text)%f.dim] = 1
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension() int {
	return f.dim
}

func newTestIngestor(t *testing.T, chunkSize, chunkOverlap int) (*Ingestor, *store.Store, *fakeEmbedder) {
	ts := storetest.NewTestingStore(context.Background(), t, profile.BackendLegacy)
	embedder := &fakeEmbedder{dim: 768}
	p := &profile.Profile{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
	return New(ts, embedder, p), ts, embedder
}

func sampleInput() *Input {
	return &Input{
		Title:     "Appropriation Bill Second Reading",
		FullText:  "The member for Corio rises to speak on water policy in the Murray Darling basin.",
		Speaker:   "Helen Madigan",
		Party:     "ALP",
		Chamber:   "House of Representatives",
		Date:      "2024-03-14",
		SourceRef: "hansard/2024-03-14/1",
	}
}

func TestIngestCreatesDocument(t *testing.T) {
	ctx := context.Background()
	ingestor, ts, _ := newTestIngestor(t, 500, 50)

	result, err := ingestor.Ingest(ctx, sampleInput())
	require.NoError(t, err)
	require.Equal(t, StatusCreated, result.Status)
	require.NotZero(t, result.DocumentID)
	require.NotEmpty(t, result.DocumentUID)
	require.Equal(t, 1, result.PassageCount)

	doc, err := ts.GetDocument(ctx, &store.FindDocument{ID: &result.DocumentID})
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "Helen Madigan", doc.Speaker)
	require.Equal(t, ai.WordCount(doc.Content), doc.WordCount)
	require.NotEmpty(t, doc.ContentHash)
}

func TestIngestChunksLongText(t *testing.T) {
	ctx := context.Background()
	ingestor, ts, _ := newTestIngestor(t, 40, 10)

	input := sampleInput()
	input.FullText = strings.Repeat("The house considered the amendment at length. ", 10)
	result, err := ingestor.Ingest(ctx, input)
	require.NoError(t, err)
	require.Greater(t, result.PassageCount, 1)

	passages, err := ts.ListPassages(ctx, &store.FindPassage{DocumentID: &result.DocumentID})
	require.NoError(t, err)
	require.Len(t, passages, result.PassageCount)
	for i, p := range passages {
		require.Equal(t, i, p.ChunkIndex)
		require.Len(t, p.Embedding, 768)
		require.Equal(t, "2024-03-14", p.Date)
	}
}

func TestIngestDuplicateByContentHash(t *testing.T) {
	ctx := context.Background()
	ingestor, _, embedder := newTestIngestor(t, 500, 50)

	first, err := ingestor.Ingest(ctx, sampleInput())
	require.NoError(t, err)
	require.Equal(t, StatusCreated, first.Status)
	callsAfterFirst := embedder.calls

	// Identical content under a different title is still the same speech.
	input := sampleInput()
	input.Title = "Different Title"
	input.SourceRef = "hansard/2024-03-14/2"
	second, err := ingestor.Ingest(ctx, input)
	require.NoError(t, err)
	require.Equal(t, StatusDuplicate, second.Status)
	require.Equal(t, first.DocumentID, second.DocumentID)
	require.Equal(t, first.PassageCount, second.PassageCount)
	require.Equal(t, callsAfterFirst, embedder.calls)
}

func TestIngestNormalizesBeforeHashing(t *testing.T) {
	ctx := context.Background()
	ingestor, _, _ := newTestIngestor(t, 500, 50)

	first, err := ingestor.Ingest(ctx, sampleInput())
	require.NoError(t, err)

	// Whitespace-only differences normalize away.
	input := sampleInput()
	input.FullText = strings.ReplaceAll(input.FullText, " ", "  ") + "\n\n\n"
	second, err := ingestor.Ingest(ctx, input)
	require.NoError(t, err)
	require.Equal(t, StatusDuplicate, second.Status)
	require.Equal(t, first.DocumentID, second.DocumentID)
}

func TestIngestValidation(t *testing.T) {
	ctx := context.Background()
	ingestor, _, embedder := newTestIngestor(t, 500, 50)

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing title", func(in *Input) { in.Title = "" }},
		{"missing full text", func(in *Input) { in.FullText = "   " }},
		{"missing speaker", func(in *Input) { in.Speaker = "" }},
		{"missing party", func(in *Input) { in.Party = "" }},
		{"missing chamber", func(in *Input) { in.Chamber = "" }},
		{"missing source ref", func(in *Input) { in.SourceRef = "" }},
		{"bad date", func(in *Input) { in.Date = "14/03/2024" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := sampleInput()
			tt.mutate(input)
			_, err := ingestor.Ingest(ctx, input)
			require.Error(t, err)
			require.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
		})
	}
	require.Zero(t, embedder.calls)
}

// rendezvousEmbedder blocks every Embed call until all expected callers have
// arrived, so concurrent ingestions all pass the duplicate check before any
// of them persists.
type rendezvousEmbedder struct {
	dim     int
	barrier *sync.WaitGroup
}

func (r *rendezvousEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	r.barrier.Done()
	r.barrier.Wait()
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, r.dim)
		v[len(text)%r.dim] = 1
		vectors[i] = v
	}
	return vectors, nil
}

func (r *rendezvousEmbedder) Dimension() int {
	return r.dim
}

func TestIngestConcurrentIdenticalSpeeches(t *testing.T) {
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t, profile.BackendLegacy)

	const callers = 2
	barrier := &sync.WaitGroup{}
	barrier.Add(callers)
	embedder := &rendezvousEmbedder{dim: 768, barrier: barrier}
	ingestor := New(ts, embedder, &profile.Profile{ChunkSize: 500, ChunkOverlap: 50})

	results := make([]*Result, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ingestor.Ingest(ctx, sampleInput())
		}(i)
	}
	wg.Wait()

	// Exactly one caller creates the document; the loser of the insert race
	// resolves to the same document as a duplicate.
	created, duplicates := 0, 0
	for i := range results {
		require.NoError(t, errs[i])
		switch results[i].Status {
		case StatusCreated:
			created++
		case StatusDuplicate:
			duplicates++
		}
		require.Equal(t, results[0].DocumentID, results[i].DocumentID)
	}
	require.Equal(t, 1, created)
	require.Equal(t, callers-1, duplicates)

	docs, err := ts.ListDocuments(ctx, &store.FindDocument{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestIngestEmbedFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	ingestor, ts, embedder := newTestIngestor(t, 500, 50)
	embedder.fail = true

	_, err := ingestor.Ingest(ctx, sampleInput())
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.ErrCodeIngestionFailed))

	docs, err := ts.ListDocuments(ctx, &store.FindDocument{})
	require.NoError(t, err)
	require.Empty(t, docs)
}
