package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/openparl/hansardsearch/store"
)

// legacyStore implements the legacy layout: one denormalized speech_chunk row
// per passage, filter fields stored inline.
type legacyStore struct {
	db *sql.DB
}

func (l *legacyStore) createPassagesTx(ctx context.Context, tx *sql.Tx, passages []*store.Passage) error {
	stmt := `
		INSERT INTO speech_chunk (
			uid, document_id, chunk_index, content, embedding,
			speaker, party, chamber, date, source_ref, created_ts
		)
		VALUES (` + placeholders(11) + `)
		RETURNING id
	`
	for _, p := range passages {
		if err := tx.QueryRowContext(ctx, stmt,
			p.UID,
			p.DocumentID,
			p.ChunkIndex,
			p.Content,
			pgvector.NewVector(p.Embedding),
			p.Speaker,
			p.Party,
			p.Chamber,
			p.Date,
			p.SourceRef,
			p.CreatedTs,
		).Scan(&p.ID); err != nil {
			if isUniqueViolation(err) {
				return errors.Wrap(store.ErrUniqueViolation, err.Error())
			}
			return errors.Wrapf(err, "failed to create passage %d", p.ChunkIndex)
		}
	}
	return nil
}

func (l *legacyStore) deleteByDocumentTx(ctx context.Context, tx *sql.Tx, documentID int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM speech_chunk WHERE document_id = `+placeholder(1), documentID,
	); err != nil {
		return errors.Wrap(err, "failed to delete legacy passages")
	}
	return nil
}

func (l *legacyStore) listPassages(ctx context.Context, find *store.FindPassage) ([]*store.Passage, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.DocumentID; v != nil {
		where, args = append(where, "document_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			id, uid, document_id, chunk_index, content, embedding,
			speaker, party, chamber, date, source_ref, created_ts
		FROM speech_chunk
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY document_id ASC, chunk_index ASC
	`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}
	return l.scanPassages(ctx, query, args...)
}

// listByID reads passages ordered by row id ascending, the stable traversal
// order the migration engine relies on.
func (l *legacyStore) listByID(ctx context.Context, offset, limit int) ([]*store.Passage, error) {
	query := fmt.Sprintf(`
		SELECT
			id, uid, document_id, chunk_index, content, embedding,
			speaker, party, chamber, date, source_ref, created_ts
		FROM speech_chunk
		ORDER BY id ASC
		LIMIT %d OFFSET %d
	`, limit, offset)
	return l.scanPassages(ctx, query)
}

func (l *legacyStore) scanPassages(ctx context.Context, query string, args ...any) ([]*store.Passage, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list legacy passages")
	}
	defer rows.Close()

	list := []*store.Passage{}
	for rows.Next() {
		var p store.Passage
		var vector pgvector.Vector
		if err := rows.Scan(
			&p.ID,
			&p.UID,
			&p.DocumentID,
			&p.ChunkIndex,
			&p.Content,
			&vector,
			&p.Speaker,
			&p.Party,
			&p.Chamber,
			&p.Date,
			&p.SourceRef,
			&p.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan legacy passage")
		}
		p.Embedding = vector.Slice()
		list = append(list, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// searchPassages runs similarity search in SQL with pgvector. The <=>
// operator computes cosine distance, so 1 - distance/2 lands in [0, 1] with
// higher meaning more similar. Filters are applied in the WHERE clause before
// the LIMIT, so the top hits come from the filtered candidate set.
func (l *legacyStore) searchPassages(ctx context.Context, opts *store.SearchPassagesOptions) ([]*store.PassageHit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	vector := pgvector.NewVector(opts.Vector)
	where, args := []string{"1 = 1"}, []any{vector}

	if v := opts.Filters.Party; v != nil {
		where, args = append(where, "party = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := opts.Filters.Chamber; v != nil {
		where, args = append(where, "chamber = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := opts.Filters.Speaker; v != nil {
		where, args = append(where, "speaker = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := opts.Filters.DateStart; v != nil {
		where, args = append(where, "date >= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := opts.Filters.DateEnd; v != nil {
		where, args = append(where, "date <= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			id, uid, document_id, chunk_index, content, embedding,
			speaker, party, chamber, date, source_ref, created_ts,
			1 - (embedding <=> $1) / 2 AS score
		FROM speech_chunk
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY embedding <=> $1, chunk_index ASC, document_id ASC
		LIMIT ` + fmt.Sprintf("%d", limit)

	return scanHits(ctx, l.db, query, args...)
}

func (l *legacyStore) countPassages(ctx context.Context) (int64, error) {
	var count int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM speech_chunk`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count legacy passages")
	}
	return count, nil
}

// scanHits scans similarity search rows that end in a score column.
func scanHits(ctx context.Context, db *sql.DB, query string, args ...any) ([]*store.PassageHit, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	hits := []*store.PassageHit{}
	for rows.Next() {
		var p store.Passage
		var vector pgvector.Vector
		var score float64
		if err := rows.Scan(
			&p.ID,
			&p.UID,
			&p.DocumentID,
			&p.ChunkIndex,
			&p.Content,
			&vector,
			&p.Speaker,
			&p.Party,
			&p.Chamber,
			&p.Date,
			&p.SourceRef,
			&p.CreatedTs,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		p.Embedding = vector.Slice()
		// Zero-magnitude vectors make cosine distance NaN; postgres orders
		// NaN after every real number, so these rows already rank last.
		// Report them with score 0 like the sqlite driver does.
		if math.IsNaN(score) {
			score = 0
		}
		hits = append(hits, &store.PassageHit{Passage: &p, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}
