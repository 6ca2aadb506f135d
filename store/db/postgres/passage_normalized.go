package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/openparl/hansardsearch/store"
)

// normalizedStore implements the normalized layout: a passage row plus a
// passage_embedding row per passage. Filter fields come from the document
// join, nothing is denormalized.
type normalizedStore struct {
	db *sql.DB
}

const normalizedSelect = `
	SELECT
		p.id, p.uid, p.document_id, p.chunk_index, p.content, e.embedding,
		d.speaker, d.party, d.chamber, d.date, d.source_ref, p.created_ts
	FROM passage p
	INNER JOIN passage_embedding e ON e.passage_id = p.id
	INNER JOIN document d ON d.id = p.document_id
`

func (n *normalizedStore) createPassagesTx(ctx context.Context, tx *sql.Tx, passages []*store.Passage) error {
	passageStmt := `
		INSERT INTO passage (uid, document_id, chunk_index, content, created_ts)
		VALUES (` + placeholders(5) + `)
		RETURNING id
	`
	embeddingStmt := `
		INSERT INTO passage_embedding (passage_id, embedding, created_ts)
		VALUES (` + placeholders(3) + `)
	`
	for _, p := range passages {
		if err := tx.QueryRowContext(ctx, passageStmt,
			p.UID,
			p.DocumentID,
			p.ChunkIndex,
			p.Content,
			p.CreatedTs,
		).Scan(&p.ID); err != nil {
			if isUniqueViolation(err) {
				return errors.Wrap(store.ErrUniqueViolation, err.Error())
			}
			return errors.Wrapf(err, "failed to create passage %d", p.ChunkIndex)
		}
		if _, err := tx.ExecContext(ctx, embeddingStmt,
			p.ID,
			pgvector.NewVector(p.Embedding),
			p.CreatedTs,
		); err != nil {
			return errors.Wrapf(err, "failed to create passage embedding %d", p.ChunkIndex)
		}
	}
	return nil
}

// insertSkipExisting inserts passages, silently skipping rows whose UID is
// already present. The skip is what makes a migration run re-executable.
func (n *normalizedStore) insertSkipExisting(ctx context.Context, passages []*store.Passage) (int, error) {
	tx, err := n.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	passageStmt := `
		INSERT INTO passage (uid, document_id, chunk_index, content, created_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (uid) DO NOTHING
		RETURNING id
	`
	embeddingStmt := `
		INSERT INTO passage_embedding (passage_id, embedding, created_ts)
		VALUES (` + placeholders(3) + `)
	`

	inserted := 0
	for _, p := range passages {
		var id int64
		err := tx.QueryRowContext(ctx, passageStmt,
			p.UID,
			p.DocumentID,
			p.ChunkIndex,
			p.Content,
			p.CreatedTs,
		).Scan(&id)
		if err == sql.ErrNoRows {
			// UID already present, skip.
			continue
		}
		if err != nil {
			return 0, errors.Wrapf(err, "failed to insert normalized passage %s", p.UID)
		}
		if _, err := tx.ExecContext(ctx, embeddingStmt,
			id,
			pgvector.NewVector(p.Embedding),
			p.CreatedTs,
		); err != nil {
			return 0, errors.Wrapf(err, "failed to insert normalized embedding %s", p.UID)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit transaction")
	}
	return inserted, nil
}

func (n *normalizedStore) deleteByDocumentTx(ctx context.Context, tx *sql.Tx, documentID int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM passage_embedding WHERE passage_id IN (SELECT id FROM passage WHERE document_id = `+placeholder(1)+`)`,
		documentID,
	); err != nil {
		return errors.Wrap(err, "failed to delete normalized embeddings")
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM passage WHERE document_id = `+placeholder(1), documentID,
	); err != nil {
		return errors.Wrap(err, "failed to delete normalized passages")
	}
	return nil
}

func (n *normalizedStore) listPassages(ctx context.Context, find *store.FindPassage) ([]*store.Passage, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.DocumentID; v != nil {
		where, args = append(where, "p.document_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "p.uid = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := normalizedSelect + `
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY p.document_id ASC, p.chunk_index ASC
	`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}
	return n.scanPassages(ctx, query, args...)
}

func (n *normalizedStore) getByUID(ctx context.Context, uid string) (*store.Passage, error) {
	list, err := n.listPassages(ctx, &store.FindPassage{UID: &uid})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (n *normalizedStore) scanPassages(ctx context.Context, query string, args ...any) ([]*store.Passage, error) {
	rows, err := n.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list normalized passages")
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
			return nil, errors.Wrap(err, "failed to scan normalized passage")
		}
		p.Embedding = vector.Slice()
		list = append(list, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (n *normalizedStore) searchPassages(ctx context.Context, opts *store.SearchPassagesOptions) ([]*store.PassageHit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	vector := pgvector.NewVector(opts.Vector)
	where, args := []string{"1 = 1"}, []any{vector}

	if v := opts.Filters.Party; v != nil {
		where, args = append(where, "d.party = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := opts.Filters.Chamber; v != nil {
		where, args = append(where, "d.chamber = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := opts.Filters.Speaker; v != nil {
		where, args = append(where, "d.speaker = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := opts.Filters.DateStart; v != nil {
		where, args = append(where, "d.date >= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := opts.Filters.DateEnd; v != nil {
		where, args = append(where, "d.date <= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			p.id, p.uid, p.document_id, p.chunk_index, p.content, e.embedding,
			d.speaker, d.party, d.chamber, d.date, d.source_ref, p.created_ts,
			1 - (e.embedding <=> $1) / 2 AS score
		FROM passage p
		INNER JOIN passage_embedding e ON e.passage_id = p.id
		INNER JOIN document d ON d.id = p.document_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY e.embedding <=> $1, p.chunk_index ASC, p.document_id ASC
		LIMIT ` + fmt.Sprintf("%d", limit)

	return scanHits(ctx, n.db, query, args...)
}

func (n *normalizedStore) countPassages(ctx context.Context) (int64, error) {
	var count int64
	if err := n.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passage`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count normalized passages")
	}
	return count, nil
}
