package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/openparl/hansardsearch/store"
)

// CreateDocumentWithPassages persists the document and all of its passages in
// one transaction under the active layout. Nothing is visible until commit.
// A content-hash collision rolls back and surfaces as ErrUniqueViolation, so
// a concurrent duplicate ingestion fails closed instead of double-writing.
func (d *DB) CreateDocumentWithPassages(ctx context.Context, create *store.Document, passages []*store.Passage) (*store.Document, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	stmt := `
		INSERT INTO document (
			uid, title, content, speaker, party, chamber, electorate, state,
			date, source_ref, word_count, content_hash, created_ts
		)
		VALUES (` + placeholders(13) + `)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, stmt,
		create.UID,
		create.Title,
		create.Content,
		create.Speaker,
		create.Party,
		create.Chamber,
		create.Electorate,
		create.State,
		create.Date,
		create.SourceRef,
		create.WordCount,
		create.ContentHash,
		create.CreatedTs,
	).Scan(&create.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrap(store.ErrUniqueViolation, err.Error())
		}
		return nil, errors.Wrap(err, "failed to create document")
	}

	for _, passage := range passages {
		passage.DocumentID = create.ID
		if passage.CreatedTs == 0 {
			passage.CreatedTs = create.CreatedTs
		}
	}
	if err := d.active.createPassagesTx(ctx, tx, passages); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}
	return create, nil
}

func (d *DB) ListDocuments(ctx context.Context, find *store.FindDocument) ([]*store.Document, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.IDs; len(v) > 0 {
		list := make([]string, 0, len(v))
		for _, id := range v {
			list, args = append(list, placeholder(len(args)+1)), append(args, id)
		}
		where = append(where, "id IN ("+strings.Join(list, ", ")+")")
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ContentHash; v != nil {
		where, args = append(where, "content_hash = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			id, uid, title, content, speaker, party, chamber, electorate, state,
			date, source_ref, word_count, content_hash, created_ts
		FROM document
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list documents")
	}
	defer rows.Close()

	list := []*store.Document{}
	for rows.Next() {
		var doc store.Document
		var electorate, state sql.NullString
		if err := rows.Scan(
			&doc.ID,
			&doc.UID,
			&doc.Title,
			&doc.Content,
			&doc.Speaker,
			&doc.Party,
			&doc.Chamber,
			&electorate,
			&state,
			&doc.Date,
			&doc.SourceRef,
			&doc.WordCount,
			&doc.ContentHash,
			&doc.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		if electorate.Valid {
			doc.Electorate = &electorate.String
		}
		if state.Valid {
			doc.State = &state.String
		}
		list = append(list, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteDocument deletes a document and its passages in both layouts.
func (d *DB) DeleteDocument(ctx context.Context, delete *store.DeleteDocument) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := d.legacy.deleteByDocumentTx(ctx, tx, delete.ID); err != nil {
		return err
	}
	if err := d.normalized.deleteByDocumentTx(ctx, tx, delete.ID); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM document WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete document")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.Errorf("document %d not found", delete.ID)
	}
	return tx.Commit()
}
