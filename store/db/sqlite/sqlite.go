package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/openparl/hansardsearch/internal/profile"
	"github.com/openparl/hansardsearch/store"
)

// DB is a SQLite-backed store driver. SQLite has no vector extension here, so
// embeddings are stored as little-endian float32 BLOBs and similarity is
// computed in Go over the SQL-prefiltered candidate set.
type DB struct {
	db      *sql.DB
	profile *profile.Profile

	// Passage layout strategies. Both exist so the migration methods can
	// address either layout; active is the one bound to the backend selector.
	legacy     *legacyStore
	normalized *normalizedStore
	active     passageStore
}

// NewDB opens a SQLite database specified by the profile DSN and binds the
// passage layout selected by the profile backend.
func NewDB(prof *profile.Profile) (store.Driver, error) {
	if prof.DSN == "" {
		return nil, errors.New("dsn required")
	}

	dsn := prof.DSN
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", prof.DSN)
	}
	if strings.Contains(prof.DSN, ":memory:") {
		// An in-memory database exists per connection; collapse the pool so
		// every query sees the same data.
		sqlDB.SetMaxOpenConns(1)
	}

	driver := &DB{db: sqlDB, profile: prof}
	driver.legacy = &legacyStore{db: sqlDB}
	driver.normalized = &normalizedStore{db: sqlDB}
	switch prof.Backend {
	case profile.BackendNormalized:
		driver.active = driver.normalized
	default:
		driver.active = driver.legacy
	}
	slog.Debug("sqlite driver ready", "backend", prof.Backend)

	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// IsInitialized checks whether the schema has been created.
func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var count int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'document'`,
	).Scan(&count); err != nil {
		return false, errors.Wrap(err, "failed to check for document table")
	}
	return count > 0, nil
}

// passageStore is the layout strategy shared by the legacy and normalized
// schemas. It is bound once at driver construction, never per call.
type passageStore interface {
	createPassagesTx(ctx context.Context, tx *sql.Tx, passages []*store.Passage) error
	deleteByDocumentTx(ctx context.Context, tx *sql.Tx, documentID int64) error
	listPassages(ctx context.Context, find *store.FindPassage) ([]*store.Passage, error)
	searchPassages(ctx context.Context, opts *store.SearchPassagesOptions) ([]*store.PassageHit, error)
	countPassages(ctx context.Context) (int64, error)
}

func (d *DB) storeFor(backend profile.Backend) passageStore {
	if backend == profile.BackendNormalized {
		return d.normalized
	}
	return d.legacy
}

func (d *DB) ListPassages(ctx context.Context, find *store.FindPassage) ([]*store.Passage, error) {
	return d.active.listPassages(ctx, find)
}

func (d *DB) SearchPassages(ctx context.Context, opts *store.SearchPassagesOptions) ([]*store.PassageHit, error) {
	return d.active.searchPassages(ctx, opts)
}

func (d *DB) CountPassages(ctx context.Context, backend profile.Backend) (int64, error) {
	return d.storeFor(backend).countPassages(ctx)
}

func (d *DB) ListLegacyPassages(ctx context.Context, offset, limit int) ([]*store.Passage, error) {
	return d.legacy.listByID(ctx, offset, limit)
}

func (d *DB) InsertNormalizedPassages(ctx context.Context, passages []*store.Passage) (int, error) {
	return d.normalized.insertSkipExisting(ctx, passages)
}

func (d *DB) GetNormalizedPassageByUID(ctx context.Context, uid string) (*store.Passage, error) {
	return d.normalized.getByUID(ctx, uid)
}

func (d *DB) Stats(ctx context.Context) (*store.Stats, error) {
	stats := &store.Stats{}
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(created_ts), 0) FROM document`,
	).Scan(&stats.DocumentCount, &stats.LastDocumentCreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to count documents")
	}
	var err error
	if stats.LegacyPassageCount, err = d.legacy.countPassages(ctx); err != nil {
		return nil, err
	}
	if stats.NormalizedPassageCount, err = d.normalized.countPassages(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}
