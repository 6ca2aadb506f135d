package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/openparl/hansardsearch/internal/profile"
)

// ErrUniqueViolation is returned (wrapped) by drivers when an insert hits a
// uniqueness constraint, most importantly the document content-hash. Callers
// treat it as success-as-duplicate, not failure.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
//
// Passage reads and writes go to the layout selected at construction time
// from the profile backend. The migration methods are layout-explicit and
// ignore the active selection: they always read legacy and write normalized.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Document model related methods.
	CreateDocumentWithPassages(ctx context.Context, create *Document, passages []*Passage) (*Document, error)
	ListDocuments(ctx context.Context, find *FindDocument) ([]*Document, error)
	DeleteDocument(ctx context.Context, delete *DeleteDocument) error

	// Passage model related methods, routed to the active layout.
	ListPassages(ctx context.Context, find *FindPassage) ([]*Passage, error)
	SearchPassages(ctx context.Context, opts *SearchPassagesOptions) ([]*PassageHit, error)

	// Migration related methods, layout-explicit.
	CountPassages(ctx context.Context, backend profile.Backend) (int64, error)
	ListLegacyPassages(ctx context.Context, offset, limit int) ([]*Passage, error)
	InsertNormalizedPassages(ctx context.Context, passages []*Passage) (int, error)
	GetNormalizedPassageByUID(ctx context.Context, uid string) (*Passage, error)

	Stats(ctx context.Context) (*Stats, error)
}
