package store

import "context"

// Document is one ingested speech: the metadata record plus the raw full
// text. Exactly one Document exists per distinct content hash.
type Document struct {
	ID         int64
	UID        string
	Title      string
	Content    string
	Speaker    string
	Party      string
	Chamber    string
	Electorate *string
	State      *string
	// Date is the sitting date in ISO form (YYYY-MM-DD).
	Date        string
	SourceRef   string
	WordCount   int
	ContentHash string
	CreatedTs   int64
}

// FindDocument is the find condition for documents.
type FindDocument struct {
	ID          *int64
	IDs         []int64
	UID         *string
	ContentHash *string
	Limit       *int
}

// DeleteDocument deletes a document and cascades to its passages in both
// storage layouts.
type DeleteDocument struct {
	ID int64
}

// CreateDocumentWithPassages persists the document and all of its passages in
// a single transaction under the active passage layout. Either everything
// becomes visible or nothing does. A content-hash collision surfaces as
// ErrUniqueViolation.
func (s *Store) CreateDocumentWithPassages(ctx context.Context, create *Document, passages []*Passage) (*Document, error) {
	return s.driver.CreateDocumentWithPassages(ctx, create, passages)
}

// ListDocuments lists documents matching the find condition.
func (s *Store) ListDocuments(ctx context.Context, find *FindDocument) ([]*Document, error) {
	return retryRead(ctx, func() ([]*Document, error) {
		return s.driver.ListDocuments(ctx, find)
	})
}

// GetDocument gets a single document, or nil when none matches.
func (s *Store) GetDocument(ctx context.Context, find *FindDocument) (*Document, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.ListDocuments(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// DeleteDocument deletes a document and its passages.
func (s *Store) DeleteDocument(ctx context.Context, delete *DeleteDocument) error {
	return s.driver.DeleteDocument(ctx, delete)
}
