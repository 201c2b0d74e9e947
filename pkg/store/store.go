package store

import (
	"context"

	"github.com/strrl/telescope-dashboard/pkg/entry"
)

// Order sorts scan results by a field.
type Order struct {
	Field Field
	Desc  bool
}

// ScanOpts specifies a filtered, sorted and paginated scan over entries.
type ScanOpts struct {
	Where   []Predicate
	OrderBy []Order
	Offset  int
	// Limit caps the number of rows (0 means no limit).
	Limit int
}

// Store is read access to the entries table and its tags.
type Store interface {
	// Find returns the entry with the given uuid, or nil if there is none.
	Find(ctx context.Context, uuid string) (*entry.Entry, error)
	// Tags returns the tags attached to an entry.
	Tags(ctx context.Context, uuid string) ([]string, error)
	// Batch returns every entry sharing batchID, ordered by sequence.
	Batch(ctx context.Context, batchID string) ([]entry.Entry, error)
	// Scan returns entries matching the given options.
	Scan(ctx context.Context, opts ScanOpts) ([]entry.Entry, error)
	// Close releases resources.
	Close() error
}

// Loader writes entries. It backs fixture seeding and tests; the dashboard
// itself only reads.
type Loader interface {
	// Init creates tables if they don't exist.
	Init(ctx context.Context) error
	// InsertEntries stores entries in one transaction. Sequence is assigned
	// by the store in slice order.
	InsertEntries(ctx context.Context, entries []entry.Entry) error
	// InsertTags stores tag rows.
	InsertTags(ctx context.Context, tags []entry.Tag) error
}
