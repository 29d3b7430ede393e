package todostore

import "context"

// RecordStore is the operation set every backend implements.
//
// Absence is not an error: Update returns a nil record and Remove returns
// false when the id does not exist. Any returned error is an *Error whose
// Kind tells the caller what happened, or ctx.Err() if the context ended
// before the operation was applied.
type RecordStore interface {
	// FetchAll returns every record in ascending id order.
	FetchAll(ctx context.Context) ([]*Record, error)

	// FetchByCompleted returns exactly the records whose Completed == completed,
	// in ascending id order.
	FetchByCompleted(ctx context.Context, completed bool) ([]*Record, error)

	// Create adds a new record. It fails with KindConflict if the id exists.
	Create(ctx context.Context, rec *Record) error

	// Update applies patch and returns the updated record, or nil if id does
	// not exist. Either every field of the patch is applied or none is.
	Update(ctx context.Context, id ID, patch Patch) (*Record, error)

	// Remove deletes the record and reports whether it existed.
	Remove(ctx context.Context, id ID) (bool, error)
}

var _ RecordStore = (*Engine)(nil)
