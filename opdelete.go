package todostore

import "context"

// Remove deletes the record and both of its possible index entries, so that
// an entry left under the wrong flag by an earlier fault is cleaned up too.
// It reports whether the record existed.
//
// The primary entry is not decoded, so a corrupted record can still be
// removed.
func (e *Engine) Remove(ctx context.Context, id ID) (bool, error) {
	const op = "remove"
	if err := ValidateID(id); err != nil {
		return false, invalidInput(op, id, err)
	}

	key := primaryKey(id)
	e.ReadCount.Add(1)
	raw, err := e.kv.Get(ctx, key)
	if err != nil {
		return false, storageErr(op, id, err)
	}
	if raw == nil {
		if e.verbose {
			e.logf(ctx, "db: DELETE.NOOP %s", id)
		}
		return false, nil
	}

	b := new(Batch).
		Delete(key).
		Delete(indexKey(true, id)).
		Delete(indexKey(false, id))
	if err := e.write(ctx, op, id, b); err != nil {
		return false, storageErr(op, id, err)
	}
	if e.verbose {
		e.logf(ctx, "db: DELETE %s", id)
	}
	return true, nil
}
