package todostore

import (
	"context"
	"errors"
	"fmt"
)

// Create stores a new record together with its index entry. The write is
// conditional on the id being unused, so a duplicate id fails with
// KindConflict and leaves the existing record intact.
func (e *Engine) Create(ctx context.Context, rec *Record) error {
	const op = "create"
	if rec == nil {
		return invalidInput(op, "", fmt.Errorf("record is nil"))
	}
	if err := validateRecord(rec); err != nil {
		return invalidInput(op, rec.ID, err)
	}
	raw, err := e.encode(op, rec)
	if err != nil {
		return err
	}

	key := primaryKey(rec.ID)
	b := new(Batch).
		ExpectAbsent(key).
		Put(key, raw).
		Put(indexKey(rec.Completed, rec.ID), []byte(rec.ID)).
		// a stale entry left in the other namespace would break the index
		Delete(indexKey(!rec.Completed, rec.ID))

	err = e.write(ctx, op, rec.ID, b)
	if errors.Is(err, errPreconditionFailed) {
		e.ConflictCount.Add(1)
		return opErrf(op, KindConflict, rec.ID, nil, nil, "record already exists")
	} else if err != nil {
		return storageErr(op, rec.ID, err)
	}
	if e.verbose {
		e.logf(ctx, "db: PUT %s => %s", rec.ID, loggableRecord(rec))
	}
	return nil
}

// Update merges patch into the stored record. The write only succeeds if the
// primary entry still holds the value the merge started from; otherwise the
// record is read and merged again, up to MaxRetries times.
//
// The index entry is moved in the same batch whenever Completed changes.
func (e *Engine) Update(ctx context.Context, id ID, patch Patch) (*Record, error) {
	const op = "update"
	if err := ValidateID(id); err != nil {
		return nil, invalidInput(op, id, err)
	}
	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return nil, invalidInput(op, id, err)
		}
	}

	key := primaryKey(id)
	for attempt := 0; ; attempt++ {
		old, oldRaw, err := e.getPrimary(ctx, e.kv, op, id)
		if err != nil {
			return nil, err
		}
		if old == nil {
			if e.verbose {
				e.logf(ctx, "db: UPDATE.NOTFOUND %s", id)
			}
			return nil, nil
		}

		updated := patch.apply(*old)
		if updated == *old {
			if e.verbose {
				e.logf(ctx, "db: PUT.NOOP %s => %s", id, loggableRecord(&updated))
			}
			return &updated, nil
		}

		raw, err := e.encode(op, &updated)
		if err != nil {
			return nil, err
		}
		b := new(Batch).ExpectValue(key, oldRaw).Put(key, raw)
		if updated.Completed != old.Completed {
			b.Delete(indexKey(old.Completed, id))
		}
		// put the index entry even if unchanged, this also repairs a missing one
		b.Put(indexKey(updated.Completed, id), []byte(id))

		err = e.write(ctx, op, id, b)
		if err == nil {
			if e.verbose {
				e.logf(ctx, "db: PUT %s => %s", id, loggableRecord(&updated))
			}
			return &updated, nil
		}
		if !errors.Is(err, errPreconditionFailed) {
			return nil, storageErr(op, id, err)
		}
		e.ConflictCount.Add(1)
		if attempt >= e.maxRetries {
			return nil, opErrf(op, KindConflict, id, nil, nil, "record changed concurrently, gave up after %d attempts", attempt+1)
		}
		if e.verbose {
			e.logf(ctx, "db: UPDATE.RETRY %s (attempt %d)", id, attempt+1)
		}
	}
}
