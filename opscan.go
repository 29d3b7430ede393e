package todostore

import (
	"bytes"
	"context"
)

// FetchAll returns every record in ascending id order. An entry that cannot
// be decoded fails the whole call with KindDataCorruption.
func (e *Engine) FetchAll(ctx context.Context) ([]*Record, error) {
	const op = "fetch_all"
	snap, err := e.kv.Snapshot(ctx)
	if err != nil {
		return nil, storageErr(op, "", err)
	}
	defer snap.Close()

	recs := []*Record{}
	err = e.scan(ctx, snap, op, primaryRange(), func(key, value []byte) error {
		rec, err := e.decodePrimary(ctx, op, key, value)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// FetchByCompleted walks the index range of the given flag and loads the
// primary entry behind every index entry. Both reads happen on one snapshot,
// so an index entry without its record, or pointing at a record with the
// other flag, can only mean the keyspace is broken and is reported as
// KindIndexCorruption.
func (e *Engine) FetchByCompleted(ctx context.Context, completed bool) ([]*Record, error) {
	const op = "fetch_by_completed"
	snap, err := e.kv.Snapshot(ctx)
	if err != nil {
		return nil, storageErr(op, "", err)
	}
	defer snap.Close()

	var ids []ID
	err = e.scan(ctx, snap, op, indexRange(completed), func(key, value []byte) error {
		id, err := idFromIndexKey(completed, key)
		if err != nil {
			return e.corrupted(ctx, op, KindIndexCorruption, "", key, err, "bad index key")
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}

	recs := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, _, err := e.getPrimary(ctx, snap, op, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, e.corrupted(ctx, op, KindIndexCorruption, id, indexKey(completed, id), nil, "index entry without a record")
		}
		if rec.Completed != completed {
			return nil, e.corrupted(ctx, op, KindIndexCorruption, id, indexKey(completed, id), nil, "index entry for a record with completed=%v", rec.Completed)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// scan calls f for every entry of r. Errors returned by f stop the scan and
// are returned as is.
func (e *Engine) scan(ctx context.Context, kv KVReader, op string, r KeyRange, f func(key, value []byte) error) error {
	e.ReadCount.Add(1)
	c, err := kv.Scan(ctx, r)
	if err != nil {
		return storageErr(op, "", err)
	}
	defer c.Close()
	for c.Next() {
		if err := f(c.Key(), c.Value()); err != nil {
			return err
		}
	}
	if err := c.Err(); err != nil {
		return storageErr(op, "", err)
	}
	return nil
}

// isIndexValue reports whether an index entry's value matches its id. An
// empty value is accepted too, the key alone identifies the record.
func isIndexValue(value []byte, id ID) bool {
	return len(value) == 0 || bytes.Equal(value, []byte(id))
}
