package todostore

import "context"

// Get returns the record with the given id, or nil if there is none.
func (e *Engine) Get(ctx context.Context, id ID) (*Record, error) {
	const op = "get"
	if err := ValidateID(id); err != nil {
		return nil, invalidInput(op, id, err)
	}
	rec, _, err := e.getPrimary(ctx, e.kv, op, id)
	return rec, err
}

// getPrimary loads and decodes a primary entry. It also returns the raw value
// so that callers can make a later write conditional on it.
func (e *Engine) getPrimary(ctx context.Context, r KVReader, op string, id ID) (*Record, []byte, error) {
	key := primaryKey(id)
	e.ReadCount.Add(1)
	raw, err := r.Get(ctx, key)
	if err != nil {
		return nil, nil, storageErr(op, id, err)
	}
	if raw == nil {
		return nil, nil, nil
	}
	rec, err := e.decodePrimary(ctx, op, key, raw)
	if err != nil {
		return nil, nil, err
	}
	return rec, raw, nil
}
