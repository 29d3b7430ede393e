package todostore

import "context"

// Stats counts the entries of each key range on one snapshot, plus the
// engine's operation counters since it was created.
type Stats struct {
	Records           int
	CompletedEntries  int
	IncompleteEntries int

	Reads     uint64
	Writes    uint64
	Conflicts uint64
}

func (s *Stats) IndexEntries() int {
	return s.CompletedEntries + s.IncompleteEntries
}

// Balanced reports whether there are as many index entries as records. It
// is a cheap hint, Verify is the real check.
func (s *Stats) Balanced() bool {
	return s.IndexEntries() == s.Records
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	const op = "stats"
	snap, err := e.kv.Snapshot(ctx)
	if err != nil {
		return Stats{}, storageErr(op, "", err)
	}
	defer snap.Close()
	return e.stats(ctx, snap, op)
}

func (e *Engine) stats(ctx context.Context, snap KVSnapshot, op string) (Stats, error) {
	var st Stats
	count := func(r KeyRange, n *int) error {
		return e.scan(ctx, snap, op, r, func(key, value []byte) error {
			*n++
			return nil
		})
	}
	if err := count(primaryRange(), &st.Records); err != nil {
		return Stats{}, err
	}
	if err := count(indexRange(true), &st.CompletedEntries); err != nil {
		return Stats{}, err
	}
	if err := count(indexRange(false), &st.IncompleteEntries); err != nil {
		return Stats{}, err
	}
	st.Reads = e.ReadCount.Load()
	st.Writes = e.WriteCount.Load()
	st.Conflicts = e.ConflictCount.Load()
	return st, nil
}
