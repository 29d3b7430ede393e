package todostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Problem is one inconsistency found by Verify or Reindex.
type Problem struct {
	Kind Kind
	ID   ID
	Key  []byte
	Msg  string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %q: %s", p.Kind, p.Key, p.Msg)
}

// Report describes the state of the keyspace as seen by one maintenance pass.
type Report struct {
	Records           int
	CompletedEntries  int
	IncompleteEntries int
	Problems          []Problem

	// Fixed is the number of index entries Reindex wrote or deleted.
	Fixed int
}

func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

func (r *Report) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%d records, %d completed entries, %d incomplete entries", r.Records, r.CompletedEntries, r.IncompleteEntries)
	if r.Fixed > 0 {
		fmt.Fprintf(&buf, ", %d fixed", r.Fixed)
	}
	if len(r.Problems) == 0 {
		buf.WriteString(", OK")
	} else {
		fmt.Fprintf(&buf, ", %d problems", len(r.Problems))
	}
	for _, p := range r.Problems {
		buf.WriteString("\n  ")
		buf.WriteString(p.String())
	}
	return buf.String()
}

func (r *Report) addf(kind Kind, id ID, key []byte, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{kind, id, cloneBytes(key), fmt.Sprintf(format, args...)})
}

type auditRecord struct {
	id        ID
	completed bool
	raw       []byte
}

type auditEntry struct {
	id    ID // empty if the key is malformed
	value []byte
}

type audit struct {
	report  Report
	records []auditRecord
	// all primary ids, including ones whose value could not be decoded
	present map[ID]bool
	decoded map[ID]bool
	// existing index entries by key
	index map[string]auditEntry
}

// Verify checks the whole keyspace: every record must decode and have exactly
// one index entry under its Completed value, and every index entry must point
// at a record with that value.
func (e *Engine) Verify(ctx context.Context) (*Report, error) {
	a, err := e.audit(ctx, "verify")
	if err != nil {
		return nil, err
	}
	return &a.report, nil
}

func (e *Engine) audit(ctx context.Context, op string) (*audit, error) {
	snap, err := e.kv.Snapshot(ctx)
	if err != nil {
		return nil, storageErr(op, "", err)
	}
	defer snap.Close()

	a := &audit{
		present: make(map[ID]bool),
		decoded: make(map[ID]bool),
		index:   make(map[string]auditEntry),
	}
	r := &a.report
	err = e.scan(ctx, snap, op, primaryRange(), func(key, value []byte) error {
		id, err := idFromPrimaryKey(key)
		if err != nil {
			r.addf(KindDataCorruption, "", key, "bad primary key: %v", err)
			return nil
		}
		r.Records++
		a.present[id] = true
		rec, err := e.format.decodeRecord(value)
		if err != nil {
			r.addf(KindDataCorruption, id, key, "cannot decode record: %v", err)
			return nil
		}
		if rec.ID != id {
			r.addf(KindDataCorruption, id, key, "record under this key has id %q", rec.ID)
			return nil
		}
		a.records = append(a.records, auditRecord{id, rec.Completed, cloneBytes(value)})
		a.decoded[id] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	completedOf := make(map[ID]bool, len(a.records))
	for _, ar := range a.records {
		completedOf[ar.id] = ar.completed
	}

	for _, completed := range []bool{false, true} {
		err = e.scan(ctx, snap, op, indexRange(completed), func(key, value []byte) error {
			if completed {
				r.CompletedEntries++
			} else {
				r.IncompleteEntries++
			}
			id, err := idFromIndexKey(completed, key)
			a.index[string(key)] = auditEntry{id, cloneBytes(value)}
			if err != nil {
				r.addf(KindIndexCorruption, "", key, "bad index key: %v", err)
				return nil
			}
			if !isIndexValue(value, id) {
				r.addf(KindIndexCorruption, id, key, "index value %q does not match the key", value)
			}
			if !a.present[id] {
				r.addf(KindIndexCorruption, id, key, "index entry without a record")
			} else if c, ok := completedOf[id]; ok && c != completed {
				r.addf(KindIndexCorruption, id, key, "index entry for a record with completed=%v", c)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for _, ar := range a.records {
		key := indexKey(ar.completed, ar.id)
		if _, ok := a.index[string(key)]; !ok {
			r.addf(KindIndexCorruption, ar.id, key, "record has no index entry")
		}
	}

	for _, p := range r.Problems {
		e.logger.ErrorContext(ctx, "todostore: "+p.Kind.String(), "op", op, "id", string(p.ID), keyAttr("key", p.Key), "msg", p.Msg)
	}
	return a, nil
}

// Reindex rebuilds the index from the primary range in one atomic batch: it
// adds missing entries, rewrites entries with a wrong value and deletes
// entries that do not match a record. Entries of records that cannot be
// decoded are left alone.
//
// The batch is conditional on every record it was computed from, so a
// concurrent change makes Reindex fail with KindConflict instead of undoing
// that change.
func (e *Engine) Reindex(ctx context.Context) (*Report, error) {
	const op = "reindex"
	a, err := e.audit(ctx, op)
	if err != nil {
		return nil, err
	}

	b := new(Batch)
	keep := make(map[string]bool, len(a.records))
	for _, ar := range a.records {
		key := indexKey(ar.completed, ar.id)
		keep[string(key)] = true
		b.ExpectValue(primaryKey(ar.id), ar.raw)
		if ent, ok := a.index[string(key)]; !ok || !bytes.Equal(ent.value, []byte(ar.id)) {
			b.Put(key, []byte(ar.id))
		}
	}
	for _, key := range slices.Sorted(maps.Keys(a.index)) {
		ent := a.index[key]
		if keep[key] || (ent.id != "" && a.present[ent.id] && !a.decoded[ent.id]) {
			continue
		}
		b.Delete([]byte(key))
	}

	a.report.Fixed = b.Len()
	if b.Len() == 0 {
		return &a.report, nil
	}
	err = e.write(ctx, op, "", b)
	if err != nil {
		if errors.Is(err, errPreconditionFailed) {
			e.ConflictCount.Add(1)
		}
		return nil, storageErr(op, "", err)
	}
	e.logger.InfoContext(ctx, "todostore: reindexed", "fixed", a.report.Fixed, "records", a.report.Records)
	return &a.report, nil
}
