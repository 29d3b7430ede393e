package todostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// errPreconditionFailed is returned by KVStore.Write when one of the batch's
// expectations does not hold. Nothing from the batch is applied in that case.
var errPreconditionFailed = errors.New("batch precondition failed")

// ErrClosed is returned by a KVStore after Close.
var ErrClosed = errors.New("store closed")

// KVReader is the read side of an ordered byte-keyed store.
type KVReader interface {
	// Get returns a copy of the value stored under key, or nil if the key
	// does not exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Scan returns a cursor over the keys in r in ascending order. The cursor
	// sees a consistent state of the store and must be closed.
	Scan(ctx context.Context, r KeyRange) (Cursor, error)
}

// KVStore is an ordered byte-keyed store (bbolt, Pebble, in-memory btree).
// Implementations must be safe for concurrent use.
type KVStore interface {
	KVReader

	// Snapshot returns a read view that does not change while it is open, so
	// that several reads observe the same state. It must be closed.
	Snapshot(ctx context.Context) (KVSnapshot, error)

	// Write applies all of the batch's operations atomically, after checking
	// its expectations in the same atomic step.
	Write(ctx context.Context, b *Batch) error

	// Close releases the store.
	Close() error
}

// KVSnapshot is a consistent read view of a KVStore.
type KVSnapshot interface {
	KVReader
	Close() error
}

// Cursor is a forward-only iterator over a key range.
type Cursor interface {
	// Next advances to the next entry and reports whether there is one.
	Next() bool
	// Key and Value are valid until the next call to Next or Close.
	Key() []byte
	Value() []byte
	// Err returns the error that stopped iteration, if any.
	Err() error
	Close() error
}

type batchOpKind uint8

const (
	batchPut batchOpKind = iota
	batchDelete
)

type batchOp struct {
	kind  batchOpKind
	key   []byte
	value []byte
}

type expectation struct {
	key    []byte
	value  []byte
	absent bool
}

func (x *expectation) check(actual []byte) error {
	if x.absent {
		if actual != nil {
			return fmt.Errorf("%w: %q exists", errPreconditionFailed, x.key)
		}
		return nil
	}
	if actual == nil || !bytes.Equal(actual, x.value) {
		return fmt.Errorf("%w: %q changed", errPreconditionFailed, x.key)
	}
	return nil
}

// Batch is a list of puts and deletes applied all-or-nothing, guarded by
// optional expectations on the current values of some keys.
type Batch struct {
	ops     []batchOp
	expects []expectation
}

func (b *Batch) Put(key, value []byte) *Batch {
	b.ops = append(b.ops, batchOp{batchPut, cloneBytes(key), cloneBytes(value)})
	return b
}

func (b *Batch) Delete(key []byte) *Batch {
	b.ops = append(b.ops, batchOp{kind: batchDelete, key: cloneBytes(key)})
	return b
}

// ExpectValue makes the batch fail unless key currently holds exactly value.
func (b *Batch) ExpectValue(key, value []byte) *Batch {
	b.expects = append(b.expects, expectation{key: cloneBytes(key), value: cloneBytes(value)})
	return b
}

// ExpectAbsent makes the batch fail if key currently exists.
func (b *Batch) ExpectAbsent(key []byte) *Batch {
	b.expects = append(b.expects, expectation{key: cloneBytes(key), absent: true})
	return b
}

func (b *Batch) Len() int {
	return len(b.ops)
}

func (b *Batch) String() string {
	var buf bytes.Buffer
	for _, x := range b.expects {
		if x.absent {
			fmt.Fprintf(&buf, "EXPECT_ABSENT %q; ", x.key)
		} else {
			fmt.Fprintf(&buf, "EXPECT %q; ", x.key)
		}
	}
	for _, op := range b.ops {
		switch op.kind {
		case batchPut:
			fmt.Fprintf(&buf, "PUT %q; ", op.key)
		case batchDelete:
			fmt.Fprintf(&buf, "DEL %q; ", op.key)
		}
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("; ")))
}

// checkExpectations runs the batch's expectations against get, which must
// read from the same snapshot the batch is about to be applied to.
func (b *Batch) checkExpectations(get func(key []byte) ([]byte, error)) error {
	for i := range b.expects {
		x := &b.expects[i]
		actual, err := get(x.key)
		if err != nil {
			return err
		}
		if err := x.check(actual); err != nil {
			return err
		}
	}
	return nil
}
