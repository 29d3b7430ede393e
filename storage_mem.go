package todostore

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
)

const memTreeDegree = 32

// MemStore is a transient in-memory KVStore intended for tests and for the
// "mem" backend of the command-line tool. Scans run on a copy-on-write clone
// of the tree, so they observe a snapshot and never block writers.
type MemStore struct {
	mu     sync.RWMutex
	tree   *btree.BTree
	closed bool
}

var _ KVStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{tree: btree.New(memTreeDegree)}
}

type memItem struct {
	key   []byte
	value []byte
}

func (a *memItem) Less(b btree.Item) bool {
	return bytes.Compare(a.key, b.(*memItem).key) < 0
}

func (s *MemStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.getLocked(key), nil
}

func (s *MemStore) getLocked(key []byte) []byte {
	item := s.tree.Get(&memItem{key: key})
	if item == nil {
		return nil
	}
	return cloneBytes(item.(*memItem).value)
}

func (s *MemStore) Scan(ctx context.Context, r KeyRange) (Cursor, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Scan(ctx, r)
}

func (s *MemStore) Snapshot(ctx context.Context) (KVSnapshot, error) {
	return s.snapshot(ctx)
}

func (s *MemStore) snapshot(ctx context.Context) (*memSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Clone must not run concurrently with other mutations of the tree.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return &memSnapshot{tree: s.tree.Clone()}, nil
}

func (s *MemStore) Write(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	err := b.checkExpectations(func(key []byte) ([]byte, error) {
		return s.getLocked(key), nil
	})
	if err != nil {
		return err
	}
	for _, op := range b.ops {
		switch op.kind {
		case batchPut:
			s.tree.ReplaceOrInsert(&memItem{key: op.key, value: op.value})
		case batchDelete:
			s.tree.Delete(&memItem{key: op.key})
		}
	}
	return nil
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tree = btree.New(memTreeDegree)
	return nil
}

// Len returns the total number of keys.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// memSnapshot is a frozen clone of the tree. Clones share nodes copy-on-write
// with the live tree, so taking one is O(1).
type memSnapshot struct {
	tree *btree.BTree
}

func (s *memSnapshot) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.tree == nil {
		return nil, ErrClosed
	}
	item := s.tree.Get(&memItem{key: key})
	if item == nil {
		return nil, nil
	}
	return cloneBytes(item.(*memItem).value), nil
}

func (s *memSnapshot) Scan(ctx context.Context, r KeyRange) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.tree == nil {
		return nil, ErrClosed
	}
	return &memCursor{ctx: ctx, snap: s.tree, rang: r}, nil
}

func (s *memSnapshot) Close() error {
	s.tree = nil
	return nil
}

type memCursor struct {
	ctx  context.Context
	snap *btree.BTree
	rang KeyRange
	cur  *memItem
	done bool
	err  error
}

func (c *memCursor) Next() bool {
	if c.done {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		c.finish()
		return false
	}

	var next *memItem
	visit := func(i btree.Item) bool {
		item := i.(*memItem)
		if c.cur != nil && bytes.Equal(item.key, c.cur.key) {
			return true
		}
		next = item
		return false
	}
	switch {
	case c.cur != nil:
		c.snap.AscendGreaterOrEqual(c.cur, visit)
	case c.rang.Lower != nil:
		c.snap.AscendGreaterOrEqual(&memItem{key: c.rang.Lower}, visit)
	default:
		c.snap.Ascend(visit)
	}

	if next == nil || (c.rang.Upper != nil && bytes.Compare(next.key, c.rang.Upper) >= 0) {
		c.finish()
		return false
	}
	c.cur = next
	return true
}

func (c *memCursor) finish() {
	c.done = true
	c.cur = nil
	c.snap = nil
}

func (c *memCursor) Key() []byte {
	if c.cur == nil {
		return nil
	}
	return c.cur.key
}

func (c *memCursor) Value() []byte {
	if c.cur == nil {
		return nil
	}
	return c.cur.value
}

func (c *memCursor) Err() error { return c.err }

func (c *memCursor) Close() error {
	c.finish()
	return nil
}
