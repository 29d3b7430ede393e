package todostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type PebbleOptions struct {
	// InMemory keeps the whole LSM in memory; Dir is then only a name.
	InMemory bool
	// NoSync skips the WAL fsync on commit.
	NoSync bool
	Logger *slog.Logger
}

// PebbleStore is a KVStore over a Pebble LSM, the closest relative of the
// LevelDB layout this keyspace was designed for. Pebble batches are atomic
// but unconditional, so writes are serialized by mu in order to evaluate
// batch expectations against the state the batch is committed on top of.
// Pebble's directory lock guarantees no other process writes concurrently.
type PebbleStore struct {
	pdb *pebble.DB
	mu  sync.Mutex
	wo  *pebble.WriteOptions
}

var _ KVStore = (*PebbleStore)(nil)

func OpenPebble(dir string, opt PebbleOptions) (*PebbleStore, error) {
	popt := &pebble.Options{}
	if opt.InMemory {
		popt.FS = vfs.NewMem()
	}
	if opt.Logger != nil {
		popt.Logger = pebbleLogger{opt.Logger}
	}
	pdb, err := pebble.Open(dir, popt)
	if err != nil {
		return nil, fmt.Errorf("pebble: %w", err)
	}
	wo := pebble.Sync
	if opt.NoSync {
		wo = pebble.NoSync
	}
	return &PebbleStore{pdb: pdb, wo: wo}, nil
}

func (s *PebbleStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, err := s.get(key)
	if err != nil {
		return nil, fmt.Errorf("pebble: get %q: %w", key, err)
	}
	return value, nil
}

func (s *PebbleStore) get(key []byte) ([]byte, error) {
	v, closer, err := s.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	value := cloneBytes(v)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return value, nil
}

func (s *PebbleStore) Scan(ctx context.Context, r KeyRange) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Pebble iterators read from an implicit point-in-time view.
	it, err := s.pdb.NewIter(iterOptions(r))
	if err != nil {
		return nil, fmt.Errorf("pebble: scan %v: %w", r, err)
	}
	return &pebbleCursor{ctx: ctx, it: it}, nil
}

func (s *PebbleStore) Snapshot(ctx context.Context) (KVSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &pebbleSnapshot{snap: s.pdb.NewSnapshot()}, nil
}

func iterOptions(r KeyRange) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: r.Lower,
		UpperBound: r.Upper,
	}
}

func (s *PebbleStore) Write(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := b.checkExpectations(s.get); err != nil {
		return err
	}

	pb := s.pdb.NewBatch()
	defer pb.Close()
	for _, op := range b.ops {
		var err error
		switch op.kind {
		case batchPut:
			err = pb.Set(op.key, op.value, nil)
		case batchDelete:
			err = pb.Delete(op.key, nil)
		}
		if err != nil {
			return fmt.Errorf("pebble: batch %q: %w", op.key, err)
		}
	}
	if err := pb.Commit(s.wo); err != nil {
		return fmt.Errorf("pebble: commit: %w", err)
	}
	return nil
}

func (s *PebbleStore) Close() error {
	return s.pdb.Close()
}

type pebbleSnapshot struct {
	snap *pebble.Snapshot
}

func (s *pebbleSnapshot) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.snap == nil {
		return nil, ErrClosed
	}
	v, closer, err := s.snap.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("pebble: get %q: %w", key, err)
	}
	value := cloneBytes(v)
	if err := closer.Close(); err != nil {
		return nil, fmt.Errorf("pebble: get %q: %w", key, err)
	}
	return value, nil
}

func (s *pebbleSnapshot) Scan(ctx context.Context, r KeyRange) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.snap == nil {
		return nil, ErrClosed
	}
	it, err := s.snap.NewIter(iterOptions(r))
	if err != nil {
		return nil, fmt.Errorf("pebble: scan %v: %w", r, err)
	}
	return &pebbleCursor{ctx: ctx, it: it}, nil
}

func (s *pebbleSnapshot) Close() error {
	if s.snap == nil {
		return nil
	}
	err := s.snap.Close()
	s.snap = nil
	return err
}

type pebbleCursor struct {
	ctx     context.Context
	it      *pebble.Iterator
	started bool
	valid   bool
	err     error
}

func (c *pebbleCursor) Next() bool {
	if c.it == nil {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		c.valid = false
		return false
	}
	if c.started {
		c.valid = c.it.Next()
	} else {
		c.started = true
		c.valid = c.it.First()
	}
	if !c.valid {
		if err := c.it.Error(); err != nil {
			c.err = err
		}
	}
	return c.valid
}

func (c *pebbleCursor) Key() []byte {
	if !c.valid {
		return nil
	}
	return c.it.Key()
}

func (c *pebbleCursor) Value() []byte {
	if !c.valid {
		return nil
	}
	return c.it.Value()
}

func (c *pebbleCursor) Err() error { return c.err }

func (c *pebbleCursor) Close() error {
	if c.it == nil {
		return nil
	}
	err := c.it.Close()
	c.it = nil
	c.valid = false
	return err
}

type pebbleLogger struct {
	l *slog.Logger
}

func (p pebbleLogger) Infof(format string, args ...interface{}) {
	p.l.Debug("pebble: " + fmt.Sprintf(format, args...))
}

func (p pebbleLogger) Errorf(format string, args ...interface{}) {
	p.l.Error("pebble: " + fmt.Sprintf(format, args...))
}

func (p pebbleLogger) Fatalf(format string, args ...interface{}) {
	p.l.Error("pebble: FATAL: " + fmt.Sprintf(format, args...))
	os.Exit(1)
}
