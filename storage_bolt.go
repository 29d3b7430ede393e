package todostore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// boltBucketName is the single flat bucket holding all three key ranges.
var boltBucketName = []byte("todo")

type BoltOptions struct {
	// IsTesting trades durability for speed (no fsync, small initial mmap).
	IsTesting bool
	MmapSize  int
	// Timeout bounds the wait for the file lock held by another process.
	Timeout time.Duration
}

// BoltStore is a KVStore over a bbolt file. bbolt serializes writers, so
// batch expectations are checked and applied inside one read-write
// transaction.
type BoltStore struct {
	bdb *bbolt.DB
}

var _ KVStore = (*BoltStore)(nil)

func OpenBolt(path string, opt BoltOptions) (*BoltStore, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.Timeout != 0 {
		bopt.Timeout = opt.Timeout
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(boltBucketName)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("bolt: creating bucket: %w", err)
	}
	return &BoltStore{bdb: bdb}, nil
}

func (s *BoltStore) Bolt() *bbolt.DB {
	return s.bdb
}

func (s *BoltStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		b, err := boltBucket(btx)
		if err != nil {
			return err
		}
		// bolt memory is only valid within the transaction
		value = cloneBytes(b.Get(key))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: get %q: %w", key, err)
	}
	return value, nil
}

func (s *BoltStore) Scan(ctx context.Context, r KeyRange) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := s.begin()
	if err != nil {
		return nil, err
	}
	c := snap.cursor(ctx, r)
	c.owner = snap
	return c, nil
}

func (s *BoltStore) Snapshot(ctx context.Context) (KVSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.begin()
}

func (s *BoltStore) begin() (*boltSnapshot, error) {
	btx, err := s.bdb.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("bolt: begin: %w", err)
	}
	b, err := boltBucket(btx)
	if err != nil {
		btx.Rollback()
		return nil, err
	}
	return &boltSnapshot{btx: btx, b: b}, nil
}

func (s *BoltStore) Write(ctx context.Context, batch *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Batch coalesces concurrent writers into one commit; the function may be
	// re-run, which is fine because it re-checks expectations every time.
	err := s.bdb.Batch(func(btx *bbolt.Tx) error {
		b, err := boltBucket(btx)
		if err != nil {
			return err
		}
		err = batch.checkExpectations(func(key []byte) ([]byte, error) {
			return b.Get(key), nil
		})
		if err != nil {
			return err
		}
		for _, op := range batch.ops {
			switch op.kind {
			case batchPut:
				err = b.Put(op.key, op.value)
			case batchDelete:
				err = b.Delete(op.key)
			}
			if err != nil {
				return fmt.Errorf("%q: %w", op.key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt: write: %w", err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.bdb.Close()
}

func boltBucket(btx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := btx.Bucket(boltBucketName)
	if b == nil {
		return nil, fmt.Errorf("bolt: missing bucket %q", boltBucketName)
	}
	return b, nil
}

// boltSnapshot is a read-only bolt transaction.
type boltSnapshot struct {
	btx *bbolt.Tx
	b   *bbolt.Bucket
}

func (s *boltSnapshot) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.btx == nil {
		return nil, ErrClosed
	}
	return cloneBytes(s.b.Get(key)), nil
}

func (s *boltSnapshot) Scan(ctx context.Context, r KeyRange) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.btx == nil {
		return nil, ErrClosed
	}
	return s.cursor(ctx, r), nil
}

func (s *boltSnapshot) cursor(ctx context.Context, r KeyRange) *boltCursor {
	return &boltCursor{ctx: ctx, c: s.b.Cursor(), rang: r}
}

func (s *boltSnapshot) Close() error {
	if s.btx == nil {
		return nil
	}
	// The only error Rollback returns is ErrTxClosed.
	err := s.btx.Rollback()
	s.btx = nil
	if err != nil && err != bbolt.ErrTxClosed {
		return err
	}
	return nil
}

type boltCursor struct {
	ctx     context.Context
	c       *bbolt.Cursor
	owner   *boltSnapshot // closed together with the cursor, if set
	rang    KeyRange
	k, v    []byte
	started bool
	done    bool
	err     error
}

func (c *boltCursor) Next() bool {
	if c.done {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		c.finish()
		return false
	}
	if c.started {
		c.k, c.v = c.c.Next()
	} else {
		c.started = true
		if c.rang.Lower != nil {
			c.k, c.v = c.c.Seek(c.rang.Lower)
		} else {
			c.k, c.v = c.c.First()
		}
	}
	if c.k == nil || (c.rang.Upper != nil && bytes.Compare(c.k, c.rang.Upper) >= 0) {
		c.finish()
		return false
	}
	return true
}

func (c *boltCursor) finish() {
	c.done = true
	c.k, c.v = nil, nil
}

func (c *boltCursor) Key() []byte   { return c.k }
func (c *boltCursor) Value() []byte { return c.v }
func (c *boltCursor) Err() error    { return c.err }

func (c *boltCursor) Close() error {
	c.finish()
	if c.owner == nil {
		return nil
	}
	err := c.owner.Close()
	c.owner = nil
	return err
}
