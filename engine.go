package todostore

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

const defaultMaxRetries = 3

type Options struct {
	Logger *slog.Logger
	// Verbose logs every read and mutation at debug level.
	Verbose bool
	// ValueFormat is the primary entry encoding. It must match the format
	// the store was written with.
	ValueFormat ValueFormat
	// MaxRetries bounds the optimistic retries of Update when the record
	// changes between the read and the write. Zero means the default (3).
	MaxRetries int
}

// Engine implements RecordStore on top of an ordered KVStore: records live in
// the primary range, and a second pair of ranges keeps one index entry per
// record under its Completed value. Every mutation is one atomic KVStore
// batch covering both, so readers never see them disagree.
//
// Engine holds no locks of its own and is safe for concurrent use.
type Engine struct {
	kv         KVStore
	logger     *slog.Logger
	verbose    bool
	format     ValueFormat
	maxRetries int

	ReadCount     atomic.Uint64
	WriteCount    atomic.Uint64
	ConflictCount atomic.Uint64
}

func New(kv KVStore, opt Options) *Engine {
	if kv == nil {
		panic("todostore: nil KVStore")
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRetries := opt.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Engine{
		kv:         kv,
		logger:     logger,
		verbose:    opt.Verbose,
		format:     opt.ValueFormat,
		maxRetries: maxRetries,
	}
}

// KV returns the underlying store.
func (e *Engine) KV() KVStore {
	return e.kv
}

func (e *Engine) Close() error {
	return e.kv.Close()
}

func (e *Engine) logf(ctx context.Context, format string, args ...any) {
	if e.verbose {
		e.logger.DebugContext(ctx, fmt.Sprintf(format, args...))
	}
}

func (e *Engine) write(ctx context.Context, op string, id ID, b *Batch) error {
	e.WriteCount.Add(1)
	err := e.kv.Write(ctx, b)
	if err != nil && e.verbose {
		e.logf(ctx, "db: %s %s FAILED: %s: %v", op, id, b, err)
	}
	return err
}

func (e *Engine) encode(op string, rec *Record) ([]byte, error) {
	raw, err := e.format.encodeRecord(rec)
	if err != nil {
		return nil, opErrf(op, KindInvalidInput, rec.ID, nil, err, "cannot encode record")
	}
	return raw, nil
}

// decodePrimary decodes a primary entry and checks that it belongs to key.
func (e *Engine) decodePrimary(ctx context.Context, op string, key, raw []byte) (*Record, error) {
	id, err := idFromPrimaryKey(key)
	if err != nil {
		return nil, e.corrupted(ctx, op, KindDataCorruption, "", key, err, "bad primary key")
	}
	rec, err := e.format.decodeRecord(raw)
	if err != nil {
		return nil, e.corrupted(ctx, op, KindDataCorruption, id, key, err, "cannot decode record")
	}
	if rec.ID != id {
		return nil, e.corrupted(ctx, op, KindDataCorruption, id, key, nil, "record under this key has id %q", rec.ID)
	}
	return rec, nil
}

// corrupted builds a corruption error and logs it. Corruption means an earlier
// write or an outside process broke the keyspace layout, so it always gets
// logged regardless of verbosity.
func (e *Engine) corrupted(ctx context.Context, op string, kind Kind, id ID, key []byte, cause error, format string, args ...any) *Error {
	err := opErrf(op, kind, id, key, cause, format, args...)
	e.logger.LogAttrs(ctx, slog.LevelError, "todostore: "+kind.String(),
		slog.String("op", op),
		slog.String("id", string(id)),
		keyAttr("key", key),
		slog.String("err", err.Error()))
	return err
}
