package todostore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies every error the engine returns.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindIndexCorruption
	KindDataCorruption
	KindStorageUnavailable
	KindInvalidInput
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrIndexCorruption    = errors.New("index corruption")
	ErrDataCorruption     = errors.New("data corruption")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidInput       = errors.New("invalid input")
)

var kindSentinels = [...]error{
	KindNotFound:           ErrNotFound,
	KindConflict:           ErrConflict,
	KindIndexCorruption:    ErrIndexCorruption,
	KindDataCorruption:     ErrDataCorruption,
	KindStorageUnavailable: ErrStorageUnavailable,
	KindInvalidInput:       ErrInvalidInput,
}

func (k Kind) sentinel() error {
	if k <= KindUnknown || int(k) >= len(kindSentinels) {
		return nil
	}
	return kindSentinels[k]
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown"
}

// HTTPStatus is the status an API layer is expected to answer with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the Kind of err, or KindUnknown for errors that did not come
// from this package.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k := KindNotFound; int(k) < len(kindSentinels); k++ {
		if errors.Is(err, kindSentinels[k]) {
			return k
		}
	}
	return KindUnknown
}

// Error is returned by every Engine operation except for context
// cancellation, which is returned unchanged. Unwrap yields only the Kind
// sentinel: the underlying storage error is kept as text in Cause, so
// backend-specific error values never reach callers.
type Error struct {
	Op    string
	Kind  Kind
	ID    ID
	Key   []byte
	Msg   string
	Cause string
}

func (e *Error) Unwrap() error {
	return e.Kind.sentinel()
}

func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString("todostore: ")
	buf.WriteString(e.Op)
	if e.ID != "" {
		buf.WriteByte(' ')
		buf.WriteString(string(e.ID))
	} else if e.Key != nil {
		buf.WriteByte(' ')
		fmt.Fprintf(&buf, "%q", e.Key)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Kind.String())
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Cause != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Cause)
	}
	return buf.String()
}

func opErrf(op string, kind Kind, id ID, key []byte, cause error, format string, args ...any) *Error {
	e := &Error{
		Op:   op,
		Kind: kind,
		ID:   id,
		Key:  cloneBytes(key),
		Msg:  fmt.Sprintf(format, args...),
	}
	if cause != nil {
		e.Cause = cause.Error()
	}
	return e
}

func invalidInput(op string, id ID, err error) *Error {
	return opErrf(op, KindInvalidInput, id, nil, err, "")
}

// storageErr translates an error coming out of a KVStore. Context
// cancellation is reported as-is so that callers can tell it apart.
func storageErr(op string, id ID, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, errPreconditionFailed) {
		return opErrf(op, KindConflict, id, nil, nil, "record changed concurrently")
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return opErrf(op, KindStorageUnavailable, id, nil, err, "")
}

// DataError describes bytes that could not be decoded.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{cloneBytes(data), off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}
