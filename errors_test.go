package todostore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestDataError_ErrorAndUnwrap(t *testing.T) {
	t.Run("small data", func(t *testing.T) {
		inner := errors.New("inner")
		err := dataErrf([]byte{0xAA, 0xBB}, 1, inner, "oops")
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("err = %T, wanted *DataError", err)
		}
		if !errors.Is(err, inner) {
			t.Fatalf("errors.Is(err, inner) = false, wanted true")
		}
		s := err.Error()
		if !strings.Contains(s, "oops") || !strings.Contains(s, "inner") || !strings.Contains(s, "(2)") {
			t.Fatalf("err.Error() = %q, wanted message with oops/inner/(2)", s)
		}
	})

	t.Run("large data includes prefix+suffix", func(t *testing.T) {
		data := make([]byte, 200)
		for i := range data {
			data[i] = byte(i)
		}
		err := dataErrf(data, 0, nil, "oops")
		s := err.Error()
		if !strings.Contains(s, "(200)") || !strings.Contains(s, "...") {
			t.Fatalf("err.Error() = %q, wanted message with (200) and ...", s)
		}
	})
}

func TestError_Format(t *testing.T) {
	err := opErrf("update", KindConflict, "a", nil, nil, "record changed concurrently")
	deepEqual(t, err.Error(), "todostore: update a: conflict: record changed concurrently")

	err = opErrf("fetch_by_completed", KindIndexCorruption, "", []byte("todo-completed-true:x"), errors.New("boom"), "bad index key")
	deepEqual(t, err.Error(), `todostore: fetch_by_completed "todo-completed-true:x": index corruption: bad index key: boom`)

	err = invalidInput("create", "", errors.New("id is empty"))
	deepEqual(t, err.Error(), "todostore: create: invalid input: id is empty")
}

func TestError_KindAndSentinels(t *testing.T) {
	for k := KindNotFound; k <= KindInvalidInput; k++ {
		err := opErrf("op", k, "", nil, nil, "")
		if !errors.Is(err, k.sentinel()) {
			t.Errorf("** errors.Is(%v, sentinel) = false", k)
		}
		wrapped := fmt.Errorf("outer: %w", err)
		if KindOf(wrapped) != k {
			t.Errorf("** KindOf(wrapped %v) = %v", k, KindOf(wrapped))
		}
		if KindOf(k.sentinel()) != k {
			t.Errorf("** KindOf(sentinel %v) = %v", k, KindOf(k.sentinel()))
		}
	}
	deepEqual(t, KindOf(nil), KindUnknown)
	deepEqual(t, KindOf(errors.New("x")), KindUnknown)
	deepEqual(t, KindUnknown.String(), "unknown")
}

func TestKind_HTTPStatus(t *testing.T) {
	deepEqual(t, KindNotFound.HTTPStatus(), http.StatusNotFound)
	deepEqual(t, KindConflict.HTTPStatus(), http.StatusConflict)
	deepEqual(t, KindInvalidInput.HTTPStatus(), http.StatusBadRequest)
	deepEqual(t, KindIndexCorruption.HTTPStatus(), http.StatusInternalServerError)
	deepEqual(t, KindStorageUnavailable.HTTPStatus(), http.StatusInternalServerError)
}

func TestStorageErr(t *testing.T) {
	if storageErr("op", "a", nil) != nil {
		t.Fatalf("storageErr(nil) != nil")
	}

	backend := errors.New("disk on fire")
	err := storageErr("get", "a", fmt.Errorf("bolt: get: %w", backend))
	iskind(t, err, KindStorageUnavailable)
	if errors.Is(err, backend) {
		t.Errorf("** backend error leaked through storageErr")
	}
	if !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("** storageErr lost the backend message: %v", err)
	}

	iskind(t, storageErr("update", "a", fmt.Errorf("x: %w", errPreconditionFailed)), KindConflict)

	inner := opErrf("get", KindDataCorruption, "a", nil, nil, "")
	if storageErr("fetch_all", "", inner) != error(inner) {
		t.Errorf("** storageErr rewrapped an *Error")
	}

	for _, cerr := range []error{context.Canceled, context.DeadlineExceeded} {
		if err := storageErr("get", "a", cerr); err != cerr {
			t.Errorf("** storageErr(%v) = %v, wanted it unchanged", cerr, err)
		}
	}
}
