package todostore

import (
	"bytes"
	"fmt"
)

// Key layout. All three ranges share one flat ordered keyspace:
//
//	todo:<id>                   primary entry, value = encoded Record
//	todo-completed-true:<id>    index entry, value = id
//	todo-completed-false:<id>   index entry, value = id
//
// Every range is [ns + ':', ns + ';'). '-' sorts below ':', so both index
// namespaces lie below the primary one, and ';' is the successor of ':'.
const (
	keySep      = ':'
	keyRangeEnd = ';'

	reservedIDChars = string(keySep) + string(keyRangeEnd)
)

var (
	primaryNS    = []byte("todo")
	completedNS  = []byte("todo-completed-true")
	incompleteNS = []byte("todo-completed-false")
)

// KeyRange is a half-open [Lower, Upper) range of keys. A nil bound is open.
type KeyRange struct {
	Lower []byte
	Upper []byte
}

func (r KeyRange) Contains(key []byte) bool {
	if r.Lower != nil && bytes.Compare(key, r.Lower) < 0 {
		return false
	}
	if r.Upper != nil && bytes.Compare(key, r.Upper) >= 0 {
		return false
	}
	return true
}

func (r KeyRange) String() string {
	return fmt.Sprintf("[%q, %q)", r.Lower, r.Upper)
}

// PrefixRange returns the range of all keys starting with p.
func PrefixRange(p []byte) KeyRange {
	return KeyRange{Lower: append([]byte(nil), p...), Upper: prefixEnd(p)}
}

func nsRange(ns []byte) KeyRange {
	return KeyRange{
		Lower: appendNS(nil, ns, keySep),
		Upper: appendNS(nil, ns, keyRangeEnd),
	}
}

func appendNS(buf []byte, ns []byte, sep byte) []byte {
	buf = append(buf, ns...)
	return append(buf, sep)
}

func indexNS(completed bool) []byte {
	if completed {
		return completedNS
	}
	return incompleteNS
}

func primaryKey(id ID) []byte {
	buf := make([]byte, 0, len(primaryNS)+1+len(id))
	buf = appendNS(buf, primaryNS, keySep)
	return append(buf, id...)
}

func indexKey(completed bool, id ID) []byte {
	ns := indexNS(completed)
	buf := make([]byte, 0, len(ns)+1+len(id))
	buf = appendNS(buf, ns, keySep)
	return append(buf, id...)
}

func primaryRange() KeyRange {
	return nsRange(primaryNS)
}

func indexRange(completed bool) KeyRange {
	return nsRange(indexNS(completed))
}

func idFromPrimaryKey(key []byte) (ID, error) {
	return idFromKey(key, primaryNS)
}

func idFromIndexKey(completed bool, key []byte) (ID, error) {
	return idFromKey(key, indexNS(completed))
}

func idFromKey(key []byte, ns []byte) (ID, error) {
	n := len(ns)
	if len(key) <= n+1 || !bytes.HasPrefix(key, ns) || key[n] != keySep {
		return "", dataErrf(key, 0, nil, "key outside of %s range", ns)
	}
	id := ID(key[n+1:])
	if err := ValidateID(id); err != nil {
		return "", dataErrf(key, n+1, err, "bad id in %s key", ns)
	}
	return id, nil
}
