package todostore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpHeaders = DumpFlags(1 << iota)
	DumpRecords
	DumpStats
	DumpIndex

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump lists the three key ranges in key order. Entries that cannot be
// decoded are printed with the error instead of failing the dump.
func (e *Engine) Dump(ctx context.Context, f DumpFlags) (string, error) {
	const op = "dump"
	snap, err := e.kv.Snapshot(ctx)
	if err != nil {
		return "", storageErr(op, "", err)
	}
	defer snap.Close()

	var buf strings.Builder
	if f.Contains(DumpStats) {
		st, err := e.stats(ctx, snap, op)
		if err != nil {
			return "", err
		}
		fmt.Fprintln(&buf, dumpSep1)
		fmt.Fprintf(&buf, "stats: records = %d, completed_entries = %d, incomplete_entries = %d\n", st.Records, st.CompletedEntries, st.IncompleteEntries)
	}

	if f.Contains(DumpHeaders) || f.Contains(DumpRecords) {
		err := e.dumpRange(ctx, &buf, snap, op, f, primaryNS, DumpRecords, func(key, value []byte) string {
			rec, err := e.format.decodeRecord(value)
			if err != nil {
				return fmt.Sprintf("** ERROR: %v", err)
			}
			return fmt.Sprintf("%s %s", string(key[len(primaryNS)+1:]), loggableRecord(rec))
		})
		if err != nil {
			return "", err
		}
	}

	if f.Contains(DumpHeaders) || f.Contains(DumpIndex) {
		for _, completed := range []bool{true, false} {
			err := e.dumpRange(ctx, &buf, snap, op, f, indexNS(completed), DumpIndex, func(key, value []byte) string {
				id, err := idFromIndexKey(completed, key)
				if err != nil {
					return fmt.Sprintf("** ERROR: %v", err)
				}
				return fmt.Sprintf("%s => %q", id, value)
			})
			if err != nil {
				return "", err
			}
		}
	}
	return buf.String(), nil
}

func (e *Engine) dumpRange(ctx context.Context, w *strings.Builder, snap KVSnapshot, op string, f DumpFlags, ns []byte, rowsFlag DumpFlags, format func(key, value []byte) string) error {
	var rows []string
	err := e.scan(ctx, snap, op, nsRange(ns), func(key, value []byte) error {
		if f.Contains(rowsFlag) {
			rows = append(rows, format(key, value))
		} else {
			rows = append(rows, "")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if f.Contains(DumpHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d entries)\n", ns, len(rows))
	}
	if f.Contains(rowsFlag) {
		if f.Contains(DumpHeaders) && len(rows) > 0 {
			fmt.Fprintln(w, dumpSep2)
		}
		for i, row := range rows {
			fmt.Fprintf(w, "%s.%d = %s\n", ns, i+1, row)
		}
	}
	return nil
}

func loggableRecord(rec *Record) string {
	if rec == nil {
		return "<none>"
	}
	return string(must(json.Marshal(rec)))
}
