/*
Package todostore implements a todo record store on top of an ordered
key-value store (Bolt, Pebble or an in-memory btree), with a secondary index
on the Completed flag.

We implement:

1. Records, addressed by an opaque string ID, with a title and a completed
flag.

2. A secondary index answering “all records with Completed = c” with a single
range scan.

3. Maintenance: a consistency check (Verify), an index rebuild (Reindex) and
a human-readable dump.

# Technical Details

**One flat keyspace.**
The backend only needs point reads, ordered range scans and atomic batches.
Everything lives in a single ordered namespace; Bolt keeps it in one bucket.

**Key layout.**

	todo:<id>                   primary entry, value = encoded Record
	todo-completed-true:<id>    index entry, value = id
	todo-completed-false:<id>   index entry, value = id

Each range is [ns + “:”, ns + “;”). Because “-” sorts below “:”, both index
ranges lie below the primary range, and because ids cannot contain “:” or “;”
no key can leave its range.

**Index consistency.**
Every mutation is one batch that changes the primary entry and the index
entries together, so no reader can see one without the other. Create is
conditional on the id being unused; Update is conditional on the primary
value it merged into and retries when that value changed.

## Binary encoding

**Value** (default envelope format):
1. Flags (uvarint).
2. Format version (uvarint).
3. xxhash64 of the data (8 bytes, big endian).
4. Data: msgpack of the Record.

The JSON format stores bare JSON objects instead, matching the layout of
the original LevelDB-based todo application.
*/
package todostore
