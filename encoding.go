package todostore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ValueFormat selects how primary entries are serialized.
type ValueFormat int

const (
	// FormatEnvelope is a versioned, checksummed msgpack envelope.
	FormatEnvelope ValueFormat = iota
	// FormatJSON stores bare JSON objects, compatible with the LevelDB
	// layout of the original todo application.
	FormatJSON
)

func (f ValueFormat) String() string {
	switch f {
	case FormatEnvelope:
		return "envelope"
	case FormatJSON:
		return "json"
	default:
		return fmt.Sprintf("ValueFormat(%d)", int(f))
	}
}

func ParseValueFormat(s string) (ValueFormat, error) {
	switch s {
	case "", "envelope":
		return FormatEnvelope, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown value format %q", s)
	}
}

func (f ValueFormat) encodeRecord(rec *Record) ([]byte, error) {
	switch f {
	case FormatEnvelope:
		data, err := encodeMsgPack(rec)
		if err != nil {
			return nil, err
		}
		return appendEnvelope(nil, data), nil
	case FormatJSON:
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T to JSON: %w", rec, err)
		}
		return raw, nil
	default:
		panic("unsupported value format")
	}
}

func (f ValueFormat) decodeRecord(raw []byte) (*Record, error) {
	rec := new(Record)
	switch f {
	case FormatEnvelope:
		data, err := openEnvelope(raw)
		if err != nil {
			return nil, err
		}
		if err := decodeMsgPack(data, rec); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := json.Unmarshal(raw, rec); err != nil {
			return nil, dataErrf(raw, 0, err, "failed to decode JSON into %T", rec)
		}
	default:
		panic("unsupported value format")
	}
	return rec, nil
}

func encodeMsgPack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
	}
	return buf.Bytes(), nil
}

func decodeMsgPack(data []byte, v any) error {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(v)
	msgpack.PutDecoder(dec)
	if err != nil {
		return dataErrf(data, 0, err, "failed to decode msgpack into %T", v)
	}
	return nil
}
