package todostore

import (
	"github.com/cespare/xxhash/v2"
)

// Envelope layout:
//
//	flags:uvarint  version:uvarint  checksum:8 (xxhash64 of data, big endian)  data
const (
	envelopeVer1      = 1
	envelopeVerLatest = envelopeVer1

	minEnvelopeSize = 1 + 1 + 8
)

type envelopeFlags uint64

const (
	efVerBit0 = envelopeFlags(1 << iota)
	efVerBit1
	efVerBit2
	efVerBit3

	efVerMask       = (efVerBit0 | efVerBit1 | efVerBit2 | efVerBit3)
	efVer1          = efVerBit0
	efSupportedMask = efVer1
	efDefault       = efVer1
)

func appendEnvelope(buf []byte, data []byte) []byte {
	buf = appendUvarint(buf, uint64(efDefault))
	buf = appendUvarint(buf, envelopeVerLatest)
	buf = appendFixedUint64(buf, xxhash.Sum64(data))
	return append(buf, data...)
}

func openEnvelope(raw []byte) ([]byte, error) {
	if len(raw) < minEnvelopeSize {
		return nil, dataErrf(raw, 0, nil, "invalid value: at least %d bytes required", minEnvelopeSize)
	}
	d := makeByteDecoder(raw)

	v, err := d.Uvarint()
	if err != nil {
		return nil, err
	}
	if (envelopeFlags(v) &^ efSupportedMask) != 0 {
		return nil, dataErrf(raw, 0, nil, "invalid value: unsupported flags %x", v)
	}
	flags := envelopeFlags(v)

	off := d.Off()
	ver, err := d.Uvarint()
	if err != nil {
		return nil, err
	}
	if ver != envelopeVer1 || flags&efVerMask != efVer1 {
		return nil, dataErrf(raw, off, nil, "invalid value: unsupported version %d", ver)
	}

	off = d.Off()
	sum, err := d.FixedUint64()
	if err != nil {
		return nil, err
	}
	data := d.Rest()
	if actual := xxhash.Sum64(data); actual != sum {
		return nil, dataErrf(raw, off, nil, "invalid value: checksum %016x, computed %016x", sum, actual)
	}
	return data, nil
}
