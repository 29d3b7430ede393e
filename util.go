package todostore

import (
	"encoding/hex"
	"log/slog"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	if len(b) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(b)
}

func hexAttr(key string, b []byte) slog.Attr {
	return slog.String(key, hexstr(b))
}

// keyAttr logs printable keys as text and everything else as hex.
func keyAttr(key string, b []byte) slog.Attr {
	for _, c := range b {
		if c < 0x20 || c >= 0x7F {
			return hexAttr(key, b)
		}
	}
	return slog.String(key, string(b))
}
