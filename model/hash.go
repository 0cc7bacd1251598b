// Package model defines the data types the reassembly engine reads from the
// upstream feed and writes to the relational sink.
package model

import (
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte digest used for block hashes, transaction hashes and
// receipt/data ids. It is comparable and therefore usable as a map key.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("model: hash must be a JSON string, got %q", data)
	}
	s := string(data[1 : len(data)-1])
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("model: decoding hash %q: %w", s, err)
	}
	if len(b) != len(h) {
		return fmt.Errorf("model: hash %q has length %d, want %d", s, len(b), len(h))
	}
	copy(h[:], b)
	return nil
}

// MarshalText/UnmarshalText let Hash serialize as a JSON object key (maps
// keyed by Hash need encoding.TextMarshaler, not just json.Marshaler).
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("model: decoding hash %q: %w", text, err)
	}
	if len(b) != len(h) {
		return fmt.Errorf("model: hash %q has length %d, want %d", text, len(b), len(h))
	}
	copy(h[:], b)
	return nil
}

func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("model: hash %q has length %d, want %d", s, len(b), len(h))
	}
	copy(h[:], b)
	return h, nil
}
