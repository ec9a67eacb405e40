package coreevent

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/xxh3"
)

// Fingerprint is a 128-bit event identity derived from the canonical wire
// form of the event. The wire form stores timestamps at millisecond
// resolution, so wall-clock noise below a millisecond never splits identity.
// Exposure dedup and store-level idempotence both key on it.
type Fingerprint [16]byte

// ZeroFingerprint is the zero-value Fingerprint.
var ZeroFingerprint Fingerprint

// Fingerprint computes the event's identity. It fails only when the event
// is malformed (unknown kind or missing payload).
func (e Event) Fingerprint() (Fingerprint, error) {
	canonical, err := e.MarshalJSON()
	if err != nil {
		return ZeroFingerprint, fmt.Errorf("canonicalize event: %w", err)
	}
	h128 := xxh3.Hash128(canonical)
	var fp Fingerprint
	binary.LittleEndian.PutUint64(fp[:8], h128.Lo)
	binary.LittleEndian.PutUint64(fp[8:], h128.Hi)
	return fp, nil
}

// Hex returns the lowercase hex encoding of the fingerprint.
func (fp Fingerprint) Hex() string {
	return hex.EncodeToString(fp[:])
}

// String implements fmt.Stringer.
func (fp Fingerprint) String() string {
	return fp.Hex()
}

// IsZero reports whether fp is the zero fingerprint.
func (fp Fingerprint) IsZero() bool {
	return fp == ZeroFingerprint
}

// ParseFingerprint decodes a 32-character hex string.
func ParseFingerprint(s string) (Fingerprint, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroFingerprint, fmt.Errorf("parse fingerprint: %w", err)
	}
	if len(b) != 16 {
		return ZeroFingerprint, fmt.Errorf("parse fingerprint: expected 16 bytes, got %d", len(b))
	}
	var fp Fingerprint
	copy(fp[:], b)
	return fp, nil
}
