// Package model defines the data contracts the graph pipeline exchanges
// with its producers (RepoReader, ForgeNetworkMerger) and consumers
// (renderer, terminal surface).
package model

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// OidSize is the fixed byte length of an Oid (a SHA-1 git object id).
const OidSize = 20

// Oid is an opaque commit identifier. It supports equality and hashing
// only — no ordering semantics are implied by its byte value.
type Oid [OidSize]byte

// ZeroOid is the empty identifier, used to mark "no such commit".
var ZeroOid Oid

// String returns the lowercase hex representation.
func (o Oid) String() string {
	return hex.EncodeToString(o[:])
}

// IsZero reports whether o is the zero value.
func (o Oid) IsZero() bool {
	return o == ZeroOid
}

// ParseOid decodes a hex string (typically a git SHA, 40 or 64 chars) into
// an Oid. Short hashes are rejected — callers must resolve to full hashes
// before constructing an Oid, since truncated hex is not unique.
func ParseOid(s string) (Oid, error) {
	var oid Oid
	raw, err := hex.DecodeString(s)
	if err != nil {
		return oid, errors.Wrapf(err, "parse oid %q", s)
	}
	if len(raw) < OidSize {
		return oid, errors.Errorf("oid %q too short: got %d bytes, want at least %d", s, len(raw), OidSize)
	}
	copy(oid[:], raw[:OidSize])
	return oid, nil
}
