// Package domain provides the shared value types used across all portfolio
// components: identities, asset identifiers, fixed-point amounts, and digests.
package domain

import (
	"encoding/hex"
	"strings"

	dErrors "govvault/pkg/domain-errors"
)

// Address is a 20-byte identity derived from a signing key. The zero value is
// the null identity and is never a valid mint recipient or burn account.
type Address [20]byte

// ZeroAddress is the null identity.
var ZeroAddress Address

// ParseAddress decodes a 0x-prefixed, 40-hex-digit address string.
// Use at trust boundaries (handlers, config, API inputs).
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(s) != 2*len(Address{}) {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must be 20 hex-encoded bytes")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address is not valid hex")
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// IsZero reports whether a is the null identity.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Digest is a 32-byte identifier derived from a typed message encoding.
// It is the replay-protection key of the message payment protocol.
type Digest [32]byte

// ParseDigest decodes a 0x-prefixed, 64-hex-digit digest string.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(s) != 2*len(Digest{}) {
		return Digest{}, dErrors.New(dErrors.CodeInvalidInput, "digest must be 32 hex-encoded bytes")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, dErrors.New(dErrors.CodeInvalidInput, "digest is not valid hex")
	}
	var d Digest
	copy(d[:], raw)
	return d, nil
}

func (d Digest) String() string { return "0x" + hex.EncodeToString(d[:]) }

// Amount is a fixed-point quantity in base units with 6 decimals. Both the
// fee asset and the claim token use the same scale.
type Amount uint64

// Unit is one whole token (1.000000).
const Unit Amount = 1_000_000

// Distinct asset/market identifiers - the compiler prevents passing a lending
// market where an asset is expected.
type (
	// Asset identifies a custodied asset (e.g. the fee asset or a
	// portfolio position).
	Asset string
	// Market identifies a lending market an asset can be supplied to.
	Market string
)

func (a Asset) String() string  { return string(a) }
func (m Market) String() string { return string(m) }
