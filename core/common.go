package core

import (
	"encoding/hex"
	"fmt"
)

// AccountID identifies an account's slot in the accounts tree. It is assigned
// monotonically at first deposit and is stable for the account's lifetime.
type AccountID uint32

// TokenID identifies a registered token. Token 0 is the native coin.
type TokenID uint16

// Nonce is a per-account replay counter, incremented by one per accepted
// L2 tx originated by the account.
type Nonce uint32

// Address is a 20-byte L1 account identifier.
type Address [20]byte

// String renders an Address as a 0x-prefixed hex string.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// IsZero reports whether a is the all-zero sentinel address.
func (a Address) IsZero() bool { return a == Address{} }

// PubKeyHash is a 20-byte digest of an account's L2 signing key. The
// all-zeros sentinel means "no L2 signing key set"; such an account cannot
// originate any L2-signed operation.
type PubKeyHash [20]byte

// String renders a PubKeyHash as a 0x-prefixed hex string.
func (h PubKeyHash) String() string { return "0x" + hex.EncodeToString(h[:]) }

// IsZero reports whether h is the sentinel "no key set" value.
func (h PubKeyHash) IsZero() bool { return h == PubKeyHash{} }

// TxHash is the 32-byte digest of a canonical signed-message layout,
// returned to submitters by the submit-tx endpoint.
type TxHash [32]byte

// String renders a TxHash as a 0x-prefixed hex string.
func (h TxHash) String() string { return "0x" + hex.EncodeToString(h[:]) }

// AddressZero is the sentinel all-zeros L1 address.
var AddressZero = Address{}

// PubKeyHashZero is the sentinel "no L2 signing key" value.
var PubKeyHashZero = PubKeyHash{}

// ParseAddress decodes a 0x-prefixed or bare hex string into an Address.
func ParseAddress(s string) (Address, error) {
	var out Address
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("parse address %q: %w", s, err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("parse address %q: want %d bytes, got %d", s, len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}
