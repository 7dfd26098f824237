package core

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// Digest is a canonical 32-byte encoding of a BN254 scalar-field element —
// the native output width of the MiMC sponge used as the tree's algebraic
// hash. Treating it as a fixed-size array (rather than the mutable
// fr.Element the circuit eventually consumes) keeps it comparable and usable
// as a map key throughout the SMT implementation.
type Digest [32]byte

// domain tags prevent a leaf digest from colliding with a node digest, and a
// node digest at one level from colliding with a node digest at another
// level.
const (
	domainLeaf byte = 0xA1
	domainNode byte = 0xA2
)

// Hasher computes the domain-separated algebraic hash used by the sparse
// Merkle tree. It is deterministic and side-effect free; the empty digest at
// every tree level is precomputed once at construction.
type Hasher struct {
	emptyAccounts []Digest // emptyAccounts[i] = hash of an empty subtree of height i, accounts tree
	emptyBalances []Digest // emptyBalances[i] = hash of an empty subtree of height i, balances subtree
}

// NewHasher precomputes the empty-subtree digest chain for both tree depths.
func NewHasher(accountsDepth, balancesDepth int) *Hasher {
	h := &Hasher{
		emptyAccounts: make([]Digest, accountsDepth+1),
		emptyBalances: make([]Digest, balancesDepth+1),
	}
	// Level 0 (a leaf) of an "empty" path hashes the empty leaf encoding.
	h.emptyAccounts[0] = h.HashLeaf(nil)
	for i := 1; i <= accountsDepth; i++ {
		h.emptyAccounts[i] = h.HashNode(h.emptyAccounts[i-1], h.emptyAccounts[i-1], i)
	}
	h.emptyBalances[0] = h.HashLeaf(nil)
	for i := 1; i <= balancesDepth; i++ {
		h.emptyBalances[i] = h.HashNode(h.emptyBalances[i-1], h.emptyBalances[i-1], i)
	}
	return h
}

// EmptyAccountsSubtree returns the precomputed digest of an empty subtree of
// the given height within the accounts tree.
func (h *Hasher) EmptyAccountsSubtree(height int) Digest { return h.emptyAccounts[height] }

// EmptyBalancesSubtree returns the precomputed digest of an empty subtree of
// the given height within a balances subtree.
func (h *Hasher) EmptyBalancesSubtree(height int) Digest { return h.emptyBalances[height] }

// HashLeaf hashes the little-endian-packed encoding of a leaf's contents
// under the leaf domain tag.
func (h *Hasher) HashLeaf(data []byte) Digest {
	mh := mimc.NewMiMC()
	mh.Write([]byte{domainLeaf})
	mh.Write(data)
	var out Digest
	copy(out[:], mh.Sum(nil))
	return out
}

// HashBytes hashes an arbitrary byte string under the leaf domain tag. It is
// used outside the tree proper — e.g. to bind an authorization message to a
// pubdata record — wherever a standalone digest of opaque bytes is needed.
func (h *Hasher) HashBytes(data []byte) Digest { return h.HashLeaf(data) }

// HashNode combines two child digests at the given tree level (distance from
// the leaves) under the node domain tag, so a node digest at one level can
// never be mistaken for one at another level.
func (h *Hasher) HashNode(left, right Digest, level int) Digest {
	mh := mimc.NewMiMC()
	mh.Write([]byte{domainNode})
	var lvl [8]byte
	binary.LittleEndian.PutUint64(lvl[:], uint64(level))
	mh.Write(lvl[:])
	mh.Write(left[:])
	mh.Write(right[:])
	var out Digest
	copy(out[:], mh.Sum(nil))
	return out
}
