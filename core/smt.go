package core

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	lru "github.com/hashicorp/golang-lru/v2"
)

// pathKey packs a (height, index) pair — height measured from the leaves,
// 0 at the leaves and depth at the root — into a single map key.
func pathKey(height int, index uint64) uint64 {
	return (uint64(height) << 58) | index
}

// SparseMerkleTree is a fixed-depth binary Merkle tree keyed by a dense
// integer (account id, or token id within a balances subtree). Only
// materialized (touched) nodes are stored; the rest of the tree resolves to
// the hasher's precomputed empty-subtree digests.
//
// set is O(depth) hashes and mutates no other path: each Set call walks
// exactly one root-to-leaf path, recomputing parents as it ascends. The root
// is therefore always current — root() is O(1) and two calls without an
// intervening Set return byte-identical digests.
type SparseMerkleTree struct {
	depth  int
	hasher *Hasher
	empty  []Digest // empty[h] = digest of an empty subtree of height h
	nodes  map[uint64]Digest
	root   Digest

	// dirty records, for the most recently completed Set, which tree
	// heights were recomputed. It exists to make the "only the affected
	// path is recomputed" contract observable in tests; root() does not
	// consult it, since the root is already kept current incrementally.
	dirty *bitset.BitSet

	witnessCache *lru.Cache[uint64, []Digest]
}

// NewAccountsTree constructs the accounts SMT at the configured depth.
func NewAccountsTree(h *Hasher, depth int) *SparseMerkleTree {
	return newSMT(h, depth, h.emptyAccounts)
}

// NewBalancesTree constructs a per-account balances subtree at the
// configured depth.
func NewBalancesTree(h *Hasher, depth int) *SparseMerkleTree {
	return newSMT(h, depth, h.emptyBalances)
}

func newSMT(h *Hasher, depth int, empty []Digest) *SparseMerkleTree {
	cache, _ := lru.New[uint64, []Digest](4096)
	return &SparseMerkleTree{
		depth:        depth,
		hasher:       h,
		empty:        empty,
		nodes:        make(map[uint64]Digest),
		root:         empty[depth],
		dirty:        bitset.New(uint(depth + 1)),
		witnessCache: cache,
	}
}

func (t *SparseMerkleTree) nodeAt(height int, index uint64) Digest {
	if v, ok := t.nodes[pathKey(height, index)]; ok {
		return v
	}
	return t.empty[height]
}

// Get returns the leaf digest stored at id, or the empty-leaf digest if id
// has never been set.
func (t *SparseMerkleTree) Get(id uint64) (Digest, error) {
	if id >= (uint64(1) << uint(t.depth)) {
		return Digest{}, reject(FailInvalidAccountID, fmt.Sprintf("id %d out of range for depth %d", id, t.depth))
	}
	return t.nodeAt(0, id), nil
}

// Set writes a new leaf digest at id and incrementally recomputes the root
// along id's path. No other path's nodes are touched. On success the dirty
// bitset reflects exactly the heights 0..depth that were recomputed.
func (t *SparseMerkleTree) Set(id uint64, leaf Digest) error {
	if id >= (uint64(1) << uint(t.depth)) {
		return reject(FailInvalidAccountID, fmt.Sprintf("id %d out of range for depth %d", id, t.depth))
	}
	t.dirty.ClearAll()
	index := id
	t.nodes[pathKey(0, index)] = leaf
	t.dirty.Set(0)
	cur := leaf
	for height := 0; height < t.depth; height++ {
		siblingIndex := index ^ 1
		sibling := t.nodeAt(height, siblingIndex)
		var left, right Digest
		if index%2 == 0 {
			left, right = cur, sibling
		} else {
			left, right = sibling, cur
		}
		parent := t.hasher.HashNode(left, right, height+1)
		index >>= 1
		t.nodes[pathKey(height+1, index)] = parent
		t.dirty.Set(uint(height + 1))
		cur = parent
	}
	t.root = cur
	// Every cached witness whose path shares a node with id's path is now
	// stale, not just id's own.
	t.witnessCache.Purge()
	return nil
}

// Root returns the tree's current root digest. It performs no hashing: the
// root is maintained incrementally by Set.
func (t *SparseMerkleTree) Root() Digest { return t.root }

// Witness returns the sibling digests along id's root-to-leaf path, ordered
// leaf-first, so that recomputing hash_node repeatedly from the supplied
// leaf reconstructs Root().
func (t *SparseMerkleTree) Witness(id uint64) ([]Digest, error) {
	if id >= (uint64(1) << uint(t.depth)) {
		return nil, reject(FailInvalidAccountID, fmt.Sprintf("id %d out of range for depth %d", id, t.depth))
	}
	if cached, ok := t.witnessCache.Get(id); ok {
		return cached, nil
	}
	out := make([]Digest, t.depth)
	index := id
	for height := 0; height < t.depth; height++ {
		out[height] = t.nodeAt(height, index^1)
		index >>= 1
	}
	t.witnessCache.Add(id, out)
	return out, nil
}

// VerifyWitness recomputes a root from a leaf digest, its id, and a witness
// slice produced by Witness, without touching the tree.
func (t *SparseMerkleTree) VerifyWitness(id uint64, leaf Digest, witness []Digest) (Digest, error) {
	if len(witness) != t.depth {
		return Digest{}, fmt.Errorf("witness length %d, want %d", len(witness), t.depth)
	}
	index := id
	cur := leaf
	for height := 0; height < t.depth; height++ {
		sibling := witness[height]
		var left, right Digest
		if index%2 == 0 {
			left, right = cur, sibling
		} else {
			left, right = sibling, cur
		}
		cur = t.hasher.HashNode(left, right, height+1)
		index >>= 1
	}
	return cur, nil
}

// Clone returns a deep-enough copy of t suitable for a working-state overlay:
// the node map is copied so mutations on the clone never affect t, but the
// hasher and empty-digest tables (both immutable) are shared.
func (t *SparseMerkleTree) Clone() *SparseMerkleTree {
	cache, _ := lru.New[uint64, []Digest](4096)
	nodes := make(map[uint64]Digest, len(t.nodes))
	for k, v := range t.nodes {
		nodes[k] = v
	}
	return &SparseMerkleTree{
		depth:        t.depth,
		hasher:       t.hasher,
		empty:        t.empty,
		nodes:        nodes,
		root:         t.root,
		dirty:        bitset.New(uint(t.depth + 1)),
		witnessCache: cache,
	}
}

// DirtyHeights reports which tree heights were recomputed by the most recent
// Set call.
func (t *SparseMerkleTree) DirtyHeights() []uint {
	out := make([]uint, 0, t.depth+1)
	for i, e := t.dirty.NextSet(0); e; i, e = t.dirty.NextSet(i + 1) {
		out = append(out, i)
	}
	return out
}
