package core

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Account is the in-memory representation of one accounts-tree leaf's
// contents: id, L1 address, L2 signing-key digest, nonce, and per-token
// balances.
type Account struct {
	ID         AccountID
	Address    Address
	PubKeyHash PubKeyHash
	Nonce      Nonce
	Balances   *SparseMerkleTree // per-account subtree keyed by TokenID
	balanceOf  map[TokenID]*big.Int
}

// NewAccount creates an empty account at id, owned by address, with no L2
// signing key set and a fresh (all-empty) balances subtree.
func NewAccount(id AccountID, address Address, h *Hasher, balancesDepth int) *Account {
	return &Account{
		ID:         id,
		Address:    address,
		PubKeyHash: PubKeyHashZero,
		Nonce:      0,
		Balances:   NewBalancesTree(h, balancesDepth),
		balanceOf:  make(map[TokenID]*big.Int),
	}
}

// Balance returns the account's balance of token, zero if absent. The
// returned value is a copy; mutating it does not affect the account.
func (a *Account) Balance(token TokenID) *big.Int {
	if v, ok := a.balanceOf[token]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Credit increases the account's balance of token by amount and updates the
// balances subtree leaf accordingly.
func (a *Account) Credit(h *Hasher, token TokenID, amount *big.Int) error {
	sum := new(big.Int).Add(a.Balance(token), amount)
	return a.setBalance(h, token, sum)
}

// Debit decreases the account's balance of token by amount. The caller must
// have already checked sufficiency; Debit returns FailInsufficientFunds as a
// defensive backstop.
func (a *Account) Debit(h *Hasher, token TokenID, amount *big.Int) error {
	cur := a.Balance(token)
	if cur.Cmp(amount) < 0 {
		return reject(FailInsufficientFunds, fmt.Sprintf("token %d: have %s, need %s", token, cur, amount))
	}
	return a.setBalance(h, token, new(big.Int).Sub(cur, amount))
}

func (a *Account) setBalance(h *Hasher, token TokenID, amount *big.Int) error {
	if amount.Sign() < 0 {
		return reject(FailInsufficientFunds, fmt.Sprintf("token %d: negative balance %s", token, amount))
	}
	stored := new(big.Int).Set(amount)
	b := stored.Bytes()
	if len(b) > 32 {
		return reject(FailLeafOverflow, fmt.Sprintf("token %d: balance %s overflows leaf encoding", token, amount))
	}
	a.balanceOf[token] = stored
	var buf [32]byte
	copy(buf[32-len(b):], b)
	leaf := h.HashLeaf(buf[:])
	return a.Balances.Set(uint64(token), leaf)
}

// IsEmpty reports whether every balance the account has ever touched is
// currently zero — the precondition an account must satisfy before it can be
// closed.
func (a *Account) IsEmpty() bool {
	for _, v := range a.balanceOf {
		if v.Sign() != 0 {
			return false
		}
	}
	return true
}

// leafDigest returns the AccountLeaf digest hashed from
// (nonce, pubkey-hash, address, balances-subtree-root), in that field order.
func (a *Account) leafDigest(h *Hasher) Digest {
	buf := make([]byte, 0, 4+20+20+32)
	var nonceBuf [4]byte
	binary.BigEndian.PutUint32(nonceBuf[:], uint32(a.Nonce))
	buf = append(buf, nonceBuf[:]...)
	buf = append(buf, a.PubKeyHash[:]...)
	buf = append(buf, a.Address[:]...)
	root := a.Balances.Root()
	buf = append(buf, root[:]...)
	return h.HashLeaf(buf)
}

// ComputePubKeyHash derives the 20-byte PubKeyHash digest of an L2 signing
// public key. Signature verification itself is pluggable (see
// SignatureVerifier), but a concrete deterministic derivation is needed to
// drive ChangePubKey end to end.
func ComputePubKeyHash(pubKey []byte) PubKeyHash {
	sum := blake2b.Sum256(pubKey)
	var out PubKeyHash
	copy(out[:], sum[:20])
	return out
}

// Token is a registered fungible asset. Token 0 is reserved for the native
// coin.
type Token struct {
	ID       TokenID
	Address  Address
	Symbol   string
	Decimals uint8
}

// TokenRegistry is the monotone, append-only mapping from token id to Token.
// Tokens are never unregistered once assigned an id.
type TokenRegistry struct {
	mu     sync.RWMutex
	byID   map[TokenID]Token
	nextID TokenID
}

// NewTokenRegistry constructs a registry pre-seeded with the native coin at
// id 0.
func NewTokenRegistry(nativeSymbol string, nativeDecimals uint8) *TokenRegistry {
	r := &TokenRegistry{byID: make(map[TokenID]Token)}
	r.byID[0] = Token{ID: 0, Symbol: nativeSymbol, Decimals: nativeDecimals}
	r.nextID = 1
	return r
}

// Register assigns the next available token id to addr/symbol/decimals and
// returns the new Token.
func (r *TokenRegistry) Register(addr Address, symbol string, decimals uint8) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := Token{ID: r.nextID, Address: addr, Symbol: symbol, Decimals: decimals}
	r.byID[t.ID] = t
	r.nextID++
	return t
}

// Get returns the token registered at id, if any.
func (r *TokenRegistry) Get(id TokenID) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// IsRegistered reports whether id names a registered token.
func (r *TokenRegistry) IsRegistered(id TokenID) bool {
	_, ok := r.Get(id)
	return ok
}

// cloneAccountForOverlay returns a deep-enough copy of a suitable for a working-state
// overlay: the balances subtree is cloned (so mutations never touch the
// original) and the balance map is copied.
func cloneAccountForOverlay(a *Account) *Account {
	out := &Account{
		ID:         a.ID,
		Address:    a.Address,
		PubKeyHash: a.PubKeyHash,
		Nonce:      a.Nonce,
		Balances:   a.Balances.Clone(),
		balanceOf:  make(map[TokenID]*big.Int, len(a.balanceOf)),
	}
	for k, v := range a.balanceOf {
		out.balanceOf[k] = new(big.Int).Set(v)
	}
	return out
}

// Clone returns a snapshot copy of the registry suitable for a working-state
// overlay.
func (r *TokenRegistry) Clone() *TokenRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &TokenRegistry{byID: make(map[TokenID]Token, len(r.byID)), nextID: r.nextID}
	for k, v := range r.byID {
		out.byID[k] = v
	}
	return out
}
