package core

// GenesisParams seeds a fresh State: the two tree depths and the native
// token's display metadata.
type GenesisParams struct {
	AccountsTreeDepth int
	BalancesTreeDepth int
	NativeSymbol      string
	NativeDecimals    uint8
}

// State is the authoritative, committed rollup state: the accounts tree, the
// account table it indexes, the address-to-id map, the account id
// allocator, and the token registry.
type State struct {
	Hasher        *Hasher
	AccountsDepth int
	BalancesDepth int

	accountsTree  *SparseMerkleTree
	accounts      map[AccountID]*Account
	addressIndex  map[Address]AccountID
	nextAccountID AccountID
	Tokens        *TokenRegistry
}

// NewGenesisState builds the empty state every chain starts from.
func NewGenesisState(p GenesisParams) *State {
	h := NewHasher(p.AccountsTreeDepth, p.BalancesTreeDepth)
	return &State{
		Hasher:        h,
		AccountsDepth: p.AccountsTreeDepth,
		BalancesDepth: p.BalancesTreeDepth,
		accountsTree:  NewAccountsTree(h, p.AccountsTreeDepth),
		accounts:      make(map[AccountID]*Account),
		addressIndex:  make(map[Address]AccountID),
		nextAccountID: 0,
		Tokens:        NewTokenRegistry(p.NativeSymbol, p.NativeDecimals),
	}
}

// Root returns the accounts tree's current root digest.
func (s *State) Root() Digest { return s.accountsTree.Root() }

// Account returns the account at id, if it exists.
func (s *State) Account(id AccountID) (*Account, bool) {
	a, ok := s.accounts[id]
	return a, ok
}

// AccountByAddress returns the account owning addr, if one has been created.
func (s *State) AccountByAddress(addr Address) (*Account, bool) {
	id, ok := s.addressIndex[addr]
	if !ok {
		return nil, false
	}
	a, ok := s.accounts[id]
	return a, ok
}

// AllocateAccount assigns the next free account id to addr and inserts an
// empty account for it. It fails with AccountIdOverflow once the accounts
// tree's id space (2^AccountsDepth) is exhausted.
func (s *State) AllocateAccount(addr Address) (*Account, error) {
	if uint64(s.nextAccountID) >= (uint64(1) << uint(s.AccountsDepth)) {
		return nil, reject(FailAccountIDOverflow, "account id space exhausted")
	}
	id := s.nextAccountID
	s.nextAccountID++
	acc := NewAccount(id, addr, s.Hasher, s.BalancesDepth)
	s.accounts[id] = acc
	s.addressIndex[addr] = id
	return acc, nil
}

// ensureAccountAt materializes an account at exactly id (creating it if
// absent) and advances the id allocator past it. It exists for replay, which
// reconstructs accounts the original apply created by an id pubdata already
// recorded, rather than by re-running the allocator.
func (s *State) ensureAccountAt(id AccountID, addr Address) *Account {
	if a, ok := s.accounts[id]; ok {
		return a
	}
	a := NewAccount(id, addr, s.Hasher, s.BalancesDepth)
	s.accounts[id] = a
	s.addressIndex[addr] = id
	if uint64(id) >= uint64(s.nextAccountID) {
		s.nextAccountID = id + 1
	}
	return a
}

// putAccountLeaf re-hashes account into the accounts tree after it has been
// mutated in place.
func (s *State) putAccountLeaf(a *Account) error {
	return s.accountsTree.Set(uint64(a.ID), a.leafDigest(s.Hasher))
}

// removeAccount deletes id from the account table and resets its accounts
// tree leaf to the empty-leaf digest, as Close requires.
func (s *State) removeAccount(id AccountID) error {
	a, ok := s.accounts[id]
	if !ok {
		return reject(FailInvalidAccountID, "account not found")
	}
	delete(s.addressIndex, a.Address)
	delete(s.accounts, id)
	return s.accountsTree.Set(uint64(id), s.Hasher.EmptyAccountsSubtree(0))
}

// Witness returns the accounts-tree sibling path for id.
func (s *State) Witness(id AccountID) ([]Digest, error) {
	return s.accountsTree.Witness(uint64(id))
}

// Clone returns a deep-enough copy of s for use as a block-building overlay:
// every account (and its balances subtree) is cloned, so mutating the clone
// never touches s.
func (s *State) Clone() *State {
	out := &State{
		Hasher:        s.Hasher,
		AccountsDepth: s.AccountsDepth,
		BalancesDepth: s.BalancesDepth,
		accountsTree:  s.accountsTree.Clone(),
		accounts:      make(map[AccountID]*Account, len(s.accounts)),
		addressIndex:  make(map[Address]AccountID, len(s.addressIndex)),
		nextAccountID: s.nextAccountID,
		Tokens:        s.Tokens.Clone(),
	}
	for id, a := range s.accounts {
		out.accounts[id] = cloneAccountForOverlay(a)
	}
	for addr, id := range s.addressIndex {
		out.addressIndex[addr] = id
	}
	return out
}
