package core

import (
	"math/big"
	"testing"

	"rollup-operator/internal/testutil"

	"github.com/sirupsen/logrus"
)

func TestFileStoreAppendAndReplayJournal(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	defer sb.Cleanup()

	log := logrus.New()
	store, err := NewFileStore(sb.Root, log)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	defer store.Close()

	entries := []JournalEntry{
		{BlockNumber: 1, NewRoot: Digest{1}, Pubdata: []byte{1, 2, 3}},
		{BlockNumber: 2, NewRoot: Digest{2}, Pubdata: []byte{4, 5, 6}},
		{BlockNumber: 3, NewRoot: Digest{3}, Pubdata: []byte{7, 8, 9}},
	}
	for _, e := range entries {
		if err := store.AppendJournal(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	since, err := store.ReplayJournalSince(1)
	if err != nil {
		t.Fatalf("replay since: %v", err)
	}
	if len(since) != 2 || since[0].BlockNumber != 2 || since[1].BlockNumber != 3 {
		t.Fatalf("expected blocks [2 3], got %+v", since)
	}
}

func TestFileStoreSnapshotRoundTrip(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	defer sb.Cleanup()

	state, feeAcc := newTestStateForJournal(t)
	snap := SnapshotOf(state, 5)

	log := logrus.New()
	store, err := NewFileStore(sb.Root, log)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	defer store.Close()

	if err := store.SaveSnapshot(snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	loaded, ok, err := store.LoadLatestSnapshot()
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !ok {
		t.Fatalf("expected a snapshot to be present")
	}
	if loaded.BlockNumber != 5 {
		t.Fatalf("block number = %d, want 5", loaded.BlockNumber)
	}

	rebuilt := loaded.Rebuild()
	if rebuilt.Root() != state.Root() {
		t.Fatalf("rebuilt root %x does not match original %x", rebuilt.Root(), state.Root())
	}
	feeAccAfter, ok := rebuilt.Account(feeAcc)
	if !ok {
		t.Fatalf("fee account missing after rebuild")
	}
	if feeAccAfter.Balance(0).Cmp(state.accounts[feeAcc].Balance(0)) != 0 {
		t.Fatalf("fee account balance mismatch after rebuild")
	}
}

func TestFileStoreLoadMissingSnapshot(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	defer sb.Cleanup()

	log := logrus.New()
	store, err := NewFileStore(sb.Root, log)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	defer store.Close()

	_, ok, err := store.LoadLatestSnapshot()
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if ok {
		t.Fatalf("expected no snapshot to be present")
	}
}

func newTestStateForJournal(t *testing.T) (*State, AccountID) {
	t.Helper()
	state := NewGenesisState(GenesisParams{AccountsTreeDepth: 6, BalancesTreeDepth: 4, NativeSymbol: "ETH", NativeDecimals: 18})
	fee, err := state.AllocateAccount(Address{0xFE})
	if err != nil {
		t.Fatalf("allocate fee account: %v", err)
	}
	if err := fee.Credit(state.Hasher, 0, big.NewInt(500)); err != nil {
		t.Fatalf("credit fee account: %v", err)
	}
	if err := state.putAccountLeaf(fee); err != nil {
		t.Fatalf("put leaf: %v", err)
	}
	return state, fee.ID
}
