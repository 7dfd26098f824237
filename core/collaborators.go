package core

import "context"

// SignatureVerifier checks an L2 transaction's signature against its signed
// message. Implementations may back this with Ethereum ECDSA, EIP-1271
// smart-contract wallets, or a native L2 signing scheme; the engine depends
// only on this interface.
type SignatureVerifier interface {
	Verify(message []byte, address Address, sig []byte) bool
}

// PriorityOpSource is the L1 watcher: it surfaces deposits and full exits
// observed on L1 for ingestion into the priority queue. Ingress must be
// idempotent by serial id.
type PriorityOpSource interface {
	Next(ctx context.Context) (PriorityOp, error)
}

// BlockSink receives the notification a builder publishes for every closed
// block: its number, new root, included operations, pubdata, and the fee
// account that collected the block's fees.
type BlockSink interface {
	NotifyBlockCommitted(block CommittedBlock) error
}

// CommittedBlock is the payload a BlockSink receives for each closed block.
type CommittedBlock struct {
	BlockNumber  uint64
	NewRoot      Digest
	Ops          []Operation
	Pubdata      []byte
	FeeAccountID AccountID
}

// PersistedStore is the durability boundary the engine does not depend on
// directly: it is how a Builder's committed state and its write-ahead log
// survive a restart.
type PersistedStore interface {
	AppendJournal(entry JournalEntry) error
	SaveSnapshot(snap Snapshot) error
	LoadLatestSnapshot() (Snapshot, bool, error)
	ReplayJournalSince(version uint64) ([]JournalEntry, error)
}
