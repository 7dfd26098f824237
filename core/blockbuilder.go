package core

import (
	"fmt"
	"time"
)

// Builder owns exclusive write access to the committed state and the
// mempool cursor for the duration of one BuildBlock call. Only one Builder
// may run against a given committed state at a time; concurrent mutation by
// other actors is forbidden by contract, not enforced by this type.
type Builder struct {
	committed           *State
	mempool             *Mempool
	priority            *PriorityQueue
	verifier            SignatureVerifier
	feeAccountID         AccountID
	supportedChunkSizes []int
	blockNumber         uint64
	halted              bool
	haltErr             error
	sink                BlockSink
	store               PersistedStore
}

// NewBuilder constructs a Builder seeded with the genesis (or restored)
// state, the shared mempool and priority queue, the signature verifier, the
// account every fee credits to, and the allowed chunk-budget sizes (in any
// order; chooseBudget scans the whole list).
func NewBuilder(initial *State, mempool *Mempool, pq *PriorityQueue, verifier SignatureVerifier, feeAccountID AccountID, supportedChunkSizes []int) *Builder {
	return &Builder{
		committed:           initial,
		mempool:             mempool,
		priority:            pq,
		verifier:            verifier,
		feeAccountID:        feeAccountID,
		supportedChunkSizes: supportedChunkSizes,
	}
}

// SetCollaborators wires the optional notification sink and persistence
// store; either may be left nil.
func (b *Builder) SetCollaborators(sink BlockSink, store PersistedStore) {
	b.sink = sink
	b.store = store
}

// Committed returns the builder's current committed state. Callers must
// treat it as read-only; BuildBlock clones it into a private overlay before
// mutating anything.
func (b *Builder) Committed() *State { return b.committed }

// BlockNumber returns the number of the last block closed, 0 before any
// block has been built.
func (b *Builder) BlockNumber() uint64 { return b.blockNumber }

// chooseBudget picks the smallest supported chunk-budget size that covers
// required chunks of already-known work, or the largest supported size if
// no single size suffices.
func (b *Builder) chooseBudget(required int) int {
	smallestFit, largest := 0, 0
	for _, size := range b.supportedChunkSizes {
		if size > largest {
			largest = size
		}
		if size >= required && (smallestFit == 0 || size < smallestFit) {
			smallestFit = size
		}
	}
	if smallestFit != 0 {
		return smallestFit
	}
	return largest
}

func pickBestCandidate(candidates []*MempoolTx) *MempoolTx {
	var best *MempoolTx
	bestFee := candidates[0].feePerChunk()
	best = candidates[0]
	for _, c := range candidates[1:] {
		f := c.feePerChunk()
		cmp := f.Cmp(bestFee)
		if cmp > 0 || (cmp == 0 && c.ArrivedAt.Before(best.ArrivedAt)) {
			best = c
			bestFee = f
		}
	}
	return best
}

// BuildBlock runs the four-step packing algorithm: choose a chunk budget,
// pre-include priority ops in FIFO order while they fit, fill the remainder
// from the mempool (smallest pending nonce per account first, then highest
// fee-per-chunk, ties broken by older arrival), and pad with Noop. On
// success it promotes the overlay to the new committed state and returns the
// closed block. A halted builder (a prior invariant violation) refuses to
// build further blocks.
func (b *Builder) BuildBlock(now time.Time) (*CommittedBlock, error) {
	if b.halted {
		return nil, fmt.Errorf("builder halted: %w", b.haltErr)
	}

	b.mempool.EvictCommitted(b.committed)
	b.mempool.EvictExpired(now)

	ws := BeginBlock(b.committed)

	priorityChunks := 0
	for _, op := range b.priority.Peek(1 << 20) {
		priorityChunks += op.Payload.Chunks()
	}
	mempoolChunks := 0
	for _, tx := range b.mempool.Frontier(b.committed) {
		mempoolChunks += tx.Chunks
	}
	budget := b.chooseBudget(priorityChunks + mempoolChunks)

	// Priority ops are only peeked, never popped, while tentatively packing:
	// the overlay can still be abandoned below (a halt, an exodus signal, or
	// a non-rejection mempool error), and popping the shared queue's cursor
	// is irreversible. The cursor only advances once the block is known to
	// commit, via the single Pop(includedPriority) after line 166.
	includedPriority := 0
	for {
		avail := b.priority.Peek(includedPriority + 1)
		if len(avail) <= includedPriority {
			break
		}
		op := avail[includedPriority]
		if ws.ChunksUsed+op.Payload.Chunks() > budget {
			break
		}
		if _, err := Apply(ws, op.Payload, b.verifier, b.feeAccountID); err != nil {
			b.halted = true
			b.haltErr = fmt.Errorf("priority op serial %d: %w", op.SerialID, err)
			return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, b.haltErr)
		}
		includedPriority++
	}

	if stuck, found := b.priority.DeadlineExceeded(b.blockNumber+1, includedPriority); found {
		return nil, fmt.Errorf("%w: serial %d at deadline block %d", ErrExodusImminent, stuck.SerialID, stuck.DeadlineBlock)
	}

	for {
		candidates := b.mempool.Frontier(ws.State)
		if len(candidates) == 0 {
			break
		}
		best := pickBestCandidate(candidates)
		if ws.ChunksUsed+best.Chunks > budget {
			break
		}
		_, err := Apply(ws, best.Op, b.verifier, b.feeAccountID)
		if err != nil {
			if re, ok := AsRejected(err); ok {
				b.mempool.RecordRejection(best.AccountID, best.Nonce, re.Reason, now)
				continue
			}
			return nil, err
		}
		b.mempool.Remove(best.AccountID, best.Nonce)
	}

	for ws.ChunksUsed < budget {
		if _, err := Apply(ws, NoopOp{}, b.verifier, b.feeAccountID); err != nil {
			return nil, err
		}
	}

	b.priority.Pop(includedPriority)
	b.blockNumber++
	b.committed = ws.State
	block := CommittedBlock{
		BlockNumber:  b.blockNumber,
		NewRoot:      ws.Root(),
		Ops:          ws.Ops,
		Pubdata:      ws.Pubdata,
		FeeAccountID: b.feeAccountID,
	}

	if b.store != nil {
		if err := b.store.AppendJournal(JournalEntry{BlockNumber: block.BlockNumber, NewRoot: block.NewRoot, Pubdata: block.Pubdata}); err != nil {
			b.halted = true
			b.haltErr = err
			return nil, fmt.Errorf("%w: journal append: %v", ErrInvariantViolation, err)
		}
	}
	if b.sink != nil {
		if err := b.sink.NotifyBlockCommitted(block); err != nil {
			return &block, err
		}
	}
	return &block, nil
}
