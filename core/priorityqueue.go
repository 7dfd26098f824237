package core

import "sync"

// PriorityQueue is the monotonically indexed FIFO of L1-originated ops
// (Deposit, FullExit) supplied by the L1 watcher. Ingress is idempotent by
// serial id: re-ingesting a serial id already seen is a no-op.
type PriorityQueue struct {
	mu      sync.Mutex
	seen    map[uint64]bool
	pending []PriorityOp // in ingress order; Ingress does not sort by serial id
	nextPop int          // index of the next unpopped entry
}

// NewPriorityQueue constructs an empty priority queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{seen: make(map[uint64]bool)}
}

// Ingress adds op to the queue unless its serial id has already been seen.
func (q *PriorityQueue) Ingress(op PriorityOp) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen[op.SerialID] {
		return
	}
	q.seen[op.SerialID] = true
	q.pending = append(q.pending, op)
}

// Peek returns up to k not-yet-popped ops in serial order, without
// consuming them.
func (q *PriorityQueue) Peek(k int) []PriorityOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	avail := q.pending[q.nextPop:]
	if k > len(avail) {
		k = len(avail)
	}
	out := make([]PriorityOp, k)
	copy(out, avail[:k])
	return out
}

// Pop consumes up to k not-yet-popped ops in serial order.
func (q *PriorityQueue) Pop(k int) []PriorityOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	avail := q.pending[q.nextPop:]
	if k > len(avail) {
		k = len(avail)
	}
	out := make([]PriorityOp, k)
	copy(out, avail[:k])
	q.nextPop += k
	return out
}

// Len reports how many ops remain unpopped.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) - q.nextPop
}

// DeadlineExceeded reports the not-yet-popped, not-yet-included op (if any)
// whose DeadlineBlock has been reached at currentBlock or earlier — the
// condition that raises ExodusImminent. skip excludes the leading skip
// not-yet-popped ops from consideration; a builder passes the count of
// priority ops it has already tentatively included in the block under
// construction, since those are not "stuck" even if their own deadline has
// arrived.
func (q *PriorityQueue) DeadlineExceeded(currentBlock uint64, skip int) (PriorityOp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	avail := q.pending[q.nextPop:]
	if skip > len(avail) {
		skip = len(avail)
	}
	for _, op := range avail[skip:] {
		if op.DeadlineBlock <= currentBlock {
			return op, true
		}
	}
	return PriorityOp{}, false
}
