package core

// WorkingState is the copy-on-write overlay a block is built against: a
// private clone of the committed State plus the running record of what has
// been applied to it so far. If building is abandoned, the overlay is
// simply discarded; the committed State it was cloned from is never touched
// until BuildBlock succeeds and promotes it.
type WorkingState struct {
	*State

	Ops        []Operation
	Pubdata    []byte
	ChunksUsed int
}

// BeginBlock clones committed into a fresh overlay ready to accept ops.
func BeginBlock(committed *State) *WorkingState {
	return &WorkingState{State: committed.Clone()}
}

// record appends a successfully applied op and its pubdata to the overlay's
// running block contents.
func (w *WorkingState) record(op Operation, pubdata []byte) {
	w.Ops = append(w.Ops, op)
	w.Pubdata = append(w.Pubdata, pubdata...)
	w.ChunksUsed += op.Chunks()
}

// RemainingChunks reports how many chunks are left in budget.
func (w *WorkingState) RemainingChunks(budget int) int {
	return budget - w.ChunksUsed
}
