package core

import (
	"math/big"
	"testing"
	"time"
)

func TestReplayMatchesBuilderOutput(t *testing.T) {
	state, feeAcc := newTestState(t)
	verifier := NewEthereumSignatureVerifier()
	mp := NewMempool(time.Hour, big.NewInt(0), verifier)
	pq := NewPriorityQueue()
	builder := NewBuilder(state, mp, pq, verifier, feeAcc, []int{64})

	_, aliceAddr := newKey(t)
	pq.Ingress(PriorityOp{SerialID: 1, Kind: PriorityDeposit, Payload: DepositOp{ToAddress: aliceAddr, Token: 0, Amount: big.NewInt(1_000_000)}, DeadlineBlock: 1000})

	block, err := builder.BuildBlock(time.Now())
	if err != nil {
		t.Fatalf("build block: %v", err)
	}

	if err := Replay(state, block.Pubdata, block.NewRoot, feeAcc); err != nil {
		t.Fatalf("replay of a builder-produced block should succeed: %v", err)
	}
}

func TestReplayRejectsCorruptedPubdata(t *testing.T) {
	state, feeAcc := newTestState(t)
	verifier := NewEthereumSignatureVerifier()
	mp := NewMempool(time.Hour, big.NewInt(0), verifier)
	pq := NewPriorityQueue()
	builder := NewBuilder(state, mp, pq, verifier, feeAcc, []int{64})

	_, aliceAddr := newKey(t)
	pq.Ingress(PriorityOp{SerialID: 1, Kind: PriorityDeposit, Payload: DepositOp{ToAddress: aliceAddr, Token: 0, Amount: big.NewInt(1_000_000)}, DeadlineBlock: 1000})

	block, err := builder.BuildBlock(time.Now())
	if err != nil {
		t.Fatalf("build block: %v", err)
	}

	corrupted := make([]byte, len(block.Pubdata))
	copy(corrupted, block.Pubdata)
	// Flip a byte inside the Deposit record's amount field (the first record
	// in the block), not in a Noop's inert padding, so the corruption is
	// guaranteed to change a decoded value.
	corrupted[30] ^= 0xFF

	if err := Replay(state, corrupted, block.NewRoot, feeAcc); err == nil {
		t.Fatalf("expected replay to reject pubdata whose amount field was corrupted")
	}
}

func TestReplayRejectsWrongDeclaredRoot(t *testing.T) {
	state, feeAcc := newTestState(t)
	verifier := NewEthereumSignatureVerifier()
	mp := NewMempool(time.Hour, big.NewInt(0), verifier)
	pq := NewPriorityQueue()
	builder := NewBuilder(state, mp, pq, verifier, feeAcc, []int{64})

	_, aliceAddr := newKey(t)
	pq.Ingress(PriorityOp{SerialID: 1, Kind: PriorityDeposit, Payload: DepositOp{ToAddress: aliceAddr, Token: 0, Amount: big.NewInt(1)}, DeadlineBlock: 1000})

	block, err := builder.BuildBlock(time.Now())
	if err != nil {
		t.Fatalf("build block: %v", err)
	}

	wrongRoot := block.NewRoot
	wrongRoot[0] ^= 0xFF
	if err := Replay(state, block.Pubdata, wrongRoot, feeAcc); err == nil {
		t.Fatalf("expected replay to reject a declared root that does not match the recomputed one")
	}
}
