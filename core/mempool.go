package core

import (
	"math/big"
	"sync"
	"time"
)

// MempoolTx is one admitted transaction sitting in the mempool, keyed by
// (AccountID, Nonce).
type MempoolTx struct {
	Op        Operation
	AccountID AccountID
	Nonce     Nonce
	Token     TokenID
	Fee       *big.Int
	Chunks    int
	ArrivedAt time.Time
}

// feePerChunk ranks txs for inclusion: higher is better.
func (t *MempoolTx) feePerChunk() *big.Rat {
	if t.Chunks == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(t.Fee, big.NewInt(int64(t.Chunks)))
}

// Rejection records why a tx that once passed admission was later dropped
// (either at apply time, or by eviction).
type Rejection struct {
	AccountID AccountID
	Nonce     Nonce
	Reason    FailReason
	At        time.Time
}

// Mempool holds admitted-but-uncommitted L2 transactions, indexed per
// account by nonce. It never holds priority ops (Deposit/FullExit); those
// live in the PriorityQueue instead.
type Mempool struct {
	mu       sync.Mutex
	byAccount map[AccountID]map[Nonce]*MempoolTx
	ttl       time.Duration
	minFee    *big.Int
	verifier  SignatureVerifier
	rejected  []Rejection
}

// NewMempool constructs an empty mempool. ttl bounds how long a tx may sit
// unconfirmed before eviction; minFee is the per-tx admission floor.
func NewMempool(ttl time.Duration, minFee *big.Int, verifier SignatureVerifier) *Mempool {
	return &Mempool{
		byAccount: make(map[AccountID]map[Nonce]*MempoolTx),
		ttl:       ttl,
		minFee:    minFee,
		verifier:  verifier,
	}
}

// signable extracts the fields common to every mempool-eligible op kind:
// its payer, nonce, token, fee, and the signed message it must verify
// against.
func signable(committed *State, op Operation) (accountID AccountID, nonce Nonce, token TokenID, fee *big.Int, sig []byte, message []byte, err error) {
	switch o := op.(type) {
	case TransferOp:
		from, ok := committed.Account(o.FromID)
		if !ok {
			return 0, 0, 0, nil, nil, nil, reject(FailToAccountMissing, "from account missing")
		}
		to, ok := committed.Account(o.ToID)
		if !ok {
			return 0, 0, 0, nil, nil, nil, reject(FailToAccountMissing, "to account missing")
		}
		amtBytes, packOK := amountForm.packExact(o.Amount)
		if !packOK {
			return 0, 0, 0, nil, nil, nil, reject(FailNotPackable, "mempool admission amount")
		}
		msg, merr := SignedMessage(TagTransfer, o.FromID, from.Address, to.Address, o.Token, amtBytes, o.Fee, o.Nonce)
		return o.FromID, o.Nonce, o.Token, o.Fee, o.Sig, msg, merr
	case TransferToNewOp:
		from, ok := committed.Account(o.FromID)
		if !ok {
			return 0, 0, 0, nil, nil, nil, reject(FailToAccountMissing, "from account missing")
		}
		amtBytes, packOK := amountForm.packExact(o.Amount)
		if !packOK {
			return 0, 0, 0, nil, nil, nil, reject(FailNotPackable, "mempool admission amount")
		}
		msg, merr := SignedMessage(TagTransferToNew, o.FromID, from.Address, o.ToAddress, o.Token, amtBytes, o.Fee, o.Nonce)
		return o.FromID, o.Nonce, o.Token, o.Fee, o.Sig, msg, merr
	case WithdrawOp:
		from, ok := committed.Account(o.FromID)
		if !ok {
			return 0, 0, 0, nil, nil, nil, reject(FailToAccountMissing, "from account missing")
		}
		msg, merr := SignedMessage(TagWithdraw, o.FromID, from.Address, o.EthAddress, o.Token, bigTo16(o.Amount), o.Fee, o.Nonce)
		return o.FromID, o.Nonce, o.Token, o.Fee, o.Sig, msg, merr
	case ForcedExitOp:
		initiator, ok := committed.Account(o.InitiatorID)
		if !ok {
			return 0, 0, 0, nil, nil, nil, reject(FailToAccountMissing, "initiator account missing")
		}
		msg, merr := SignedMessage(TagForcedExit, o.InitiatorID, initiator.Address, o.TargetAddress, o.Token, nil, o.Fee, o.Nonce)
		return o.InitiatorID, o.Nonce, o.Token, o.Fee, o.Sig, msg, merr
	case CloseOp:
		acc, ok := committed.Account(o.ID)
		if !ok {
			return 0, 0, 0, nil, nil, nil, reject(FailInvalidAccountID, "account missing")
		}
		msg, merr := SignedMessage(TagClose, o.ID, acc.Address, Address{}, 0, nil, big.NewInt(0), o.Nonce)
		return o.ID, o.Nonce, 0, big.NewInt(0), o.Sig, msg, merr
	default:
		return 0, 0, 0, nil, nil, nil, reject(FailInvalidAccountID, "op kind not mempool-eligible")
	}
}

// Admit runs the mempool's admission checks — signature verifies, nonce is
// not already committed, amount/fee packable, token known, fee at least the
// configured minimum — and, on success, inserts or replaces the pending tx
// for its (account, nonce) slot.
func (m *Mempool) Admit(committed *State, op Operation, now time.Time) error {
	accountID, nonce, token, fee, sig, message, err := signable(committed, op)
	if err != nil {
		return err
	}
	acc, ok := committed.Account(accountID)
	if !ok {
		return reject(FailToAccountMissing, "account missing")
	}
	if !m.verifier.Verify(message, acc.Address, sig) {
		return reject(FailInvalidSignature, "mempool admission signature")
	}
	if nonce < acc.Nonce {
		return reject(FailNonceMismatch, "nonce already committed")
	}
	if !committed.Tokens.IsRegistered(token) {
		return reject(FailUnknownToken, "mempool admission token")
	}
	if _, ok := PackFee(fee); !ok {
		return reject(FailNotPackable, "mempool admission fee")
	}
	if fee.Cmp(m.minFee) < 0 {
		return reject(FailInsufficientFunds, "fee below minimum")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.byAccount[accountID]
	if !ok {
		slot = make(map[Nonce]*MempoolTx)
		m.byAccount[accountID] = slot
	}
	if existing, ok := slot[nonce]; ok && existing.Fee.Cmp(fee) >= 0 {
		return reject(FailInvalidSignature, "replacement fee not strictly higher")
	}
	slot[nonce] = &MempoolTx{
		Op:        op,
		AccountID: accountID,
		Nonce:     nonce,
		Token:     token,
		Fee:       fee,
		Chunks:    op.Chunks(),
		ArrivedAt: now,
	}
	return nil
}

// Remove drops the pending tx at (accountID, nonce), if any — used once a
// tx has been included in a block or permanently rejected at apply time.
func (m *Mempool) Remove(accountID AccountID, nonce Nonce) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot, ok := m.byAccount[accountID]; ok {
		delete(slot, nonce)
		if len(slot) == 0 {
			delete(m.byAccount, accountID)
		}
	}
}

// RecordRejection appends a rejection to the mempool's rejection log and
// removes the offending tx.
func (m *Mempool) RecordRejection(accountID AccountID, nonce Nonce, reason FailReason, at time.Time) {
	m.mu.Lock()
	m.rejected = append(m.rejected, Rejection{AccountID: accountID, Nonce: nonce, Reason: reason, At: at})
	m.mu.Unlock()
	m.Remove(accountID, nonce)
}

// Rejections returns a snapshot of the rejection log.
func (m *Mempool) Rejections() []Rejection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Rejection, len(m.rejected))
	copy(out, m.rejected)
	return out
}

// EvictCommitted drops every pending tx whose nonce has fallen below its
// account's committed nonce.
func (m *Mempool) EvictCommitted(committed *State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for accountID, slot := range m.byAccount {
		acc, ok := committed.Account(accountID)
		if !ok {
			continue
		}
		for nonce := range slot {
			if nonce < acc.Nonce {
				delete(slot, nonce)
			}
		}
		if len(slot) == 0 {
			delete(m.byAccount, accountID)
		}
	}
}

// EvictExpired drops every pending tx older than the configured TTL.
func (m *Mempool) EvictExpired(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for accountID, slot := range m.byAccount {
		for nonce, tx := range slot {
			if now.Sub(tx.ArrivedAt) > m.ttl {
				delete(slot, nonce)
			}
		}
		if len(slot) == 0 {
			delete(m.byAccount, accountID)
		}
	}
}

// Frontier returns, for every account with at least one pending tx whose
// nonce exactly matches the account's current nonce in state, that tx —
// the only tx from that account eligible for inclusion right now. A gap in
// an account's nonces blocks every later tx from that account until the
// gap is filled.
func (m *Mempool) Frontier(state *State) []*MempoolTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MempoolTx, 0, len(m.byAccount))
	for accountID, slot := range m.byAccount {
		acc, ok := state.Account(accountID)
		if !ok {
			continue
		}
		if tx, ok := slot[acc.Nonce]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// Len returns the total number of pending txs across all accounts.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, slot := range m.byAccount {
		n += len(slot)
	}
	return n
}
