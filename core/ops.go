package core

import "math/big"

// OpTag is the 1-byte discriminant each operation's pubdata begins with.
type OpTag byte

const (
	TagNoop          OpTag = 0
	TagDeposit       OpTag = 1
	TagTransferToNew OpTag = 2
	TagWithdraw      OpTag = 3
	TagClose         OpTag = 4
	TagTransfer      OpTag = 5
	TagFullExit      OpTag = 6
	TagChangePubKey  OpTag = 7
	TagForcedExit    OpTag = 8
)

// ChunkBytes is the fixed pubdata slot width every operation's encoding is
// padded to a whole multiple of.
const ChunkBytes = 9

// chunkCounts is the fixed chunk allocation per op kind, sized so that the
// tag plus every field the per-op table requires fits with room to spare.
var chunkCounts = map[OpTag]int{
	TagNoop:          1,
	TagDeposit:       6,
	TagTransferToNew: 9,
	TagWithdraw:      6,
	TagClose:         1,
	TagTransfer:      5,
	TagFullExit:      5,
	TagChangePubKey:  7,
	TagForcedExit:    6,
}

// Operation is any of the tagged variants an account's state transition can
// apply: Noop, Deposit, Transfer, TransferToNew, Withdraw, ChangePubKey,
// ForcedExit, FullExit, Close.
type Operation interface {
	Tag() OpTag
	Chunks() int
}

func (t OpTag) chunks() int { return chunkCounts[t] }

// NoopOp pads a block's remaining chunk budget.
type NoopOp struct{}

func (NoopOp) Tag() OpTag  { return TagNoop }
func (NoopOp) Chunks() int { return TagNoop.chunks() }

// DepositOp credits amount of token to the account owning toAddress, creating
// it if absent. It originates from the priority queue; it has no signature
// and cannot be rejected for anything but an unregistered token.
type DepositOp struct {
	ToAddress Address
	Token     TokenID
	Amount    *big.Int
}

func (DepositOp) Tag() OpTag  { return TagDeposit }
func (DepositOp) Chunks() int { return TagDeposit.chunks() }

// TransferOp moves amount (plus fee) of token from an existing account to
// another existing account, both by id.
type TransferOp struct {
	FromID AccountID
	ToID   AccountID
	Token  TokenID
	Amount *big.Int
	Fee    *big.Int
	Nonce  Nonce
	Sig    []byte
}

func (TransferOp) Tag() OpTag  { return TagTransfer }
func (TransferOp) Chunks() int { return TagTransfer.chunks() }

// TransferToNewOp is a Transfer whose destination has no account yet: the
// engine allocates the next free account id and binds it to toAddress before
// performing the transfer.
type TransferToNewOp struct {
	FromID    AccountID
	ToAddress Address
	Token     TokenID
	Amount    *big.Int
	Fee       *big.Int
	Nonce     Nonce
	Sig       []byte
}

func (TransferToNewOp) Tag() OpTag  { return TagTransferToNew }
func (TransferToNewOp) Chunks() int { return TagTransferToNew.chunks() }

// WithdrawOp debits amount (plus fee) of token from an L2 account and emits
// an L1 withdrawal intent to ethAddress. Unlike Transfer/TransferToNew,
// amount is encoded in full (not packed).
type WithdrawOp struct {
	FromID     AccountID
	EthAddress Address
	Token      TokenID
	Amount     *big.Int
	Fee        *big.Int
	Nonce      Nonce
	Sig        []byte
}

func (WithdrawOp) Tag() OpTag  { return TagWithdraw }
func (WithdrawOp) Chunks() int { return TagWithdraw.chunks() }

// ForcedExitOp lets initiatorID force a withdrawal of targetAddress's entire
// token balance, provided the target never set a signing key (and so cannot
// authorize its own withdrawal).
type ForcedExitOp struct {
	InitiatorID   AccountID
	TargetAddress Address
	Token         TokenID
	Fee           *big.Int
	Nonce         Nonce
	Sig           []byte
}

func (ForcedExitOp) Tag() OpTag  { return TagForcedExit }
func (ForcedExitOp) Chunks() int { return TagForcedExit.chunks() }

// ChangePubKeyAuthKind selects which of the two ChangePubKey authorization
// paths an op took.
type ChangePubKeyAuthKind byte

const (
	// ChangePubKeyAuthOnchain means authorization comes from an on-chain
	// pre-authorization already recorded in L1 state; AuthSig is unused.
	ChangePubKeyAuthOnchain ChangePubKeyAuthKind = iota
	// ChangePubKeyAuthEthSigned means the account authorizes itself with an
	// Ethereum-signed message carried in AuthSig.
	ChangePubKeyAuthEthSigned
)

// ChangePubKeyOp binds id's L2 signing key to newPubKeyHash. AuthKind
// selects the authorization path; AuthSig carries the Ethereum-signed
// authorization message when AuthKind is ChangePubKeyAuthEthSigned, and is
// unused otherwise.
type ChangePubKeyOp struct {
	ID            AccountID
	NewPubKeyHash PubKeyHash
	Nonce         Nonce
	AuthKind      ChangePubKeyAuthKind
	AuthSig       []byte
}

func (ChangePubKeyOp) Tag() OpTag  { return TagChangePubKey }
func (ChangePubKeyOp) Chunks() int { return TagChangePubKey.chunks() }

// FullExitOp drains id's entire balance of token to zero and emits the
// drained amount as an L1 withdrawal intent. It originates from the priority
// queue and always applies, even against a zero balance.
type FullExitOp struct {
	ID    AccountID
	Token TokenID
}

func (FullExitOp) Tag() OpTag  { return TagFullExit }
func (FullExitOp) Chunks() int { return TagFullExit.chunks() }

// CloseOp removes id from the accounts tree. It requires every balance to
// already be zero and a signing key to have been set.
type CloseOp struct {
	ID    AccountID
	Nonce Nonce
	Sig   []byte
}

func (CloseOp) Tag() OpTag  { return TagClose }
func (CloseOp) Chunks() int { return TagClose.chunks() }

// PriorityKind distinguishes the two op kinds the L1 watcher can enqueue.
type PriorityKind byte

const (
	PriorityDeposit PriorityKind = iota
	PriorityFullExit
)

// PriorityOp is one entry in the priority queue: an L1-originated operation
// that must reach a block before its deadline.
type PriorityOp struct {
	SerialID     uint64
	Kind         PriorityKind
	Payload      Operation // DepositOp or FullExitOp
	EthBlockHash [32]byte
	DeadlineBlock uint64
}
