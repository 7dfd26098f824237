package core

import (
	"encoding/binary"
	"math/big"
)

// Event is a side-channel observation Apply emits alongside its pubdata —
// useful for metrics and notifications, never consulted by the engine
// itself.
type Event struct {
	Kind      string
	AccountID AccountID
	Token     TokenID
	Amount    *big.Int
}

// Receipt is what a successful Apply call returns: the accounts tree's new
// root, the op's pubdata bytes, and any events it raised.
type Receipt struct {
	NewRoot Digest
	Pubdata []byte
	Events  []Event
}

// Apply validates op's preconditions against ws (in the fixed order each
// op's contract specifies, so rejection reasons are stable across releases)
// and, if they all hold, mutates ws and returns the resulting Receipt. On
// failure ws is left exactly as it was: every precondition is checked before
// any mutation happens. feeAccountID names the account every fee credits to.
func Apply(ws *WorkingState, op Operation, verifier SignatureVerifier, feeAccountID AccountID) (Receipt, error) {
	switch o := op.(type) {
	case NoopOp:
		return applyNoop(ws)
	case DepositOp:
		return applyDeposit(ws, o)
	case TransferOp:
		return applyTransfer(ws, o, verifier, feeAccountID)
	case TransferToNewOp:
		return applyTransferToNew(ws, o, verifier, feeAccountID)
	case WithdrawOp:
		return applyWithdraw(ws, o, verifier, feeAccountID)
	case ForcedExitOp:
		return applyForcedExit(ws, o, verifier, feeAccountID)
	case ChangePubKeyOp:
		return applyChangePubKey(ws, o, verifier)
	case FullExitOp:
		return applyFullExit(ws, o)
	case CloseOp:
		return applyClose(ws, o, verifier)
	default:
		return Receipt{}, reject(FailInvalidAccountID, "unknown operation kind")
	}
}

func applyNoop(ws *WorkingState) (Receipt, error) {
	pubdata := EncodeNoop()
	ws.record(NoopOp{}, pubdata)
	return Receipt{NewRoot: ws.Root(), Pubdata: pubdata}, nil
}

func applyDeposit(ws *WorkingState, op DepositOp) (Receipt, error) {
	if !ws.Tokens.IsRegistered(op.Token) {
		return Receipt{}, reject(FailUnknownToken, "deposit token")
	}
	acc, ok := ws.AccountByAddress(op.ToAddress)
	if !ok {
		var err error
		acc, err = ws.AllocateAccount(op.ToAddress)
		if err != nil {
			return Receipt{}, err
		}
	}
	if err := acc.Credit(ws.Hasher, op.Token, op.Amount); err != nil {
		return Receipt{}, err
	}
	if err := ws.putAccountLeaf(acc); err != nil {
		return Receipt{}, err
	}
	pubdata := EncodeDeposit(acc.ID, op.ToAddress, op.Token, op.Amount)
	ws.record(op, pubdata)
	return Receipt{
		NewRoot: ws.Root(),
		Pubdata: pubdata,
		Events:  []Event{{Kind: "deposit", AccountID: acc.ID, Token: op.Token, Amount: op.Amount}},
	}, nil
}

func applyTransfer(ws *WorkingState, op TransferOp, verifier SignatureVerifier, feeAccountID AccountID) (Receipt, error) {
	from, ok := ws.Account(op.FromID)
	if !ok {
		return Receipt{}, reject(FailToAccountMissing, "from account missing")
	}
	if from.PubKeyHash.IsZero() {
		return Receipt{}, reject(FailAccountLocked, "from account has no signing key")
	}
	// to is looked up (but not required to exist yet) so a destination
	// address is available to bind into the signed message; its absence is
	// rejected later, after every other precondition has passed.
	to, toExists := ws.Account(op.ToID)
	toAddress := Address{}
	if toExists {
		toAddress = to.Address
	}
	amtBytes, packOK := amountForm.packExact(op.Amount)
	msg, err := SignedMessage(TagTransfer, op.FromID, from.Address, toAddress, op.Token, amtBytes, op.Fee, op.Nonce)
	if err != nil || !verifier.Verify(msg, from.Address, op.Sig) {
		return Receipt{}, reject(FailInvalidSignature, "transfer signature")
	}
	if op.Nonce != from.Nonce {
		return Receipt{}, reject(FailNonceMismatch, "transfer nonce")
	}
	need := new(big.Int).Add(op.Amount, op.Fee)
	if from.Balance(op.Token).Cmp(need) < 0 {
		return Receipt{}, reject(FailInsufficientFunds, "transfer balance")
	}
	if !packOK {
		return Receipt{}, reject(FailNotPackable, "transfer amount")
	}
	if _, ok := PackFee(op.Fee); !ok {
		return Receipt{}, reject(FailNotPackable, "transfer fee")
	}
	if !toExists {
		return Receipt{}, reject(FailToAccountMissing, "to account missing")
	}
	if err := from.Debit(ws.Hasher, op.Token, need); err != nil {
		return Receipt{}, err
	}
	if err := to.Credit(ws.Hasher, op.Token, op.Amount); err != nil {
		return Receipt{}, err
	}
	if err := creditFeeAccount(ws, feeAccountID, op.Token, op.Fee); err != nil {
		return Receipt{}, err
	}
	from.Nonce++
	if err := ws.putAccountLeaf(from); err != nil {
		return Receipt{}, err
	}
	if err := ws.putAccountLeaf(to); err != nil {
		return Receipt{}, err
	}
	pubdata, err := EncodeTransfer(op)
	if err != nil {
		return Receipt{}, err
	}
	ws.record(op, pubdata)
	return Receipt{NewRoot: ws.Root(), Pubdata: pubdata}, nil
}

func applyTransferToNew(ws *WorkingState, op TransferToNewOp, verifier SignatureVerifier, feeAccountID AccountID) (Receipt, error) {
	from, ok := ws.Account(op.FromID)
	if !ok {
		return Receipt{}, reject(FailToAccountMissing, "from account missing")
	}
	if from.PubKeyHash.IsZero() {
		return Receipt{}, reject(FailAccountLocked, "from account has no signing key")
	}
	amtBytes, packOK := amountForm.packExact(op.Amount)
	msg, err := SignedMessage(TagTransferToNew, op.FromID, from.Address, op.ToAddress, op.Token, amtBytes, op.Fee, op.Nonce)
	if err != nil || !verifier.Verify(msg, from.Address, op.Sig) {
		return Receipt{}, reject(FailInvalidSignature, "transfer signature")
	}
	if op.Nonce != from.Nonce {
		return Receipt{}, reject(FailNonceMismatch, "transfer nonce")
	}
	need := new(big.Int).Add(op.Amount, op.Fee)
	if from.Balance(op.Token).Cmp(need) < 0 {
		return Receipt{}, reject(FailInsufficientFunds, "transfer balance")
	}
	if !packOK {
		return Receipt{}, reject(FailNotPackable, "transfer amount")
	}
	if _, ok := PackFee(op.Fee); !ok {
		return Receipt{}, reject(FailNotPackable, "transfer fee")
	}
	if _, exists := ws.AccountByAddress(op.ToAddress); exists {
		return Receipt{}, reject(FailToAccountMissing, "destination already has an account")
	}
	to, err := ws.AllocateAccount(op.ToAddress)
	if err != nil {
		return Receipt{}, err
	}
	if err := from.Debit(ws.Hasher, op.Token, need); err != nil {
		return Receipt{}, err
	}
	if err := to.Credit(ws.Hasher, op.Token, op.Amount); err != nil {
		return Receipt{}, err
	}
	if err := creditFeeAccount(ws, feeAccountID, op.Token, op.Fee); err != nil {
		return Receipt{}, err
	}
	from.Nonce++
	if err := ws.putAccountLeaf(from); err != nil {
		return Receipt{}, err
	}
	if err := ws.putAccountLeaf(to); err != nil {
		return Receipt{}, err
	}
	pubdata, err := EncodeTransferToNew(to.ID, op)
	if err != nil {
		return Receipt{}, err
	}
	ws.record(op, pubdata)
	return Receipt{NewRoot: ws.Root(), Pubdata: pubdata}, nil
}

func applyWithdraw(ws *WorkingState, op WithdrawOp, verifier SignatureVerifier, feeAccountID AccountID) (Receipt, error) {
	from, ok := ws.Account(op.FromID)
	if !ok {
		return Receipt{}, reject(FailToAccountMissing, "from account missing")
	}
	if from.PubKeyHash.IsZero() {
		return Receipt{}, reject(FailAccountLocked, "from account has no signing key")
	}
	msg, err := SignedMessage(TagWithdraw, op.FromID, from.Address, op.EthAddress, op.Token, bigTo16(op.Amount), op.Fee, op.Nonce)
	if err != nil || !verifier.Verify(msg, from.Address, op.Sig) {
		return Receipt{}, reject(FailInvalidSignature, "withdraw signature")
	}
	if op.Nonce != from.Nonce {
		return Receipt{}, reject(FailNonceMismatch, "withdraw nonce")
	}
	need := new(big.Int).Add(op.Amount, op.Fee)
	if from.Balance(op.Token).Cmp(need) < 0 {
		return Receipt{}, reject(FailInsufficientFunds, "withdraw balance")
	}
	if _, ok := PackFee(op.Fee); !ok {
		return Receipt{}, reject(FailNotPackable, "withdraw fee")
	}
	if err := from.Debit(ws.Hasher, op.Token, need); err != nil {
		return Receipt{}, err
	}
	if err := creditFeeAccount(ws, feeAccountID, op.Token, op.Fee); err != nil {
		return Receipt{}, err
	}
	from.Nonce++
	if err := ws.putAccountLeaf(from); err != nil {
		return Receipt{}, err
	}
	pubdata, err := EncodeWithdraw(op)
	if err != nil {
		return Receipt{}, err
	}
	ws.record(op, pubdata)
	return Receipt{NewRoot: ws.Root(), Pubdata: pubdata}, nil
}

func applyForcedExit(ws *WorkingState, op ForcedExitOp, verifier SignatureVerifier, feeAccountID AccountID) (Receipt, error) {
	initiator, ok := ws.Account(op.InitiatorID)
	if !ok {
		return Receipt{}, reject(FailToAccountMissing, "initiator account missing")
	}
	if initiator.PubKeyHash.IsZero() {
		return Receipt{}, reject(FailAccountLocked, "initiator has no signing key")
	}
	target, ok := ws.AccountByAddress(op.TargetAddress)
	if !ok {
		return Receipt{}, reject(FailToAccountMissing, "target account missing")
	}
	if !target.PubKeyHash.IsZero() {
		return Receipt{}, reject(FailTargetHasKey, "target is not forcibly extractable")
	}
	msg, err := SignedMessage(TagForcedExit, op.InitiatorID, initiator.Address, op.TargetAddress, op.Token, nil, op.Fee, op.Nonce)
	if err != nil || !verifier.Verify(msg, initiator.Address, op.Sig) {
		return Receipt{}, reject(FailInvalidSignature, "forced exit signature")
	}
	if op.Nonce != initiator.Nonce {
		return Receipt{}, reject(FailNonceMismatch, "forced exit nonce")
	}
	if initiator.Balance(op.Token).Cmp(op.Fee) < 0 {
		return Receipt{}, reject(FailInsufficientFunds, "forced exit fee balance")
	}
	if _, ok := PackFee(op.Fee); !ok {
		return Receipt{}, reject(FailNotPackable, "forced exit fee")
	}
	drained := target.Balance(op.Token)
	if err := initiator.Debit(ws.Hasher, op.Token, op.Fee); err != nil {
		return Receipt{}, err
	}
	if err := creditFeeAccount(ws, feeAccountID, op.Token, op.Fee); err != nil {
		return Receipt{}, err
	}
	if err := target.Debit(ws.Hasher, op.Token, drained); err != nil {
		return Receipt{}, err
	}
	initiator.Nonce++
	if err := ws.putAccountLeaf(initiator); err != nil {
		return Receipt{}, err
	}
	if err := ws.putAccountLeaf(target); err != nil {
		return Receipt{}, err
	}
	pubdata, err := EncodeForcedExit(op, drained)
	if err != nil {
		return Receipt{}, err
	}
	ws.record(op, pubdata)
	return Receipt{
		NewRoot: ws.Root(),
		Pubdata: pubdata,
		Events:  []Event{{Kind: "forced_exit", AccountID: target.ID, Token: op.Token, Amount: drained}},
	}, nil
}

// changePubKeyAuthMessage binds (id, newPubKeyHash, nonce) for the
// Ethereum-signed authorization path.
func changePubKeyAuthMessage(id AccountID, newPKH PubKeyHash, nonce Nonce) []byte {
	buf := make([]byte, 0, 4+20+4)
	var idBuf [4]byte
	binary.BigEndian.PutUint32(idBuf[:], uint32(id))
	buf = append(buf, idBuf[:]...)
	buf = append(buf, newPKH[:]...)
	var nonceBuf [4]byte
	binary.BigEndian.PutUint32(nonceBuf[:], uint32(nonce))
	buf = append(buf, nonceBuf[:]...)
	return buf
}

func applyChangePubKey(ws *WorkingState, op ChangePubKeyOp, verifier SignatureVerifier) (Receipt, error) {
	acc, ok := ws.Account(op.ID)
	if !ok {
		return Receipt{}, reject(FailToAccountMissing, "account missing")
	}
	if op.Nonce != acc.Nonce {
		return Receipt{}, reject(FailNonceMismatch, "change pubkey nonce")
	}
	ethSigned := op.AuthKind == ChangePubKeyAuthEthSigned
	var authHash [32]byte
	if ethSigned {
		msg := changePubKeyAuthMessage(op.ID, op.NewPubKeyHash, op.Nonce)
		if !verifier.Verify(msg, acc.Address, op.AuthSig) {
			return Receipt{}, reject(FailInvalidAuth, "change pubkey auth signature")
		}
		authHash = [32]byte(ws.Hasher.HashBytes(msg))
	}
	// On the on-chain path (AuthKind ChangePubKeyAuthOnchain) no signature
	// is checked here: the caller constructing this op is trusted to have
	// already confirmed the on-chain pre-authorization.
	acc.PubKeyHash = op.NewPubKeyHash
	acc.Nonce++
	if err := ws.putAccountLeaf(acc); err != nil {
		return Receipt{}, err
	}
	pubdata := EncodeChangePubKey(op, authHash, ethSigned)
	ws.record(op, pubdata)
	return Receipt{NewRoot: ws.Root(), Pubdata: pubdata}, nil
}

func applyFullExit(ws *WorkingState, op FullExitOp) (Receipt, error) {
	acc, ok := ws.Account(op.ID)
	if !ok {
		// FullExit always applies, even against an account that no longer
		// exists: the safe no-op variant is a zero-amount exit record.
		pubdata := EncodeFullExit(op, big.NewInt(0))
		ws.record(op, pubdata)
		return Receipt{NewRoot: ws.Root(), Pubdata: pubdata}, nil
	}
	drained := acc.Balance(op.Token)
	if err := acc.setBalance(ws.Hasher, op.Token, big.NewInt(0)); err != nil {
		return Receipt{}, err
	}
	if err := ws.putAccountLeaf(acc); err != nil {
		return Receipt{}, err
	}
	pubdata := EncodeFullExit(op, drained)
	ws.record(op, pubdata)
	return Receipt{
		NewRoot: ws.Root(),
		Pubdata: pubdata,
		Events:  []Event{{Kind: "full_exit", AccountID: acc.ID, Token: op.Token, Amount: drained}},
	}, nil
}

func applyClose(ws *WorkingState, op CloseOp, verifier SignatureVerifier) (Receipt, error) {
	acc, ok := ws.Account(op.ID)
	if !ok {
		return Receipt{}, reject(FailInvalidAccountID, "account missing")
	}
	if !acc.IsEmpty() {
		return Receipt{}, reject(FailAccountNotEmpty, "account has nonzero balances")
	}
	if acc.PubKeyHash.IsZero() {
		return Receipt{}, reject(FailInvalidSignature, "account has no signing key")
	}
	msg, err := SignedMessage(TagClose, op.ID, acc.Address, Address{}, 0, nil, big.NewInt(0), op.Nonce)
	if err != nil || !verifier.Verify(msg, acc.Address, op.Sig) {
		return Receipt{}, reject(FailInvalidSignature, "close signature")
	}
	if op.Nonce != acc.Nonce {
		return Receipt{}, reject(FailNonceMismatch, "close nonce")
	}
	if err := ws.removeAccount(op.ID); err != nil {
		return Receipt{}, err
	}
	pubdata := EncodeClose(op)
	ws.record(op, pubdata)
	return Receipt{NewRoot: ws.Root(), Pubdata: pubdata}, nil
}

func creditFeeAccount(ws *WorkingState, feeAccountID AccountID, token TokenID, amount *big.Int) error {
	fa, ok := ws.Account(feeAccountID)
	if !ok {
		return reject(FailInvalidAccountID, "fee account missing")
	}
	if err := fa.Credit(ws.Hasher, token, amount); err != nil {
		return err
	}
	return ws.putAccountLeaf(fa)
}
