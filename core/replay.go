package core

import (
	"fmt"
	"math/big"
)

// Replay decodes a block's pubdata against prior, reapplying each op's
// recorded effects to a fresh overlay, and asserts the final root equals
// declaredRoot. It uses the same codec tables the engine used to produce
// the pubdata in the first place; any divergence — a decode failure, an
// effect that cannot be reapplied, or a root mismatch — is a consensus bug,
// reported as ErrInvariantViolation.
//
// Replay does not re-check signatures or re-run admission: pubdata is only
// ever produced by a prior successful Apply, so its effects are trusted:
// replay exists to let a verifier recompute the state transition from public
// data alone, not to re-derive whether it should have happened.
func Replay(prior *State, pubdata []byte, declaredRoot Digest, feeAccountID AccountID) error {
	ws := BeginBlock(prior)
	offset := 0
	for offset < len(pubdata) {
		value, n, err := Decode(pubdata[offset:])
		if err != nil {
			return fmt.Errorf("%w: decode at offset %d: %v", ErrInvariantViolation, offset, err)
		}
		if err := replayOne(ws, value, feeAccountID); err != nil {
			return fmt.Errorf("%w: reapply at offset %d: %v", ErrInvariantViolation, offset, err)
		}
		offset += n
	}
	if ws.Root() != declaredRoot {
		return fmt.Errorf("%w: root mismatch: got %x want %x", ErrInvariantViolation, ws.Root(), declaredRoot)
	}
	return nil
}

func replayOne(ws *WorkingState, value any, feeAccountID AccountID) error {
	switch v := value.(type) {
	case struct{}: // Noop
		return nil
	case DecodedDeposit:
		acc := ws.ensureAccountAt(v.AccountID, v.To)
		if err := acc.Credit(ws.Hasher, v.Token, v.Amount); err != nil {
			return err
		}
		return ws.putAccountLeaf(acc)
	case DecodedTransfer:
		from, ok := ws.Account(v.FromID)
		if !ok {
			return reject(FailToAccountMissing, "replay: from account missing")
		}
		to, ok := ws.Account(v.ToID)
		if !ok {
			return reject(FailToAccountMissing, "replay: to account missing")
		}
		need := new(big.Int).Add(v.Amount, v.Fee)
		if err := from.Debit(ws.Hasher, v.Token, need); err != nil {
			return err
		}
		if err := to.Credit(ws.Hasher, v.Token, v.Amount); err != nil {
			return err
		}
		if err := creditFeeAccount(ws, feeAccountID, v.Token, v.Fee); err != nil {
			return err
		}
		from.Nonce++
		if err := ws.putAccountLeaf(from); err != nil {
			return err
		}
		return ws.putAccountLeaf(to)
	case DecodedTransferToNew:
		from, ok := ws.Account(v.FromID)
		if !ok {
			return reject(FailToAccountMissing, "replay: from account missing")
		}
		to := ws.ensureAccountAt(v.ToID, v.ToAddress)
		need := new(big.Int).Add(v.Amount, v.Fee)
		if err := from.Debit(ws.Hasher, v.Token, need); err != nil {
			return err
		}
		if err := to.Credit(ws.Hasher, v.Token, v.Amount); err != nil {
			return err
		}
		if err := creditFeeAccount(ws, feeAccountID, v.Token, v.Fee); err != nil {
			return err
		}
		from.Nonce++
		if err := ws.putAccountLeaf(from); err != nil {
			return err
		}
		return ws.putAccountLeaf(to)
	case DecodedWithdraw:
		from, ok := ws.Account(v.FromID)
		if !ok {
			return reject(FailToAccountMissing, "replay: from account missing")
		}
		need := new(big.Int).Add(v.Amount, v.Fee)
		if err := from.Debit(ws.Hasher, v.Token, need); err != nil {
			return err
		}
		if err := creditFeeAccount(ws, feeAccountID, v.Token, v.Fee); err != nil {
			return err
		}
		from.Nonce++
		return ws.putAccountLeaf(from)
	case DecodedForcedExit:
		initiator, ok := ws.Account(v.InitiatorID)
		if !ok {
			return reject(FailToAccountMissing, "replay: initiator account missing")
		}
		target, ok := ws.AccountByAddress(v.TargetAddress)
		if !ok {
			return reject(FailToAccountMissing, "replay: target account missing")
		}
		if err := initiator.Debit(ws.Hasher, v.Token, v.Fee); err != nil {
			return err
		}
		if err := creditFeeAccount(ws, feeAccountID, v.Token, v.Fee); err != nil {
			return err
		}
		if err := target.setBalance(ws.Hasher, v.Token, big.NewInt(0)); err != nil {
			return err
		}
		initiator.Nonce++
		if err := ws.putAccountLeaf(initiator); err != nil {
			return err
		}
		return ws.putAccountLeaf(target)
	case DecodedChangePubKey:
		acc, ok := ws.Account(v.ID)
		if !ok {
			return reject(FailToAccountMissing, "replay: account missing")
		}
		acc.PubKeyHash = v.NewPubKeyHash
		acc.Nonce++
		return ws.putAccountLeaf(acc)
	case DecodedFullExit:
		acc, ok := ws.Account(v.ID)
		if !ok {
			return nil // safe no-op variant: account already gone
		}
		if err := acc.setBalance(ws.Hasher, v.Token, big.NewInt(0)); err != nil {
			return err
		}
		return ws.putAccountLeaf(acc)
	case DecodedClose:
		return ws.removeAccount(v.ID)
	default:
		return fmt.Errorf("replay: unrecognized decoded value %T", value)
	}
}
