package core

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

func putUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func putUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func putAddress(buf []byte, a Address) []byte   { return append(buf, a[:]...) }
func putPubKeyHash(buf []byte, p PubKeyHash) []byte { return append(buf, p[:]...) }

func padToChunks(data []byte, chunks int) []byte {
	out := make([]byte, chunks*ChunkBytes)
	copy(out, data)
	return out
}

// EncodeNoop returns a chunk-padded Noop record: just the tag.
func EncodeNoop() []byte {
	return padToChunks([]byte{byte(TagNoop)}, TagNoop.chunks())
}

// EncodeDeposit writes a Deposit record. accountID is the (possibly newly
// allocated) account that received the funds, resolved by apply before the
// pubdata is produced.
func EncodeDeposit(accountID AccountID, to Address, token TokenID, amount *big.Int) []byte {
	buf := []byte{byte(TagDeposit)}
	buf = putUint32(buf, uint32(accountID))
	buf = putAddress(buf, to)
	buf = putUint16(buf, uint16(token))
	buf = append(buf, bigTo16(amount)...)
	return padToChunks(buf, TagDeposit.chunks())
}

// DecodedDeposit is what Decode reconstructs from a Deposit record.
type DecodedDeposit struct {
	AccountID AccountID
	To        Address
	Token     TokenID
	Amount    *big.Int
}

// EncodeTransfer writes a Transfer record.
func EncodeTransfer(op TransferOp) ([]byte, error) {
	amt, ok := PackAmountExact(op.Amount)
	if !ok {
		return nil, reject(FailNotPackable, "transfer amount")
	}
	fee, ok := PackFee(op.Fee)
	if !ok {
		return nil, reject(FailNotPackable, "transfer fee")
	}
	buf := []byte{byte(TagTransfer)}
	buf = putUint32(buf, uint32(op.FromID))
	buf = putUint32(buf, uint32(op.ToID))
	buf = putUint16(buf, uint16(op.Token))
	buf = append(buf, amt...)
	buf = append(buf, fee...)
	buf = putUint32(buf, uint32(op.Nonce))
	return padToChunks(buf, TagTransfer.chunks()), nil
}

// DecodedTransfer is what Decode reconstructs from a Transfer record.
type DecodedTransfer struct {
	FromID, ToID AccountID
	Token        TokenID
	Amount, Fee  *big.Int
	Nonce        Nonce
}

// EncodeTransferToNew writes a TransferToNew record. assignedID is the
// account id the engine allocated for toAddress.
func EncodeTransferToNew(assignedID AccountID, op TransferToNewOp) ([]byte, error) {
	amt, ok := PackAmountExact(op.Amount)
	if !ok {
		return nil, reject(FailNotPackable, "transfer amount")
	}
	fee, ok := PackFee(op.Fee)
	if !ok {
		return nil, reject(FailNotPackable, "transfer fee")
	}
	buf := []byte{byte(TagTransferToNew)}
	buf = putUint32(buf, uint32(op.FromID))
	buf = putUint32(buf, uint32(assignedID))
	buf = putAddress(buf, op.ToAddress)
	buf = putUint16(buf, uint16(op.Token))
	buf = append(buf, amt...)
	buf = append(buf, fee...)
	buf = putUint32(buf, uint32(op.Nonce))
	return padToChunks(buf, TagTransferToNew.chunks()), nil
}

// DecodedTransferToNew is what Decode reconstructs from a TransferToNew
// record.
type DecodedTransferToNew struct {
	FromID, ToID AccountID
	ToAddress    Address
	Token        TokenID
	Amount, Fee  *big.Int
	Nonce        Nonce
}

// EncodeWithdraw writes a Withdraw record. Amount is encoded in full, not
// packed.
func EncodeWithdraw(op WithdrawOp) ([]byte, error) {
	fee, ok := PackFee(op.Fee)
	if !ok {
		return nil, reject(FailNotPackable, "withdraw fee")
	}
	buf := []byte{byte(TagWithdraw)}
	buf = putUint32(buf, uint32(op.FromID))
	buf = putAddress(buf, op.EthAddress)
	buf = putUint16(buf, uint16(op.Token))
	buf = append(buf, bigTo16(op.Amount)...)
	buf = append(buf, fee...)
	buf = putUint32(buf, uint32(op.Nonce))
	return padToChunks(buf, TagWithdraw.chunks()), nil
}

// DecodedWithdraw is what Decode reconstructs from a Withdraw record.
type DecodedWithdraw struct {
	FromID     AccountID
	EthAddress Address
	Token      TokenID
	Amount, Fee *big.Int
	Nonce      Nonce
}

// EncodeForcedExit writes a ForcedExit record. drained is the target
// account's balance at the moment of the forced exit, carried in the pubdata
// so the L1 withdraw intent it produces knows what to release.
func EncodeForcedExit(op ForcedExitOp, drained *big.Int) ([]byte, error) {
	fee, ok := PackFee(op.Fee)
	if !ok {
		return nil, reject(FailNotPackable, "forced exit fee")
	}
	buf := []byte{byte(TagForcedExit)}
	buf = putUint32(buf, uint32(op.InitiatorID))
	buf = putAddress(buf, op.TargetAddress)
	buf = putUint16(buf, uint16(op.Token))
	buf = append(buf, fee...)
	buf = putUint32(buf, uint32(op.Nonce))
	buf = append(buf, bigTo16(drained)...)
	return padToChunks(buf, TagForcedExit.chunks()), nil
}

// DecodedForcedExit is what Decode reconstructs from a ForcedExit record.
type DecodedForcedExit struct {
	InitiatorID   AccountID
	TargetAddress Address
	Token         TokenID
	Fee           *big.Int
	Nonce         Nonce
	Drained       *big.Int
}

// changePubKeyAuthOnchain/changePubKeyAuthEthSigned distinguish the two
// authorization paths ChangePubKey accepts. Both write this 1-byte flag into
// the record; only the Ethereum-signed path follows it with the 32-byte
// digest of the signed authorization message.
const (
	changePubKeyAuthOnchain  byte = 0
	changePubKeyAuthEthSigned byte = 1
)

// EncodeChangePubKey writes a ChangePubKey record. authHash is the 32-byte
// digest of the Ethereum-signed authorization message; pass a zero value
// when the account was authorized on-chain instead.
func EncodeChangePubKey(op ChangePubKeyOp, authHash [32]byte, ethSigned bool) []byte {
	buf := []byte{byte(TagChangePubKey)}
	buf = putUint32(buf, uint32(op.ID))
	buf = putPubKeyHash(buf, op.NewPubKeyHash)
	buf = putUint32(buf, uint32(op.Nonce))
	if ethSigned {
		buf = append(buf, changePubKeyAuthEthSigned)
		buf = append(buf, authHash[:]...)
	} else {
		buf = append(buf, changePubKeyAuthOnchain)
	}
	return padToChunks(buf, TagChangePubKey.chunks())
}

// DecodedChangePubKey is what Decode reconstructs from a ChangePubKey
// record.
type DecodedChangePubKey struct {
	ID            AccountID
	NewPubKeyHash PubKeyHash
	Nonce         Nonce
	EthSigned     bool
	AuthHash      [32]byte
}

// EncodeFullExit writes a FullExit record. drained is the account's balance
// at the moment of exit (possibly zero).
func EncodeFullExit(op FullExitOp, drained *big.Int) []byte {
	buf := []byte{byte(TagFullExit)}
	buf = putUint32(buf, uint32(op.ID))
	buf = putUint16(buf, uint16(op.Token))
	buf = append(buf, bigTo16(drained)...)
	return padToChunks(buf, TagFullExit.chunks())
}

// DecodedFullExit is what Decode reconstructs from a FullExit record.
type DecodedFullExit struct {
	ID     AccountID
	Token  TokenID
	Amount *big.Int
}

// EncodeClose writes a Close record.
func EncodeClose(op CloseOp) []byte {
	buf := []byte{byte(TagClose)}
	buf = putUint32(buf, uint32(op.ID))
	return padToChunks(buf, TagClose.chunks())
}

// DecodedClose is what Decode reconstructs from a Close record.
type DecodedClose struct {
	ID AccountID
}

func bigTo16(v *big.Int) []byte {
	out := make([]byte, 16)
	if v == nil {
		return out
	}
	b := v.Bytes()
	copy(out[16-len(b):], b)
	return out
}

// Decode reads one pubdata record starting at data[0], returning the decoded
// value (one of the Decoded* types above), the number of bytes consumed
// (always a whole number of chunks), and an error if the tag is unknown or
// data is truncated.
func Decode(data []byte) (value any, consumed int, err error) {
	if len(data) < 1 {
		return nil, 0, fmt.Errorf("codec: empty pubdata")
	}
	tag := OpTag(data[0])
	n := tag.chunks() * ChunkBytes
	if n == 0 {
		return nil, 0, fmt.Errorf("codec: unknown op tag %d", tag)
	}
	if len(data) < n {
		return nil, 0, fmt.Errorf("codec: truncated record for tag %d", tag)
	}
	rec := data[:n]
	switch tag {
	case TagNoop:
		return struct{}{}, n, nil
	case TagDeposit:
		id := binary.BigEndian.Uint32(rec[1:5])
		var to Address
		copy(to[:], rec[5:25])
		token := binary.BigEndian.Uint16(rec[25:27])
		amount := new(big.Int).SetBytes(rec[27:43])
		return DecodedDeposit{AccountID: AccountID(id), To: to, Token: TokenID(token), Amount: amount}, n, nil
	case TagTransfer:
		from := binary.BigEndian.Uint32(rec[1:5])
		to := binary.BigEndian.Uint32(rec[5:9])
		token := binary.BigEndian.Uint16(rec[9:11])
		amount, ok := amountForm.decode(rec[11:16])
		if !ok {
			return nil, 0, fmt.Errorf("codec: bad packed amount")
		}
		fee, ok := feeForm.decode(rec[16:18])
		if !ok {
			return nil, 0, fmt.Errorf("codec: bad packed fee")
		}
		nonce := binary.BigEndian.Uint32(rec[18:22])
		return DecodedTransfer{FromID: AccountID(from), ToID: AccountID(to), Token: TokenID(token), Amount: amount, Fee: fee, Nonce: Nonce(nonce)}, n, nil
	case TagTransferToNew:
		from := binary.BigEndian.Uint32(rec[1:5])
		to := binary.BigEndian.Uint32(rec[5:9])
		var toAddr Address
		copy(toAddr[:], rec[9:29])
		token := binary.BigEndian.Uint16(rec[29:31])
		amount, ok := amountForm.decode(rec[31:36])
		if !ok {
			return nil, 0, fmt.Errorf("codec: bad packed amount")
		}
		fee, ok := feeForm.decode(rec[36:38])
		if !ok {
			return nil, 0, fmt.Errorf("codec: bad packed fee")
		}
		nonce := binary.BigEndian.Uint32(rec[38:42])
		return DecodedTransferToNew{FromID: AccountID(from), ToID: AccountID(to), ToAddress: toAddr, Token: TokenID(token), Amount: amount, Fee: fee, Nonce: Nonce(nonce)}, n, nil
	case TagWithdraw:
		from := binary.BigEndian.Uint32(rec[1:5])
		var eth Address
		copy(eth[:], rec[5:25])
		token := binary.BigEndian.Uint16(rec[25:27])
		amount := new(big.Int).SetBytes(rec[27:43])
		fee, ok := feeForm.decode(rec[43:45])
		if !ok {
			return nil, 0, fmt.Errorf("codec: bad packed fee")
		}
		nonce := binary.BigEndian.Uint32(rec[45:49])
		return DecodedWithdraw{FromID: AccountID(from), EthAddress: eth, Token: TokenID(token), Amount: amount, Fee: fee, Nonce: Nonce(nonce)}, n, nil
	case TagForcedExit:
		initiator := binary.BigEndian.Uint32(rec[1:5])
		var target Address
		copy(target[:], rec[5:25])
		token := binary.BigEndian.Uint16(rec[25:27])
		fee, ok := feeForm.decode(rec[27:29])
		if !ok {
			return nil, 0, fmt.Errorf("codec: bad packed fee")
		}
		nonce := binary.BigEndian.Uint32(rec[29:33])
		drained := new(big.Int).SetBytes(rec[33:49])
		return DecodedForcedExit{InitiatorID: AccountID(initiator), TargetAddress: target, Token: TokenID(token), Fee: fee, Nonce: Nonce(nonce), Drained: drained}, n, nil
	case TagChangePubKey:
		id := binary.BigEndian.Uint32(rec[1:5])
		var pkh PubKeyHash
		copy(pkh[:], rec[5:25])
		nonce := binary.BigEndian.Uint32(rec[25:29])
		authFlag := rec[29]
		out := DecodedChangePubKey{ID: AccountID(id), NewPubKeyHash: pkh, Nonce: Nonce(nonce)}
		if authFlag == changePubKeyAuthEthSigned {
			out.EthSigned = true
			copy(out.AuthHash[:], rec[30:62])
		}
		return out, n, nil
	case TagFullExit:
		id := binary.BigEndian.Uint32(rec[1:5])
		token := binary.BigEndian.Uint16(rec[5:7])
		amount := new(big.Int).SetBytes(rec[7:23])
		return DecodedFullExit{ID: AccountID(id), Token: TokenID(token), Amount: amount}, n, nil
	case TagClose:
		id := binary.BigEndian.Uint32(rec[1:5])
		return DecodedClose{ID: AccountID(id)}, n, nil
	default:
		return nil, 0, fmt.Errorf("codec: unknown op tag %d", tag)
	}
}

// SignedMessage builds the canonical byte layout an L2 signature covers: a
// 1-byte op tag, the payer account id, the payer's L1 address, the
// recipient's L1/eth address, the token id, the amount (caller-encoded —
// packed for Transfer/TransferToNew, full 16 bytes for Withdraw, omitted
// entirely for ForcedExit/Close), the packed fee, and the nonce, all
// big-endian and fixed-width. Any deviation invalidates the signature.
func SignedMessage(tag OpTag, payerID AccountID, fromAddress, toAddress Address, token TokenID, amountBytes []byte, fee *big.Int, nonce Nonce) ([]byte, error) {
	buf := []byte{byte(tag)}
	buf = putUint32(buf, uint32(payerID))
	buf = putAddress(buf, fromAddress)
	buf = putAddress(buf, toAddress)
	buf = putUint16(buf, uint16(token))
	buf = append(buf, amountBytes...)
	packedFee, ok := PackFee(fee)
	if !ok {
		return nil, reject(FailNotPackable, "signed message fee")
	}
	buf = append(buf, packedFee...)
	buf = putUint32(buf, uint32(nonce))
	return buf, nil
}
