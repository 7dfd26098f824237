package core

import (
	"bytes"
	"math/big"
	"testing"
)

func TestCodecRoundTripDeposit(t *testing.T) {
	rec := EncodeDeposit(7, Address{0xAA}, 3, big.NewInt(123456))
	value, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	got := value.(DecodedDeposit)
	if got.AccountID != 7 || got.To != (Address{0xAA}) || got.Token != 3 || got.Amount.Cmp(big.NewInt(123456)) != 0 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCodecRoundTripTransfer(t *testing.T) {
	op := TransferOp{FromID: 1, ToID: 2, Token: 0, Amount: big.NewInt(500000), Fee: big.NewInt(100000), Nonce: 4}
	rec, err := EncodeTransfer(op)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	value, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	got := value.(DecodedTransfer)
	if got.FromID != op.FromID || got.ToID != op.ToID || got.Token != op.Token || got.Nonce != op.Nonce {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Amount.Cmp(op.Amount) != 0 || got.Fee.Cmp(op.Fee) != 0 {
		t.Fatalf("amount/fee mismatch: got amount=%v fee=%v", got.Amount, got.Fee)
	}
}

func TestCodecRoundTripTransferToNew(t *testing.T) {
	op := TransferToNewOp{FromID: 1, ToAddress: Address{0xBB}, Token: 0, Amount: big.NewInt(70000), Fee: big.NewInt(1000), Nonce: 2}
	rec, err := EncodeTransferToNew(9, op)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	value, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	got := value.(DecodedTransferToNew)
	if got.FromID != op.FromID || got.ToID != 9 || got.ToAddress != op.ToAddress || got.Token != op.Token || got.Nonce != op.Nonce {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Amount.Cmp(op.Amount) != 0 || got.Fee.Cmp(op.Fee) != 0 {
		t.Fatalf("amount/fee mismatch: got amount=%v fee=%v", got.Amount, got.Fee)
	}
}

func TestCodecRoundTripWithdraw(t *testing.T) {
	op := WithdrawOp{FromID: 3, EthAddress: Address{0xCC}, Token: 1, Amount: big.NewInt(9999999999), Fee: big.NewInt(500), Nonce: 8}
	rec, err := EncodeWithdraw(op)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	value, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	got := value.(DecodedWithdraw)
	if got.FromID != op.FromID || got.EthAddress != op.EthAddress || got.Token != op.Token || got.Nonce != op.Nonce {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Amount.Cmp(op.Amount) != 0 {
		t.Fatalf("amount mismatch (must be full, not packed): got %v want %v", got.Amount, op.Amount)
	}
	if got.Fee.Cmp(op.Fee) != 0 {
		t.Fatalf("fee mismatch: got %v want %v", got.Fee, op.Fee)
	}
}

func TestCodecRoundTripForcedExit(t *testing.T) {
	op := ForcedExitOp{InitiatorID: 1, TargetAddress: Address{0xDD}, Token: 0, Fee: big.NewInt(200), Nonce: 6}
	rec, err := EncodeForcedExit(op, big.NewInt(4242))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	value, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	got := value.(DecodedForcedExit)
	if got.InitiatorID != op.InitiatorID || got.TargetAddress != op.TargetAddress || got.Token != op.Token || got.Nonce != op.Nonce {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Fee.Cmp(op.Fee) != 0 || got.Drained.Cmp(big.NewInt(4242)) != 0 {
		t.Fatalf("fee/drained mismatch: %+v", got)
	}
}

func TestCodecRoundTripChangePubKeyOnchain(t *testing.T) {
	op := ChangePubKeyOp{ID: 4, NewPubKeyHash: PubKeyHash{0x01}, Nonce: 1}
	rec := EncodeChangePubKey(op, [32]byte{}, false)
	value, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	got := value.(DecodedChangePubKey)
	if got.ID != op.ID || got.NewPubKeyHash != op.NewPubKeyHash || got.Nonce != op.Nonce || got.EthSigned {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCodecRoundTripChangePubKeyEthSigned(t *testing.T) {
	op := ChangePubKeyOp{ID: 4, NewPubKeyHash: PubKeyHash{0x02}, Nonce: 2}
	authHash := [32]byte{0xEE}
	rec := EncodeChangePubKey(op, authHash, true)
	value, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	got := value.(DecodedChangePubKey)
	if !got.EthSigned || got.AuthHash != authHash {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCodecRoundTripFullExit(t *testing.T) {
	op := FullExitOp{ID: 5, Token: 2}
	rec := EncodeFullExit(op, big.NewInt(77))
	value, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	got := value.(DecodedFullExit)
	if got.ID != op.ID || got.Token != op.Token || got.Amount.Cmp(big.NewInt(77)) != 0 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCodecRoundTripClose(t *testing.T) {
	op := CloseOp{ID: 11}
	rec := EncodeClose(op)
	value, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	got := value.(DecodedClose)
	if got.ID != op.ID {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCodecRoundTripNoop(t *testing.T) {
	rec := EncodeNoop()
	value, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	if _, ok := value.(struct{}); !ok {
		t.Fatalf("expected Noop decode to be an empty struct, got %T", value)
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	rec := EncodeDeposit(1, Address{}, 0, big.NewInt(1))
	if _, _, err := Decode(rec[:len(rec)-1]); err == nil {
		t.Fatalf("expected truncated decode to fail")
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	rec := bytes.Repeat([]byte{0xFF}, ChunkBytes)
	if _, _, err := Decode(rec); err == nil {
		t.Fatalf("expected unknown tag to fail")
	}
}

// FuzzCodecRoundTrip exercises the involution-style round-trip law on
// Transfer records: a record EncodeTransfer produced from fuzzed ids,
// amount, fee and nonce must decode back to the same account ids and nonce.
func FuzzCodecRoundTrip(f *testing.F) {
	f.Add(uint32(1), uint64(1000), uint64(10))
	f.Add(uint32(0), uint64(0), uint64(0))
	f.Fuzz(func(t *testing.T, id uint32, amount uint64, fee uint64) {
		op := TransferOp{
			FromID: AccountID(id % (1 << 20)),
			ToID:   AccountID((id + 1) % (1 << 20)),
			Token:  0,
			Amount: new(big.Int).SetUint64(amount % (1 << 35)),
			Fee:    new(big.Int).SetUint64(fee % (1 << 11)),
			Nonce:  Nonce(id),
		}
		rec, err := EncodeTransfer(op)
		if err != nil {
			// amount and fee are reduced below their mantissa ceilings
			// above, so both pack exactly at exponent 0; an encoding
			// error is skipped rather than reported.
			return
		}
		value, n, err := Decode(rec)
		if err != nil {
			t.Fatalf("decode failed on a record this package encoded: %v", err)
		}
		if n != len(rec) {
			t.Fatalf("consumed %d of %d bytes", n, len(rec))
		}
		got := value.(DecodedTransfer)
		if got.FromID != op.FromID || got.ToID != op.ToID || got.Nonce != op.Nonce {
			t.Fatalf("round trip mismatch: got %+v from %+v", got, op)
		}
	})
}
