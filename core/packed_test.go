package core

import (
	"math/big"
	"testing"
)

func TestPackFeeExactRoundTrip(t *testing.T) {
	fee := big.NewInt(2047 * 100000) // mantissa 2047, exponent 5: exactly representable
	encoded, ok := PackFee(fee)
	if !ok {
		t.Fatalf("expected fee to be packable")
	}
	got, ok := UnpackFee(encoded)
	if !ok || got.Cmp(fee) != 0 {
		t.Fatalf("round trip mismatch: got %v, want %v", got, fee)
	}
}

func TestPackFeeRejectsUnrepresentable(t *testing.T) {
	fee := new(big.Int).Add(big.NewInt(2047*100000), big.NewInt(1))
	if _, ok := PackFee(fee); ok {
		t.Fatalf("expected fee %s to be rejected as not exactly packable", fee)
	}
}

func TestPackFeeRejectsNegative(t *testing.T) {
	if _, ok := PackFee(big.NewInt(-1)); ok {
		t.Fatalf("expected negative fee to be rejected")
	}
}

func TestSuggestFeeRoundsDown(t *testing.T) {
	requested := new(big.Int).Add(big.NewInt(2047*100000), big.NewInt(1))
	suggested, ok := SuggestFee(requested)
	if !ok {
		t.Fatalf("expected a suggestion")
	}
	if suggested.Cmp(requested) >= 0 {
		t.Fatalf("suggested fee %s should be strictly below requested %s", suggested, requested)
	}
	if _, ok := PackFee(suggested); !ok {
		t.Fatalf("suggested fee %s should itself be exactly packable", suggested)
	}
}

func TestPackAmountExactRoundTrip(t *testing.T) {
	amount := new(big.Int).Mul(big.NewInt(12345), big.NewInt(1000))
	encoded, ok := PackAmountExact(amount)
	if !ok {
		t.Fatalf("expected amount to be packable")
	}
	got, ok := UnpackAmount(encoded)
	if !ok || got.Cmp(amount) != 0 {
		t.Fatalf("round trip mismatch: got %v, want %v", got, amount)
	}
}

func TestPackAmountExactRejectsUnrepresentable(t *testing.T) {
	// Largest mantissa+1 at exponent 0 is never exactly representable at any
	// exponent if its low digit is nonzero and it exceeds the mantissa width.
	amount := new(big.Int).Lsh(big.NewInt(1), 35) // 2^35, one past the 35-bit mantissa ceiling, ends in a nonzero bit pattern not a clean power of ten
	amount.Add(amount, big.NewInt(3))
	if _, ok := PackAmountExact(amount); ok {
		t.Fatalf("expected amount %s to be rejected as not exactly packable", amount)
	}
}
