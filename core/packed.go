package core

import "math/big"

// packedForm describes a (exponent, mantissa, base-10) floating encoding.
// Fees use 5-bit exponent / 11-bit mantissa (2 bytes); Transfer/
// TransferToNew amounts use 5-bit exponent / 35-bit mantissa (5 bytes). Both
// are byte-aligned by construction.
type packedForm struct {
	expBits, mantissaBits uint
}

var feeForm = packedForm{expBits: 5, mantissaBits: 11}    // 2 bytes
var amountForm = packedForm{expBits: 5, mantissaBits: 35} // 5 bytes

func (f packedForm) byteLen() int { return int(f.expBits+f.mantissaBits) / 8 }

var ten = big.NewInt(10)

// packApprox finds the smallest exponent e such that
// floor(value / 10^e) fits the mantissa width, returning a packed value that
// rounds value DOWN to the closest representable value — the rule fees are
// packed under. ok is false only if value cannot fit even at the largest
// allowed exponent.
func (f packedForm) packApprox(value *big.Int) (encoded []byte, ok bool) {
	exp, mantissa, found := f.search(value, false)
	if !found {
		return nil, false
	}
	return f.encode(exp, mantissa), true
}

// packExact packs value only if some exponent represents it with zero
// remainder; it is used for Transfer/TransferToNew amounts, which must be
// exactly representable.
func (f packedForm) packExact(value *big.Int) (encoded []byte, ok bool) {
	exp, mantissa, found := f.search(value, true)
	if !found {
		return nil, false
	}
	return f.encode(exp, mantissa), true
}

func (f packedForm) search(value *big.Int, exact bool) (exp uint64, mantissa uint64, ok bool) {
	if value.Sign() < 0 {
		return 0, 0, false
	}
	maxExp := (uint64(1) << f.expBits) - 1
	maxMantissa := new(big.Int).Lsh(big.NewInt(1), f.mantissaBits)
	divisor := big.NewInt(1)
	q, r := new(big.Int), new(big.Int)
	for e := uint64(0); e <= maxExp; e++ {
		if e > 0 {
			divisor.Mul(divisor, ten)
		}
		q.DivMod(value, divisor, r)
		if q.Cmp(maxMantissa) < 0 {
			if !exact || r.Sign() == 0 {
				return e, q.Uint64(), true
			}
		}
	}
	return 0, 0, false
}

func (f packedForm) encode(exp, mantissa uint64) []byte {
	combined := (exp << f.mantissaBits) | mantissa
	n := f.byteLen()
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(combined)
		combined >>= 8
	}
	return out
}

func (f packedForm) decode(data []byte) (*big.Int, bool) {
	if len(data) != f.byteLen() {
		return nil, false
	}
	var combined uint64
	for _, b := range data {
		combined = (combined << 8) | uint64(b)
	}
	mantissaMask := (uint64(1) << f.mantissaBits) - 1
	mantissa := combined & mantissaMask
	exp := combined >> f.mantissaBits
	value := new(big.Int).Exp(ten, big.NewInt(int64(exp)), nil)
	value.Mul(value, new(big.Int).SetUint64(mantissa))
	return value, true
}

// PackFee packs a fee amount, requiring exact representability: a fee that
// only the closest-representable-≤-requested rounding could encode is
// NotPackable here, not silently discounted. A compliant submitter rounds
// its offered fee down to a representable value before signing; were this
// pack to round down again at apply time, pubdata would record a lower fee
// than the balance debit it came from, breaking the conservation invariant
// the moment the two values diverge by even one unit.
func PackFee(fee *big.Int) ([]byte, bool) { return feeForm.packExact(fee) }

// SuggestFee rounds down an intended fee to the closest value PackFee can
// encode exactly — the computation a wallet performs before signing, kept
// here so callers never have to reimplement the rounding rule themselves.
func SuggestFee(fee *big.Int) (*big.Int, bool) {
	encoded, ok := feeForm.packApprox(fee)
	if !ok {
		return nil, false
	}
	return feeForm.decode(encoded)
}

// UnpackFee decodes a 2-byte packed fee back into its big.Int value.
func UnpackFee(data []byte) (*big.Int, bool) { return feeForm.decode(data) }

// PackAmountExact packs a Transfer/TransferToNew amount, requiring exact
// representability; ok=false means the amount is NotPackable.
func PackAmountExact(amount *big.Int) ([]byte, bool) { return amountForm.packExact(amount) }

// UnpackAmount decodes a 5-byte packed amount back into its big.Int value.
func UnpackAmount(data []byte) (*big.Int, bool) { return amountForm.decode(data) }
