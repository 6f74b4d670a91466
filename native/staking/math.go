package staking

import "math/big"

// maxBalance caps ledger amounts at the 128-bit range the runtime's balance
// type guarantees. Accumulation treats exceeding it as an overflow outcome.
var maxBalance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// ratMulFloor returns floor(r * v).
func ratMulFloor(r *big.Rat, v *big.Int) *big.Int {
	if r == nil || v == nil || v.Sign() == 0 || r.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Rat).Mul(r, new(big.Rat).SetInt(v))
	return new(big.Int).Quo(product.Num(), product.Denom())
}

// ratMulCeil returns ceil(r * v).
func ratMulCeil(r *big.Rat, v *big.Int) *big.Int {
	if r == nil || v == nil || v.Sign() == 0 || r.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Rat).Mul(r, new(big.Rat).SetInt(v))
	quotient, remainder := new(big.Int).QuoRem(product.Num(), product.Denom(), new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}

// leftFromOne returns 1 - r, clamped at zero.
func leftFromOne(r *big.Rat) *big.Rat {
	if r == nil {
		return big.NewRat(1, 1)
	}
	out := new(big.Rat).Sub(big.NewRat(1, 1), r)
	if out.Sign() < 0 {
		return big.NewRat(0, 1)
	}
	return out
}

// isFraction reports whether r lies in [0, 1].
func isFraction(r *big.Rat) bool {
	if r == nil {
		return false
	}
	return r.Sign() >= 0 && r.Cmp(big.NewRat(1, 1)) <= 0
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
