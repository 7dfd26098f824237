package main

import "math/big"

func newBigFromUint64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
