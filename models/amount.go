package models

import "math/big"

// MulDiv calcula a*b/c em aritmética inteira, truncando em direção a zero.
// O produto intermediário usa big.Int porque token_amount*price pode
// exceder int64. Divisor zero resulta em zero, não em erro.
func MulDiv(a, b, c int64) int64 {
	if c == 0 {
		return 0
	}
	p := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	p.Quo(p, big.NewInt(c))
	return p.Int64()
}

// DiscountBps calcula o desconto em pontos-base entre o valor de face e o
// preço atual. Nunca negativo; valor de face zero resulta em zero.
func DiscountBps(faceValue, currentPrice int64) int64 {
	if faceValue == 0 {
		return 0
	}
	bps := MulDiv(faceValue-currentPrice, 10000, faceValue)
	if bps < 0 {
		return 0
	}
	return bps
}
