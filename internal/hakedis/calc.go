package hakedis

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ComputeAmounts - Hakediş tutar zinciri:
//
//	gross = amount + amount * feeRate/100
//	deduction = gross * advanceRate/100
//	net = gross - deduction
//
// Tüm sonuçlar iki haneye yuvarlanır. Aynı girdiyle her çağrı aynı sonucu verir.
func ComputeAmounts(amount, feeRate, advanceRate decimal.Decimal) (gross, deduction, net decimal.Decimal) {
	gross = amount.Add(amount.Mul(feeRate).Div(hundred)).Round(2)
	deduction = gross.Mul(advanceRate).Div(hundred).Round(2)
	net = gross.Sub(deduction)
	return gross, deduction, net
}
