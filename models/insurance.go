package models

import "time"

// InsurancePool é o fundo compartilhado que cobre parcialmente faturas
// inadimplentes. Linha única, creditada a cada investimento primário.
type InsurancePool struct {
	Balance     int64 `json:"balance" db:"balance"`
	TotalClaims int64 `json:"total_claims" db:"total_claims"`
}

// InsuranceClaim é uma reivindicação de seguro. A existência de uma
// reivindicação confirmada para (fatura, investidor) é a própria guarda
// contra reivindicação dupla.
type InsuranceClaim struct {
	ID         string    `json:"id" db:"id"`
	InvoiceID  string    `json:"invoice_id" db:"invoice_id"`
	InvestorID string    `json:"investor_id" db:"investor_id"`
	Amount     int64     `json:"amount" db:"amount"` // Valor pago (50% da base de custo, limitado ao saldo do fundo)
	TxHash     string    `json:"tx_hash" db:"tx_hash"`
	ClaimedAt  time.Time `json:"claimed_at" db:"claimed_at"`
}
