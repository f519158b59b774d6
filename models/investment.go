package models

import "time"

// InvestmentSource indica o canal de aquisição dos tokens.
type InvestmentSource string

const (
	SourcePrimary   InvestmentSource = "PRIMARY"   // Leilão primário
	SourceSecondary InvestmentSource = "SECONDARY" // Mercado secundário
)

// Investment é a posição acumulada de um investidor em uma fatura.
// Aquisições múltiplas do mesmo investidor na mesma fatura são fundidas
// somando quantidade e custo, nunca substituídas.
type Investment struct {
	ID             string           `json:"id" db:"id"`
	InvoiceID      string           `json:"invoice_id" db:"invoice_id"`
	InvestorID     string           `json:"investor_id" db:"investor_id"`
	TokenAmount    int64            `json:"token_amount" db:"token_amount"`
	InvestedAmount int64            `json:"invested_amount" db:"invested_amount"` // Custo total pago (base de custo)
	Source         InvestmentSource `json:"source" db:"source"`
	Completed      bool             `json:"completed" db:"completed"`
	AcquiredAt     time.Time        `json:"acquired_at" db:"acquired_at"`
}
