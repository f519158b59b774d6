package models

import "time"

// InvestorDistribution é o registro imutável da parcela de um investidor
// na liquidação de uma fatura. Criado uma única vez por (posição,
// liquidação); nunca recalculado.
type InvestorDistribution struct {
	ID                 string    `json:"id" db:"id"`
	InvoiceID          string    `json:"invoice_id" db:"invoice_id"`
	InvestorID         string    `json:"investor_id" db:"investor_id"`
	TokenAmount        int64     `json:"token_amount" db:"token_amount"`
	InvestedAmount     int64     `json:"invested_amount" db:"invested_amount"`
	DistributionAmount int64     `json:"distribution_amount" db:"distribution_amount"`
	Profit             int64     `json:"profit" db:"profit"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
