package models

import "time"

// InvoiceStatus representa o estado do ciclo de vida de uma fatura.
type InvoiceStatus string

const (
	StatusPending   InvoiceStatus = "PENDING"   // Criada, aguardando confirmação do mint on-chain
	StatusDraft     InvoiceStatus = "DRAFT"     // Mint confirmado, aguardando aprovação do comprador
	StatusVerified  InvoiceStatus = "VERIFIED"  // Aprovada pelo comprador, tokens emitidos
	StatusFunding   InvoiceStatus = "FUNDING"   // Leilão holandês em andamento
	StatusFunded    InvoiceStatus = "FUNDED"    // Todos os tokens vendidos
	StatusOverdue   InvoiceStatus = "OVERDUE"   // Vencida sem liquidação
	StatusSettled   InvoiceStatus = "SETTLED"   // Comprador pagou, fundos distribuídos
	StatusDefaulted InvoiceStatus = "DEFAULTED" // Inadimplente após período de carência
	StatusDisputed  InvoiceStatus = "DISPUTED"  // Disputa aberta pelo comprador, congelada
	StatusRevoked   InvoiceStatus = "REVOKED"   // Revogada pelo fornecedor
)

// Invoice representa uma fatura comercial tokenizada.
// Todos os valores monetários e de tokens são inteiros em unidades base
// (7 casas decimais, como no ledger Stellar).
type Invoice struct {
	ID              string        `json:"id" db:"id"`
	BusinessID      string        `json:"business_id" db:"business_id"`             // Ex: "INV-1001"
	LedgerInvoiceID string        `json:"ledger_invoice_id" db:"ledger_invoice_id"` // ID da fatura no contrato on-chain
	SupplierID      string        `json:"supplier_id" db:"supplier_id"`
	BuyerID         string        `json:"buyer_id" db:"buyer_id"`
	Amount          int64         `json:"amount" db:"amount"` // Valor de face
	Currency        string        `json:"currency" db:"currency"`
	Description     string        `json:"description" db:"description"`
	PurchaseOrder   string        `json:"purchase_order" db:"purchase_order"`
	DocumentHash    string        `json:"document_hash" db:"document_hash"`
	Status          InvoiceStatus `json:"status" db:"status"`

	DueDate    time.Time  `json:"due_date" db:"due_date"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	SettledAt  *time.Time `json:"settled_at,omitempty" db:"settled_at"`

	// Contabilidade de tokens (preenchida após a aprovação)
	TokenSymbol     string `json:"token_symbol" db:"token_symbol"` // Ex: "NTA-INV-1001"
	TotalTokens     int64  `json:"total_tokens" db:"total_tokens"`
	TokensSold      int64  `json:"tokens_sold" db:"tokens_sold"`
	TokensRemaining int64  `json:"tokens_remaining" db:"tokens_remaining"`

	// Janela do leilão holandês (preenchida ao iniciar o leilão)
	AuctionStart  *time.Time `json:"auction_start,omitempty" db:"auction_start"`
	AuctionEnd    *time.Time `json:"auction_end,omitempty" db:"auction_end"`
	StartPrice    int64      `json:"start_price" db:"start_price"`
	MinPrice      int64      `json:"min_price" db:"min_price"`
	PriceDropRate int64      `json:"price_drop_rate" db:"price_drop_rate"` // bps por hora

	// Resultado da liquidação
	RepaymentReceived   int64  `json:"repayment_received" db:"repayment_received"`
	SettlementTxHash    string `json:"settlement_tx_hash" db:"settlement_tx_hash"`
	SettlementRemainder int64  `json:"settlement_remainder" db:"settlement_remainder"` // Resto de arredondamento não distribuído
}

// CanInvest indica se a fatura aceita investimentos primários no momento.
func (i Invoice) CanInvest() bool {
	return i.Status == StatusVerified || i.Status == StatusFunding
}

// CanSettle indica se a fatura pode ser liquidada pelo comprador.
func (i Invoice) CanSettle() bool {
	switch i.Status {
	case StatusFunded, StatusVerified, StatusFunding, StatusOverdue:
		return true
	}
	return false
}
