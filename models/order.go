package models

import "time"

// OrderStatus representa o estado de uma ordem de venda.
type OrderStatus string

const (
	OrderOpen            OrderStatus = "OPEN"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
)

// SellOrder é uma oferta de revenda de tokens no mercado secundário.
// Invariante: tokens_remaining <= token_amount e nunca aumenta.
type SellOrder struct {
	ID              string      `json:"id" db:"id"`
	BusinessID      string      `json:"business_id" db:"business_id"` // Ex: "ORD-0001"
	InvoiceID       string      `json:"invoice_id" db:"invoice_id"`
	SellerID        string      `json:"seller_id" db:"seller_id"`
	TokenAmount     int64       `json:"token_amount" db:"token_amount"`
	PricePerToken   int64       `json:"price_per_token" db:"price_per_token"`
	TokensRemaining int64       `json:"tokens_remaining" db:"tokens_remaining"`
	Status          OrderStatus `json:"status" db:"status"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// Active indica se a ordem ainda aceita preenchimentos.
func (o SellOrder) Active() bool {
	return o.Status == OrderOpen || o.Status == OrderPartiallyFilled
}

// OrderFill é o registro imutável de um preenchimento confirmado.
// Criado uma única vez por transação confirmada; nunca atualizado.
type OrderFill struct {
	ID            string    `json:"id" db:"id"`
	OrderID       string    `json:"order_id" db:"order_id"`
	InvoiceID     string    `json:"invoice_id" db:"invoice_id"`
	BuyerID       string    `json:"buyer_id" db:"buyer_id"`
	TokenAmount   int64     `json:"token_amount" db:"token_amount"`
	PaymentAmount int64     `json:"payment_amount" db:"payment_amount"`
	TxHash        string    `json:"tx_hash" db:"tx_hash"`
	FilledAt      time.Time `json:"filled_at" db:"filled_at"`
}
