package models

import "time"

// DisputeResolution é o desfecho de uma disputa.
type DisputeResolution string

const (
	DisputePending DisputeResolution = "PENDING" // Aguardando decisão do admin
	DisputeValid   DisputeResolution = "VALID"   // Disputa procedente, posições anuladas
	DisputeInvalid DisputeResolution = "INVALID" // Disputa improcedente, fatura descongelada
)

// Dispute é uma disputa aberta pelo comprador sobre uma fatura.
type Dispute struct {
	ID         string            `json:"id" db:"id"`
	InvoiceID  string            `json:"invoice_id" db:"invoice_id"`
	RaisedBy   string            `json:"raised_by" db:"raised_by"`
	Reason     string            `json:"reason" db:"reason"`
	Resolution DisputeResolution `json:"resolution" db:"resolution"`
	RaisedAt   time.Time         `json:"raised_at" db:"raised_at"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty" db:"resolved_at"`
}
