package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/services"
	"github.com/ferreirogomes/notinha/storage"
)

// InvoiceHandler lida com o ciclo de vida das faturas.
type InvoiceHandler struct {
	Service *services.InvoiceService
}

// NewInvoiceHandler cria uma nova instância do handler de faturas.
func NewInvoiceHandler(s *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{Service: s}
}

// ListInvoices lista faturas, com filtros opcionais via query string.
// GET /invoices?status=&supplier_id=&buyer_id=
func (h *InvoiceHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	filter := storage.InvoiceFilter{
		Status:     models.InvoiceStatus(r.URL.Query().Get("status")),
		SupplierID: r.URL.Query().Get("supplier_id"),
		BuyerID:    r.URL.Query().Get("buyer_id"),
	}
	invoices, err := h.Service.ListInvoices(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// GetInvoice obtém uma fatura enriquecida por qualquer um de seus IDs.
// GET /invoices/{id}
func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	details, err := h.Service.GetInvoice(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// CreateInvoice registra a fatura e devolve a transação de mint para
// assinatura do fornecedor.
// POST /invoices
func (h *InvoiceHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		BuyerID       string    `json:"buyer_id"`
		Amount        int64     `json:"amount"`
		Currency      string    `json:"currency"`
		DueDate       time.Time `json:"due_date"`
		Description   string    `json:"description"`
		PurchaseOrder string    `json:"purchase_order"`
		DocumentHash  string    `json:"document_hash"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	inv, unsignedTx, err := h.Service.CreateInvoice(session, services.CreateInvoiceParams{
		BuyerID:       req.BuyerID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		DueDate:       req.DueDate,
		Description:   req.Description,
		PurchaseOrder: req.PurchaseOrder,
		DocumentHash:  req.DocumentHash,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"invoice":     inv,
		"unsigned_tx": unsignedTx,
	})
}

// ConfirmMint confirma o mint on-chain e move a fatura para DRAFT.
// PUT /invoices/{id}/mint
func (h *InvoiceHandler) ConfirmMint(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		TxHash          string `json:"tx_hash"`
		LedgerInvoiceID string `json:"ledger_invoice_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	inv, err := h.Service.ConfirmMint(session, chi.URLParam(r, "id"), req.TxHash, req.LedgerInvoiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// PrepareApprove devolve a transação de aprovação para o comprador assinar.
// POST /invoices/{id}/approve
func (h *InvoiceHandler) PrepareApprove(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	unsignedTx, err := h.Service.PrepareApprove(session, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"unsigned_tx": unsignedTx})
}

// ConfirmApprove move DRAFT -> VERIFIED e emite os tokens.
// PUT /invoices/{id}/approve
func (h *InvoiceHandler) ConfirmApprove(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		TxHash string `json:"tx_hash"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	inv, err := h.Service.ConfirmApprove(session, chi.URLParam(r, "id"), req.TxHash)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// PrepareStartAuction devolve a transação de início do leilão holandês.
// POST /invoices/{id}/auction
func (h *InvoiceHandler) PrepareStartAuction(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		DurationHours  int64 `json:"duration_hours"`
		MaxDiscountBps int64 `json:"max_discount_bps"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	unsignedTx, err := h.Service.PrepareStartAuction(session, chi.URLParam(r, "id"), services.AuctionParams{
		DurationHours:  req.DurationHours,
		MaxDiscountBps: req.MaxDiscountBps,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"unsigned_tx": unsignedTx})
}

// ConfirmStartAuction grava a janela do leilão e move VERIFIED -> FUNDING.
// PUT /invoices/{id}/auction
func (h *InvoiceHandler) ConfirmStartAuction(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		TxHash         string `json:"tx_hash"`
		DurationHours  int64  `json:"duration_hours"`
		MaxDiscountBps int64  `json:"max_discount_bps"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	inv, err := h.Service.ConfirmStartAuction(session, chi.URLParam(r, "id"), req.TxHash, services.AuctionParams{
		DurationHours:  req.DurationHours,
		MaxDiscountBps: req.MaxDiscountBps,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// CheckStatus deriva OVERDUE/DEFAULTED para faturas vencidas e retorna o
// status corrente.
// POST /invoices/{id}/check-status
func (h *InvoiceHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.CheckStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// Revoke revoga uma fatura do fornecedor.
// POST /invoices/{id}/revoke
func (h *InvoiceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	inv, err := h.Service.Revoke(session, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// RaiseDispute abre uma disputa do comprador sobre a fatura.
// POST /invoices/{id}/dispute
func (h *InvoiceHandler) RaiseDispute(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	dispute, err := h.Service.RaiseDispute(session, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dispute)
}

// ResolveDispute decide uma disputa pendente (admin).
// POST /invoices/{id}/dispute/resolve
func (h *InvoiceHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Valid bool `json:"valid"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	dispute, err := h.Service.ResolveDispute(session, chi.URLParam(r, "id"), req.Valid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispute)
}
