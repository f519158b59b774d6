package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/services"
	"github.com/ferreirogomes/notinha/storage"
)

// OrderHandler lida com o livro de ordens do mercado secundário.
type OrderHandler struct {
	Service *services.OrderService
}

// NewOrderHandler cria uma nova instância do handler de ordens.
func NewOrderHandler(s *services.OrderService) *OrderHandler {
	return &OrderHandler{Service: s}
}

// ListOrders lista ordens, com filtros opcionais via query string.
// GET /orders?invoice_id=&seller_id=&status=
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter := storage.OrderFilter{
		InvoiceID: r.URL.Query().Get("invoice_id"),
		SellerID:  r.URL.Query().Get("seller_id"),
		Status:    models.OrderStatus(r.URL.Query().Get("status")),
	}
	orders, err := h.Service.ListOrders(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder obtém uma ordem com seus preenchimentos.
// GET /orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, fills, err := h.Service.GetOrder(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order": order,
		"fills": fills,
	})
}

// PrepareCreateOrder valida a listagem e devolve a transação da ordem.
// POST /orders
func (h *OrderHandler) PrepareCreateOrder(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		InvoiceID     string `json:"invoice_id"`
		TokenAmount   int64  `json:"token_amount"`
		PricePerToken int64  `json:"price_per_token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	terms, err := h.Service.PrepareCreateOrder(session, req.InvoiceID, req.TokenAmount, req.PricePerToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, terms)
}

// ConfirmCreateOrder insere a ordem aberta confirmada no ledger.
// PUT /orders
func (h *OrderHandler) ConfirmCreateOrder(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		InvoiceID     string `json:"invoice_id"`
		TxHash        string `json:"tx_hash"`
		TokenAmount   int64  `json:"token_amount"`
		PricePerToken int64  `json:"price_per_token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.Service.ConfirmCreateOrder(session, req.InvoiceID, req.TxHash, req.TokenAmount, req.PricePerToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// PrepareFill valida o preenchimento e devolve a transação do comprador.
// POST /orders/{id}/fill
func (h *OrderHandler) PrepareFill(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		TokenAmount int64 `json:"token_amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	terms, err := h.Service.PrepareFill(session, chi.URLParam(r, "id"), req.TokenAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, terms)
}

// ConfirmFill aplica o preenchimento confirmado no ledger.
// PUT /orders/{id}/fill
func (h *OrderHandler) ConfirmFill(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		TxHash        string `json:"tx_hash"`
		TokenAmount   int64  `json:"token_amount"`
		PaymentAmount int64  `json:"payment_amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.Service.ConfirmFill(session, chi.URLParam(r, "id"), req.TxHash, req.TokenAmount, req.PaymentAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Cancel cancela uma ordem ativa do vendedor.
// POST /orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	order, err := h.Service.CancelOrder(session, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
