package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ferreirogomes/notinha/services"
)

// SettlementHandler lida com liquidação e distribuição pro-rata.
type SettlementHandler struct {
	Service *services.SettlementService
}

// NewSettlementHandler cria uma nova instância do handler de liquidação.
func NewSettlementHandler(s *services.SettlementService) *SettlementHandler {
	return &SettlementHandler{Service: s}
}

// QuoteSettlement retorna o valor corrente devido pelo comprador.
// GET /invoices/{id}/settlement
func (h *SettlementHandler) QuoteSettlement(w http.ResponseWriter, r *http.Request) {
	quote, err := h.Service.QuoteSettlement(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// PrepareSettle devolve a transação de pagamento para o comprador assinar.
// POST /invoices/{id}/settle
func (h *SettlementHandler) PrepareSettle(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount int64 `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	terms, err := h.Service.PrepareSettle(session, chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, terms)
}

// ConfirmSettle marca a fatura liquidada e distribui o pagamento.
// PUT /invoices/{id}/settle
func (h *SettlementHandler) ConfirmSettle(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		TxHash string `json:"tx_hash"`
		Amount int64  `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.Service.ConfirmSettle(session, chi.URLParam(r, "id"), req.TxHash, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListMine lista as distribuições recebidas pelo investidor da sessão.
// GET /distributions
func (h *SettlementHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	dists, err := h.Service.ListByInvestor(session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dists)
}
