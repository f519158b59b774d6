package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ferreirogomes/notinha/services"
)

// InvestmentHandler lida com o mercado primário (leilão holandês).
type InvestmentHandler struct {
	Service *services.InvestmentService
}

// NewInvestmentHandler cria uma nova instância do handler de investimentos.
func NewInvestmentHandler(s *services.InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{Service: s}
}

// Quote retorna preço corrente, desconto e disponibilidade da fatura.
// GET /invoices/{id}/quote
func (h *InvestmentHandler) Quote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.Service.Quote(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// PrepareInvest calcula os termos ao preço corrente e devolve a transação
// de investimento para assinatura.
// POST /invoices/{id}/invest
func (h *InvestmentHandler) PrepareInvest(w http.ResponseWriter, r *http.Request) {
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

	terms, err := h.Service.PrepareInvest(session, chi.URLParam(r, "id"), req.TokenAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, terms)
}

// ConfirmInvest registra o investimento confirmado no ledger.
// PUT /invoices/{id}/invest
func (h *InvestmentHandler) ConfirmInvest(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.Service.ConfirmInvest(session, chi.URLParam(r, "id"), req.TxHash, req.TokenAmount, req.PaymentAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListMine lista as posições do investidor da sessão.
// GET /investments
func (h *InvestmentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	investments, err := h.Service.ListByInvestor(session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, investments)
}
