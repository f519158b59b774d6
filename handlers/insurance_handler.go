package handlers

import (
	"net/http"

	"github.com/ferreirogomes/notinha/services"
)

// InsuranceHandler lida com o fundo de seguro e reivindicações.
type InsuranceHandler struct {
	Service *services.InsuranceService
}

// NewInsuranceHandler cria uma nova instância do handler de seguro.
func NewInsuranceHandler(s *services.InsuranceService) *InsuranceHandler {
	return &InsuranceHandler{Service: s}
}

// PoolStatus retorna o estado corrente do fundo.
// GET /insurance/pool
func (h *InsuranceHandler) PoolStatus(w http.ResponseWriter, r *http.Request) {
	pool, err := h.Service.PoolStatus()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// PrepareClaim calcula a indenização e devolve a transação para assinatura.
// POST /insurance/claim
func (h *InsuranceHandler) PrepareClaim(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		InvoiceID string `json:"invoice_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	terms, err := h.Service.PrepareClaim(session, req.InvoiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, terms)
}

// ConfirmClaim registra a reivindicação confirmada e debita o fundo.
// PUT /insurance/claim
func (h *InsuranceHandler) ConfirmClaim(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		InvoiceID string `json:"invoice_id"`
		TxHash    string `json:"tx_hash"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	claim, err := h.Service.ConfirmClaim(session, req.InvoiceID, req.TxHash)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// ListClaims lista as reivindicações do investidor da sessão.
// GET /insurance/claims
func (h *InsuranceHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	claims, err := h.Service.ListClaims(session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}
