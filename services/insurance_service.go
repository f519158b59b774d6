package services

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ferreirogomes/notinha/logger"
	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/storage"
)

// InsuranceService paga indenizações parciais a investidores de faturas
// inadimplentes. A cobertura é metade do custo de aquisição, limitada ao
// saldo do fundo; um investidor reivindica no máximo uma vez por fatura.
type InsuranceService struct {
	DB     Store
	Ledger LedgerService
}

// NewInsuranceService cria o serviço de seguro.
func NewInsuranceService(db Store, ledger LedgerService) *InsuranceService {
	return &InsuranceService{DB: db, Ledger: ledger}
}

// PoolStatus retorna o estado corrente do fundo de seguro.
func (s *InsuranceService) PoolStatus() (models.InsurancePool, error) {
	pool, err := s.DB.GetInsurancePool()
	if err != nil {
		return models.InsurancePool{}, errInternal(err)
	}
	return pool, nil
}

// ClaimTerms são os termos de uma reivindicação preparada.
type ClaimTerms struct {
	InvoiceID  string `json:"invoice_id"`
	CostBasis  int64  `json:"cost_basis"`
	Payout     int64  `json:"payout"`
	UnsignedTx string `json:"unsigned_tx"`
}

// PrepareClaim valida a reivindicação e calcula a indenização: metade do
// custo de aquisição, limitada ao saldo do fundo. Indenização zero é
// rejeitada em vez de gravar uma reivindicação vazia.
func (s *InsuranceService) PrepareClaim(session models.Session, invoiceRef string) (ClaimTerms, error) {
	if session.StellarAddress == "" {
		return ClaimTerms{}, errForbidden("investidor sem carteira Stellar vinculada")
	}

	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return ClaimTerms{}, errInternal(err)
	}
	if !found {
		return ClaimTerms{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}
	if inv.Status != models.StatusDefaulted {
		return ClaimTerms{}, errState("seguro cobre apenas faturas inadimplentes, status é %s", inv.Status)
	}

	holding, found, err := s.DB.GetInvestment(inv.ID, session.UserID)
	if err != nil {
		return ClaimTerms{}, errInternal(err)
	}
	if !found || !holding.Completed || holding.TokenAmount <= 0 {
		return ClaimTerms{}, errForbidden("investidor sem posição na fatura %s", inv.BusinessID)
	}

	if _, claimed, err := s.DB.GetInsuranceClaim(inv.ID, session.UserID); err != nil {
		return ClaimTerms{}, errInternal(err)
	} else if claimed {
		return ClaimTerms{}, errState("seguro da fatura %s já reivindicado por este investidor", inv.BusinessID)
	}

	payout, err := s.payout(holding.InvestedAmount)
	if err != nil {
		return ClaimTerms{}, err
	}

	unsignedTx, err := s.Ledger.BuildClaimInsuranceTx(session.StellarAddress, inv.LedgerInvoiceID)
	if err != nil {
		return ClaimTerms{}, errExternal("falha ao preparar transação de seguro: %v", err)
	}

	return ClaimTerms{
		InvoiceID:  inv.ID,
		CostBasis:  holding.InvestedAmount,
		Payout:     payout,
		UnsignedTx: unsignedTx,
	}, nil
}

// ConfirmClaim registra a reivindicação e debita o fundo. A restrição de
// unicidade por (fatura, investidor) garante no máximo um pagamento mesmo
// sob confirms concorrentes.
func (s *InsuranceService) ConfirmClaim(session models.Session, invoiceRef, txHash string) (models.InsuranceClaim, error) {
	if txHash == "" {
		return models.InsuranceClaim{}, errValidation("hash da transação é obrigatório")
	}

	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return models.InsuranceClaim{}, errInternal(err)
	}
	if !found {
		return models.InsuranceClaim{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}
	if inv.Status != models.StatusDefaulted {
		return models.InsuranceClaim{}, errState("seguro cobre apenas faturas inadimplentes, status é %s", inv.Status)
	}

	holding, found, err := s.DB.GetInvestment(inv.ID, session.UserID)
	if err != nil {
		return models.InsuranceClaim{}, errInternal(err)
	}
	if !found || !holding.Completed || holding.TokenAmount <= 0 {
		return models.InsuranceClaim{}, errForbidden("investidor sem posição na fatura %s", inv.BusinessID)
	}

	if err := s.DB.RegisterLedgerTx(txHash, "insurance_claim", inv.ID); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return models.InsuranceClaim{}, errState("transação %s já processada", txHash)
		}
		return models.InsuranceClaim{}, errInternal(err)
	}

	payout, err := s.payout(holding.InvestedAmount)
	if err != nil {
		return models.InsuranceClaim{}, err
	}

	claim := models.InsuranceClaim{
		ID:         uuid.New().String(),
		InvoiceID:  inv.ID,
		InvestorID: session.UserID,
		Amount:     payout,
		TxHash:     txHash,
		ClaimedAt:  time.Now(),
	}
	if err := s.DB.SaveInsuranceClaim(claim); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return models.InsuranceClaim{}, errState("seguro da fatura %s já reivindicado por este investidor", inv.BusinessID)
		}
		return models.InsuranceClaim{}, errInternal(err)
	}

	ok, err := s.DB.DebitInsurancePool(payout)
	if err != nil {
		return models.InsuranceClaim{}, errInternal(err)
	}
	if !ok {
		// O saldo mudou entre o cálculo e o débito; a reivindicação já foi
		// gravada e precisa de reconciliação manual.
		logger.Log.Errorf("ERRO: reivindicação %s gravada mas fundo sem saldo para debitar %d", claim.ID, payout)
		return models.InsuranceClaim{}, errState("fundo de seguro sem saldo para a indenização")
	}

	logger.Log.Infof("Seguro pago: %d ao investidor %s pela fatura %s (tx: %s)", payout, session.UserID, inv.BusinessID, txHash)
	return claim, nil
}

// ListClaims lista as reivindicações do investidor da sessão.
func (s *InsuranceService) ListClaims(session models.Session) ([]models.InsuranceClaim, error) {
	claims, err := s.DB.ListClaimsByInvestor(session.UserID)
	if err != nil {
		return nil, errInternal(err)
	}
	return claims, nil
}

// payout calcula a indenização: metade do custo, limitada ao saldo do fundo.
func (s *InsuranceService) payout(costBasis int64) (int64, error) {
	pool, err := s.DB.GetInsurancePool()
	if err != nil {
		return 0, errInternal(err)
	}
	payout := costBasis / 2
	if payout > pool.Balance {
		payout = pool.Balance
	}
	if payout <= 0 {
		return 0, errState("fundo de seguro sem saldo para indenizar")
	}
	return payout, nil
}
