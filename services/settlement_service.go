package services

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ferreirogomes/notinha/logger"
	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/storage"
)

// SettlementService liquida faturas e distribui o pagamento pro-rata entre
// os detentores de tokens. A marcação SETTLED é uma atualização condicional:
// dois confirms concorrentes geram exatamente uma distribuição.
type SettlementService struct {
	DB     Store
	Ledger LedgerService
	Oracle *PriceOracleService
}

// NewSettlementService cria o serviço de liquidação.
func NewSettlementService(db Store, ledger LedgerService, oracle *PriceOracleService) *SettlementService {
	return &SettlementService{DB: db, Ledger: ledger, Oracle: oracle}
}

// SettlementQuote é o valor devido pelo comprador para liquidar a fatura.
type SettlementQuote struct {
	InvoiceID  string `json:"invoice_id"`
	Amount     int64  `json:"amount"`
	TokensSold int64  `json:"tokens_sold"`
	CanSettle  bool   `json:"can_settle"`
}

// QuoteSettlement retorna o valor corrente de liquidação da fatura.
func (s *SettlementService) QuoteSettlement(invoiceRef string) (SettlementQuote, error) {
	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return SettlementQuote{}, errInternal(err)
	}
	if !found {
		return SettlementQuote{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}
	return SettlementQuote{
		InvoiceID:  inv.ID,
		Amount:     s.Oracle.SettlementAmount(inv),
		TokensSold: inv.TokensSold,
		CanSettle:  inv.CanSettle(),
	}, nil
}

// SettlementTerms são os termos do prepare de liquidação.
type SettlementTerms struct {
	InvoiceID  string `json:"invoice_id"`
	Amount     int64  `json:"amount"`
	UnsignedTx string `json:"unsigned_tx"`
}

// PrepareSettle constrói a transação de pagamento do comprador. O valor
// padrão vem do ledger; um valor explícito maior (juros, acordo) é aceito,
// menor não.
func (s *SettlementService) PrepareSettle(session models.Session, invoiceRef string, amountOverride int64) (SettlementTerms, error) {
	if session.StellarAddress == "" {
		return SettlementTerms{}, errForbidden("comprador sem carteira Stellar vinculada")
	}

	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return SettlementTerms{}, errInternal(err)
	}
	if !found {
		return SettlementTerms{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}
	if inv.BuyerID != session.UserID {
		return SettlementTerms{}, errForbidden("somente o comprador da fatura pode liquidá-la")
	}
	if !inv.CanSettle() {
		return SettlementTerms{}, errState("não é possível liquidar, status é %s", inv.Status)
	}

	amount := s.Oracle.SettlementAmount(inv)
	if amountOverride > 0 {
		if amountOverride < amount {
			return SettlementTerms{}, errValidation("valor %d abaixo do devido (%d)", amountOverride, amount)
		}
		amount = amountOverride
	}

	unsignedTx, err := s.Ledger.BuildSettleTx(session.StellarAddress, inv.LedgerInvoiceID, amount)
	if err != nil {
		return SettlementTerms{}, errExternal("falha ao preparar transação de liquidação: %v", err)
	}

	return SettlementTerms{InvoiceID: inv.ID, Amount: amount, UnsignedTx: unsignedTx}, nil
}

// SettlementResult é o resultado de uma liquidação confirmada.
type SettlementResult struct {
	Invoice       models.Invoice                `json:"invoice"`
	Distributions []models.InvestorDistribution `json:"distributions"`
	Remainder     int64                         `json:"remainder"`
}

// ConfirmSettle marca a fatura como liquidada e distribui o pagamento:
// cada detentor recebe tokens*valor/total_tokens, truncado. A sobra de
// arredondamento fica registrada na fatura e nunca é redistribuída.
func (s *SettlementService) ConfirmSettle(session models.Session, invoiceRef, txHash string, amount int64) (SettlementResult, error) {
	if txHash == "" {
		return SettlementResult{}, errValidation("hash da transação é obrigatório")
	}
	if amount <= 0 {
		return SettlementResult{}, errValidation("valor da liquidação deve ser positivo")
	}

	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return SettlementResult{}, errInternal(err)
	}
	if !found {
		return SettlementResult{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}
	if inv.BuyerID != session.UserID {
		return SettlementResult{}, errForbidden("somente o comprador da fatura pode liquidá-la")
	}

	if err := s.DB.RegisterLedgerTx(txHash, "settlement", inv.ID); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return s.resumeSettlement(inv.ID, txHash)
		}
		return SettlementResult{}, errInternal(err)
	}

	ok, err := s.DB.MarkSettled(inv.ID, amount, txHash, time.Now())
	if err != nil {
		return SettlementResult{}, errInternal(err)
	}
	if !ok {
		return SettlementResult{}, errState("fatura %s já liquidada ou em status que não admite liquidação", inv.BusinessID)
	}

	distributions, remainder, err := s.distribute(inv, amount)
	if err != nil {
		// A fatura já está SETTLED; distribuições que falharam precisam de
		// reconciliação manual.
		logger.Log.Errorf("ERRO: fatura %s liquidada mas distribuição falhou: %v", inv.BusinessID, err)
		return SettlementResult{}, errInternal(err)
	}

	if err := s.DB.SetSettlementRemainder(inv.ID, remainder); err != nil {
		logger.Log.Errorf("Falha ao registrar sobra de arredondamento da fatura %s: %v", inv.BusinessID, err)
	}

	settled, _, err := s.DB.GetInvoice(inv.ID)
	if err != nil {
		return SettlementResult{}, errInternal(err)
	}
	logger.Log.Infof("Fatura %s liquidada: %d distribuído entre %d detentores, sobra %d (tx: %s)",
		settled.BusinessID, amount, len(distributions), remainder, txHash)

	return SettlementResult{Invoice: settled, Distributions: distributions, Remainder: remainder}, nil
}

// resumeSettlement trata a reapresentação de um hash de liquidação já
// registrado. Se a fatura está SETTLED por esta mesma transação, a
// distribuição é retomada do ponto onde parou (linhas já gravadas são
// puladas) em vez de rejeitar o retry; um hash de outra operação continua
// rejeitado.
func (s *SettlementService) resumeSettlement(invoiceID, txHash string) (SettlementResult, error) {
	settled, found, err := s.DB.GetInvoice(invoiceID)
	if err != nil {
		return SettlementResult{}, errInternal(err)
	}
	if !found || settled.Status != models.StatusSettled || settled.SettlementTxHash != txHash {
		return SettlementResult{}, errState("transação %s já processada", txHash)
	}

	distributions, remainder, err := s.distribute(settled, settled.RepaymentReceived)
	if err != nil {
		logger.Log.Errorf("ERRO: retomada da distribuição da fatura %s falhou: %v", settled.BusinessID, err)
		return SettlementResult{}, errInternal(err)
	}
	if err := s.DB.SetSettlementRemainder(settled.ID, remainder); err != nil {
		logger.Log.Errorf("Falha ao registrar sobra de arredondamento da fatura %s: %v", settled.BusinessID, err)
	}
	logger.Log.Infof("Liquidação da fatura %s reapresentada (tx: %s), distribuição retomada", settled.BusinessID, txHash)
	return SettlementResult{Invoice: settled, Distributions: distributions, Remainder: remainder}, nil
}

// ListByInvestor lista as distribuições recebidas pelo investidor.
func (s *SettlementService) ListByInvestor(session models.Session) ([]models.InvestorDistribution, error) {
	dists, err := s.DB.ListDistributionsByInvestor(session.UserID)
	if err != nil {
		return nil, errInternal(err)
	}
	return dists, nil
}

// distribute grava uma distribuição por detentor com posição positiva.
// A sobra é a diferença entre o rateio dos tokens vendidos e a soma dos
// valores truncados por detentor.
func (s *SettlementService) distribute(inv models.Invoice, amount int64) ([]models.InvestorDistribution, int64, error) {
	holdings, err := s.DB.ListInvestmentsByInvoice(inv.ID)
	if err != nil {
		return nil, 0, err
	}

	var distributions []models.InvestorDistribution
	var distributed, soldHeld int64
	for _, h := range holdings {
		if !h.Completed || h.TokenAmount <= 0 {
			continue
		}
		soldHeld += h.TokenAmount
		share := models.MulDiv(h.TokenAmount, amount, inv.TotalTokens)
		dist := models.InvestorDistribution{
			ID:                 uuid.New().String(),
			InvoiceID:          inv.ID,
			InvestorID:         h.InvestorID,
			TokenAmount:        h.TokenAmount,
			InvestedAmount:     h.InvestedAmount,
			DistributionAmount: share,
			Profit:             share - h.InvestedAmount,
			CreatedAt:          time.Now(),
		}
		if err := s.DB.SaveDistribution(dist); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				// Retomada de uma distribuição parcial: a linha já existe e
				// sua parcela conta na soma usada para a sobra.
				distributed += share
				continue
			}
			return nil, 0, err
		}
		distributed += share
		distributions = append(distributions, dist)
	}

	remainder := models.MulDiv(soldHeld, amount, inv.TotalTokens) - distributed
	return distributions, remainder, nil
}
