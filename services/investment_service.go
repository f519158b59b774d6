package services

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ferreirogomes/notinha/logger"
	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/storage"
)

// InvestmentService aloca tokens do mercado primário durante o leilão
// holandês. O prepare é puro (não muta nada); o confirm aplica o débito de
// estoque com atualização condicional, nunca leia-então-escreva.
type InvestmentService struct {
	DB              Store
	Ledger          LedgerService
	Oracle          *PriceOracleService
	InsuranceCutBps int64
}

// NewInvestmentService cria o serviço de investimentos primários.
func NewInvestmentService(db Store, ledger LedgerService, oracle *PriceOracleService, insuranceCutBps int64) *InvestmentService {
	return &InvestmentService{DB: db, Ledger: ledger, Oracle: oracle, InsuranceCutBps: insuranceCutBps}
}

// InvestmentQuote é a cotação corrente de uma fatura.
type InvestmentQuote struct {
	InvoiceID       string `json:"invoice_id"`
	CurrentPrice    int64  `json:"current_price"`
	DiscountBps     int64  `json:"discount_bps"`
	TokensAvailable int64  `json:"tokens_available"`
	TokensSold      int64  `json:"tokens_sold"`
	TotalTokens     int64  `json:"total_tokens"`
	CanInvest       bool   `json:"can_invest"`
}

// Quote retorna preço corrente, desconto e disponibilidade de tokens.
func (s *InvestmentService) Quote(invoiceRef string) (InvestmentQuote, error) {
	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return InvestmentQuote{}, errInternal(err)
	}
	if !found {
		return InvestmentQuote{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}

	price := s.Oracle.CurrentPrice(inv)
	return InvestmentQuote{
		InvoiceID:       inv.ID,
		CurrentPrice:    price,
		DiscountBps:     models.DiscountBps(inv.Amount, price),
		TokensAvailable: inv.TokensRemaining,
		TokensSold:      inv.TokensSold,
		TotalTokens:     inv.TotalTokens,
		CanInvest:       inv.CanInvest(),
	}, nil
}

// InvestmentTerms são os termos calculados no prepare, devolvidos junto
// com a transação não assinada.
type InvestmentTerms struct {
	InvoiceID     string `json:"invoice_id"`
	TokenAmount   int64  `json:"token_amount"`
	CurrentPrice  int64  `json:"current_price"`
	PaymentAmount int64  `json:"payment_amount"`
	UnsignedTx    string `json:"unsigned_tx"`
}

// PrepareInvest valida a elegibilidade do investidor e calcula o
// pagamento ao preço corrente do leilão. Não muta estado algum: uma
// transação preparada e nunca submetida não deixa rastro.
func (s *InvestmentService) PrepareInvest(session models.Session, invoiceRef string, tokenAmount int64) (InvestmentTerms, error) {
	if err := s.checkInvestorEligibility(session); err != nil {
		return InvestmentTerms{}, err
	}

	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return InvestmentTerms{}, errInternal(err)
	}
	if !found {
		return InvestmentTerms{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}
	if !inv.CanInvest() {
		return InvestmentTerms{}, errState("não é possível investir, status é %s", inv.Status)
	}
	if tokenAmount <= 0 {
		return InvestmentTerms{}, errValidation("quantidade de tokens deve ser positiva")
	}
	if tokenAmount > inv.TokensRemaining {
		return InvestmentTerms{}, errValidation("quantidade excede os %d tokens disponíveis", inv.TokensRemaining)
	}

	currentPrice := s.Oracle.CurrentPrice(inv)
	paymentAmount := models.MulDiv(tokenAmount, currentPrice, inv.TotalTokens)

	unsignedTx, err := s.Ledger.BuildInvestTx(session.StellarAddress, inv.LedgerInvoiceID, tokenAmount)
	if err != nil {
		return InvestmentTerms{}, errExternal("falha ao preparar transação de investimento: %v", err)
	}

	return InvestmentTerms{
		InvoiceID:     inv.ID,
		TokenAmount:   tokenAmount,
		CurrentPrice:  currentPrice,
		PaymentAmount: paymentAmount,
		UnsignedTx:    unsignedTx,
	}, nil
}

// ConfirmInvestResult é o resultado de um confirm de investimento.
type ConfirmInvestResult struct {
	Invoice    models.Invoice    `json:"invoice"`
	Investment models.Investment `json:"investment"`
}

// ConfirmInvest registra o investimento após a transação ter sido aceita
// pelo ledger. O débito de estoque é uma única atualização condicional;
// aquisições repetidas do mesmo investidor são fundidas na posição.
func (s *InvestmentService) ConfirmInvest(session models.Session, invoiceRef, txHash string, tokenAmount, paymentAmount int64) (ConfirmInvestResult, error) {
	if err := s.checkInvestorEligibility(session); err != nil {
		return ConfirmInvestResult{}, err
	}
	if txHash == "" {
		return ConfirmInvestResult{}, errValidation("hash da transação é obrigatório")
	}
	if tokenAmount <= 0 || paymentAmount < 0 {
		return ConfirmInvestResult{}, errValidation("quantidades do investimento inválidas")
	}

	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return ConfirmInvestResult{}, errInternal(err)
	}
	if !found {
		return ConfirmInvestResult{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}

	if err := s.DB.RegisterLedgerTx(txHash, "investment", inv.ID); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return s.replayedInvest(inv, session, txHash)
		}
		return ConfirmInvestResult{}, errInternal(err)
	}

	updated, ok, err := s.DB.AllocateTokens(inv.ID, tokenAmount)
	if err != nil {
		return ConfirmInvestResult{}, errInternal(err)
	}
	if !ok {
		return ConfirmInvestResult{}, errState("não foi possível alocar %d tokens da fatura %s (estoque ou status mudou)", tokenAmount, inv.BusinessID)
	}

	investment := models.Investment{
		ID:             uuid.New().String(),
		InvoiceID:      inv.ID,
		InvestorID:     session.UserID,
		TokenAmount:    tokenAmount,
		InvestedAmount: paymentAmount,
		Source:         models.SourcePrimary,
		Completed:      true,
		AcquiredAt:     time.Now(),
	}
	if err := s.DB.UpsertInvestment(investment); err != nil {
		// O estoque já foi debitado; o registro da posição precisa de
		// reconciliação manual se falhar aqui.
		logger.Log.Errorf("ERRO: tokens alocados na fatura %s mas falha ao registrar posição: %v", inv.BusinessID, err)
		return ConfirmInvestResult{}, errInternal(err)
	}

	insuranceCut := models.MulDiv(paymentAmount, s.InsuranceCutBps, 10000)
	if insuranceCut > 0 {
		if err := s.DB.CreditInsurancePool(insuranceCut); err != nil {
			// Efeito secundário em melhor esforço: o investimento em si já
			// está consistente.
			logger.Log.Errorf("Falha ao creditar fundo de seguro (%d) da fatura %s: %v", insuranceCut, inv.BusinessID, err)
		}
	}

	merged, _, err := s.DB.GetInvestment(inv.ID, session.UserID)
	if err != nil {
		return ConfirmInvestResult{}, errInternal(err)
	}
	if updated.Status == models.StatusFunded {
		logger.Log.Infof("Fatura %s totalmente financiada", updated.BusinessID)
	}
	logger.Log.Infof("Investimento confirmado: %d tokens da fatura %s por %d (tx: %s)", tokenAmount, updated.BusinessID, paymentAmount, txHash)

	return ConfirmInvestResult{Invoice: updated, Investment: merged}, nil
}

// replayedInvest trata a reapresentação de um hash já registrado. Se o
// hash pertence a este investimento e a posição do investidor existe, o
// retry é devolvido como sucesso, como no confirm do mint; um hash de
// outra operação continua rejeitado.
func (s *InvestmentService) replayedInvest(inv models.Invoice, session models.Session, txHash string) (ConfirmInvestResult, error) {
	matches, err := s.DB.LedgerTxMatches(txHash, "investment", inv.ID)
	if err != nil {
		return ConfirmInvestResult{}, errInternal(err)
	}
	holding, found, err := s.DB.GetInvestment(inv.ID, session.UserID)
	if err != nil {
		return ConfirmInvestResult{}, errInternal(err)
	}
	if !matches || !found || !holding.Completed {
		return ConfirmInvestResult{}, errState("transação %s já processada", txHash)
	}
	current, _, err := s.DB.GetInvoice(inv.ID)
	if err != nil {
		return ConfirmInvestResult{}, errInternal(err)
	}
	logger.Log.Infof("Confirm do investimento na fatura %s reapresentado (tx: %s), retornando posição existente", inv.BusinessID, txHash)
	return ConfirmInvestResult{Invoice: current, Investment: holding}, nil
}

// ListByInvestor lista as posições do investidor da sessão.
func (s *InvestmentService) ListByInvestor(session models.Session) ([]models.Investment, error) {
	investments, err := s.DB.ListInvestmentsByInvestor(session.UserID)
	if err != nil {
		return nil, errInternal(err)
	}
	return investments, nil
}

func (s *InvestmentService) checkInvestorEligibility(session models.Session) error {
	if session.Role != models.RoleInvestor {
		return errForbidden("somente investidores podem investir")
	}
	if !session.KYCApproved {
		return errForbidden("KYC do investidor não aprovado")
	}
	if session.StellarAddress == "" {
		return errForbidden("investidor sem carteira Stellar vinculada")
	}
	return nil
}
