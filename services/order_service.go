package services

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ferreirogomes/notinha/logger"
	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/storage"
)

// OrderService é o livro de ordens do mercado secundário. Revendas movem
// titularidade, nunca o estoque primário da fatura.
type OrderService struct {
	DB     Store
	Ledger LedgerService
}

// NewOrderService cria o serviço de ordens.
func NewOrderService(db Store, ledger LedgerService) *OrderService {
	return &OrderService{DB: db, Ledger: ledger}
}

// OrderView é uma ordem enriquecida com o valor total remanescente.
type OrderView struct {
	models.SellOrder
	TotalValue int64 `json:"total_value"` // tokens_remaining * price_per_token
}

// ListOrders lista ordens com os filtros informados.
func (s *OrderService) ListOrders(f storage.OrderFilter) ([]OrderView, error) {
	orders, err := s.DB.ListOrders(f)
	if err != nil {
		return nil, errInternal(err)
	}
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, OrderView{
			SellOrder:  o,
			TotalValue: models.MulDiv(o.TokensRemaining, o.PricePerToken, 1),
		})
	}
	return views, nil
}

// GetOrder busca uma ordem com seus preenchimentos.
func (s *OrderService) GetOrder(ref string) (OrderView, []models.OrderFill, error) {
	order, found, err := s.DB.GetOrder(ref)
	if err != nil {
		return OrderView{}, nil, errInternal(err)
	}
	if !found {
		return OrderView{}, nil, errNotFound("ordem %s não encontrada", ref)
	}
	fills, err := s.DB.ListFillsByOrder(order.ID)
	if err != nil {
		return OrderView{}, nil, errInternal(err)
	}
	view := OrderView{SellOrder: order, TotalValue: models.MulDiv(order.TokensRemaining, order.PricePerToken, 1)}
	return view, fills, nil
}

// OrderTerms são os termos de uma ordem preparada.
type OrderTerms struct {
	InvoiceID     string `json:"invoice_id"`
	TokenAmount   int64  `json:"token_amount"`
	PricePerToken int64  `json:"price_per_token"`
	UnsignedTx    string `json:"unsigned_tx"`
}

// PrepareCreateOrder valida que o vendedor detém os tokens listados, seja
// como fornecedor com estoque primário remanescente, seja por posição de
// investidor, e constrói a transação de criação da ordem.
func (s *OrderService) PrepareCreateOrder(session models.Session, invoiceRef string, tokenAmount, pricePerToken int64) (OrderTerms, error) {
	if session.StellarAddress == "" {
		return OrderTerms{}, errForbidden("vendedor sem carteira Stellar vinculada")
	}
	if tokenAmount <= 0 {
		return OrderTerms{}, errValidation("quantidade de tokens deve ser positiva")
	}
	if pricePerToken <= 0 {
		return OrderTerms{}, errValidation("preço por token deve ser positivo")
	}

	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return OrderTerms{}, errInternal(err)
	}
	if !found {
		return OrderTerms{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}
	switch inv.Status {
	case models.StatusVerified, models.StatusFunding, models.StatusFunded:
	default:
		return OrderTerms{}, errState("não é possível listar tokens, status é %s", inv.Status)
	}

	held, err := s.sellerBalance(inv, session.UserID)
	if err != nil {
		return OrderTerms{}, err
	}
	if held < tokenAmount {
		return OrderTerms{}, errValidation("vendedor detém apenas %d tokens da fatura %s", held, inv.BusinessID)
	}

	unsignedTx, err := s.Ledger.BuildCreateOrderTx(session.StellarAddress, inv.LedgerInvoiceID, tokenAmount, pricePerToken)
	if err != nil {
		return OrderTerms{}, errExternal("falha ao preparar transação de ordem: %v", err)
	}

	return OrderTerms{
		InvoiceID:     inv.ID,
		TokenAmount:   tokenAmount,
		PricePerToken: pricePerToken,
		UnsignedTx:    unsignedTx,
	}, nil
}

// ConfirmCreateOrder insere a ordem aberta após a confirmação no ledger.
func (s *OrderService) ConfirmCreateOrder(session models.Session, invoiceRef, txHash string, tokenAmount, pricePerToken int64) (models.SellOrder, error) {
	if txHash == "" {
		return models.SellOrder{}, errValidation("hash da transação é obrigatório")
	}
	if tokenAmount <= 0 || pricePerToken <= 0 {
		return models.SellOrder{}, errValidation("quantidades da ordem inválidas")
	}

	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return models.SellOrder{}, errInternal(err)
	}
	if !found {
		return models.SellOrder{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}

	if err := s.DB.RegisterLedgerTx(txHash, "order_create", inv.ID); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return models.SellOrder{}, errState("transação %s já processada", txHash)
		}
		return models.SellOrder{}, errInternal(err)
	}

	businessID, err := s.DB.NextOrderBusinessID()
	if err != nil {
		return models.SellOrder{}, errInternal(err)
	}
	order := models.SellOrder{
		ID:              uuid.New().String(),
		BusinessID:      businessID,
		InvoiceID:       inv.ID,
		SellerID:        session.UserID,
		TokenAmount:     tokenAmount,
		PricePerToken:   pricePerToken,
		TokensRemaining: tokenAmount,
		Status:          models.OrderOpen,
		CreatedAt:       time.Now(),
	}
	if err := s.DB.SaveOrder(order); err != nil {
		return models.SellOrder{}, errInternal(err)
	}
	logger.Log.Infof("Ordem %s criada: %d tokens da fatura %s a %d", businessID, tokenAmount, inv.BusinessID, pricePerToken)
	return order, nil
}

// FillTerms são os termos de um preenchimento preparado.
type FillTerms struct {
	OrderID       string `json:"order_id"`
	TokenAmount   int64  `json:"token_amount"`
	PaymentAmount int64  `json:"payment_amount"`
	UnsignedTx    string `json:"unsigned_tx"`
}

// PrepareFill valida o preenchimento e constrói a transação do comprador.
// Quantidade acima do remanescente é rejeitada, nunca ajustada.
func (s *OrderService) PrepareFill(session models.Session, orderRef string, tokenAmount int64) (FillTerms, error) {
	if session.StellarAddress == "" {
		return FillTerms{}, errForbidden("comprador sem carteira Stellar vinculada")
	}
	if session.Role == models.RoleInvestor && !session.KYCApproved {
		return FillTerms{}, errForbidden("KYC do investidor não aprovado")
	}

	order, found, err := s.DB.GetOrder(orderRef)
	if err != nil {
		return FillTerms{}, errInternal(err)
	}
	if !found {
		return FillTerms{}, errNotFound("ordem %s não encontrada", orderRef)
	}
	if !order.Active() {
		return FillTerms{}, errState("ordem %s não está ativa (status %s)", order.BusinessID, order.Status)
	}
	if tokenAmount <= 0 {
		return FillTerms{}, errValidation("quantidade de tokens deve ser positiva")
	}
	if tokenAmount > order.TokensRemaining {
		return FillTerms{}, errValidation("quantidade excede os %d tokens remanescentes da ordem", order.TokensRemaining)
	}
	if order.SellerID == session.UserID {
		return FillTerms{}, errValidation("vendedor não pode preencher a própria ordem")
	}

	paymentAmount := models.MulDiv(tokenAmount, order.PricePerToken, 1)
	unsignedTx, err := s.Ledger.BuildFillOrderTx(session.StellarAddress, order.BusinessID, tokenAmount)
	if err != nil {
		return FillTerms{}, errExternal("falha ao preparar transação de preenchimento: %v", err)
	}

	return FillTerms{
		OrderID:       order.ID,
		TokenAmount:   tokenAmount,
		PaymentAmount: paymentAmount,
		UnsignedTx:    unsignedTx,
	}, nil
}

// ConfirmFillResult é o resultado de um preenchimento confirmado.
type ConfirmFillResult struct {
	Order models.SellOrder `json:"order"`
	Fill  models.OrderFill `json:"fill"`
}

// ConfirmFill aplica o preenchimento: débito condicional do remanescente
// da ordem (dois preenchimentos concorrentes nunca debitam além do
// listado), registro imutável do fill e fusão da posição do comprador.
func (s *OrderService) ConfirmFill(session models.Session, orderRef, txHash string, tokenAmount, paymentAmount int64) (ConfirmFillResult, error) {
	if txHash == "" {
		return ConfirmFillResult{}, errValidation("hash da transação é obrigatório")
	}
	if tokenAmount <= 0 || paymentAmount < 0 {
		return ConfirmFillResult{}, errValidation("quantidades do preenchimento inválidas")
	}

	order, found, err := s.DB.GetOrder(orderRef)
	if err != nil {
		return ConfirmFillResult{}, errInternal(err)
	}
	if !found {
		return ConfirmFillResult{}, errNotFound("ordem %s não encontrada", orderRef)
	}
	if order.SellerID == session.UserID {
		return ConfirmFillResult{}, errValidation("vendedor não pode preencher a própria ordem")
	}

	inv, found, err := s.DB.GetInvoice(order.InvoiceID)
	if err != nil {
		return ConfirmFillResult{}, errInternal(err)
	}
	if !found {
		return ConfirmFillResult{}, errNotFound("fatura %s não encontrada", order.InvoiceID)
	}

	if err := s.DB.RegisterLedgerTx(txHash, "order_fill", order.ID); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return ConfirmFillResult{}, errState("transação %s já processada", txHash)
		}
		return ConfirmFillResult{}, errInternal(err)
	}

	updated, ok, err := s.DB.FillOrderTokens(order.ID, tokenAmount)
	if err != nil {
		return ConfirmFillResult{}, errInternal(err)
	}
	if !ok {
		return ConfirmFillResult{}, errState("não foi possível preencher %d tokens da ordem %s (remanescente ou status mudou)", tokenAmount, order.BusinessID)
	}

	fill := models.OrderFill{
		ID:            uuid.New().String(),
		OrderID:       order.ID,
		InvoiceID:     order.InvoiceID,
		BuyerID:       session.UserID,
		TokenAmount:   tokenAmount,
		PaymentAmount: paymentAmount,
		TxHash:        txHash,
		FilledAt:      time.Now(),
	}
	if err := s.DB.SaveOrderFill(fill); err != nil {
		logger.Log.Errorf("ERRO: ordem %s debitada mas falha ao registrar preenchimento: %v", order.BusinessID, err)
		return ConfirmFillResult{}, errInternal(err)
	}

	// Quando o vendedor é o fornecedor original não há posição a debitar:
	// o estoque primário nunca é tocado por revendas. Vendedor investidor
	// tem a posição debitada condicionalmente antes de creditar o
	// comprador; zero linhas significa que a posição não cobre mais o
	// preenchimento (ex.: os mesmos tokens listados em duas ordens).
	if order.SellerID != inv.SupplierID {
		decremented, err := s.DB.DecrementInvestmentTokens(order.InvoiceID, order.SellerID, tokenAmount)
		if err != nil {
			return ConfirmFillResult{}, errInternal(err)
		}
		if !decremented {
			logger.Log.Errorf("ERRO: ordem %s debitada mas a posição do vendedor %s não cobre %d tokens", order.BusinessID, order.SellerID, tokenAmount)
			return ConfirmFillResult{}, errState("posição do vendedor não cobre mais os %d tokens da ordem %s", tokenAmount, order.BusinessID)
		}
	}

	buyerPosition := models.Investment{
		ID:             uuid.New().String(),
		InvoiceID:      order.InvoiceID,
		InvestorID:     session.UserID,
		TokenAmount:    tokenAmount,
		InvestedAmount: paymentAmount,
		Source:         models.SourceSecondary,
		Completed:      true,
		AcquiredAt:     time.Now(),
	}
	if err := s.DB.UpsertInvestment(buyerPosition); err != nil {
		logger.Log.Errorf("ERRO: preenchimento da ordem %s registrado mas falha na posição do comprador: %v", order.BusinessID, err)
		return ConfirmFillResult{}, errInternal(err)
	}

	logger.Log.Infof("Ordem %s preenchida: %d tokens por %d (tx: %s)", updated.BusinessID, tokenAmount, paymentAmount, txHash)
	return ConfirmFillResult{Order: updated, Fill: fill}, nil
}

// CancelOrder cancela uma ordem ativa do vendedor.
func (s *OrderService) CancelOrder(session models.Session, orderRef string) (models.SellOrder, error) {
	order, found, err := s.DB.GetOrder(orderRef)
	if err != nil {
		return models.SellOrder{}, errInternal(err)
	}
	if !found {
		return models.SellOrder{}, errNotFound("ordem %s não encontrada", orderRef)
	}
	if order.SellerID != session.UserID {
		return models.SellOrder{}, errForbidden("ordem %s não pertence a este vendedor", order.BusinessID)
	}

	ok, err := s.DB.CancelOrder(order.ID, session.UserID)
	if err != nil {
		return models.SellOrder{}, errInternal(err)
	}
	if !ok {
		return models.SellOrder{}, errState("ordem %s não pode mais ser cancelada (status %s)", order.BusinessID, order.Status)
	}

	order, _, err = s.DB.GetOrder(order.ID)
	if err != nil {
		return models.SellOrder{}, errInternal(err)
	}
	logger.Log.Infof("Ordem %s cancelada pelo vendedor", order.BusinessID)
	return order, nil
}

// sellerBalance calcula quantos tokens o vendedor detém na fatura: o
// estoque primário remanescente quando é o fornecedor, a posição de
// investidor caso contrário.
func (s *OrderService) sellerBalance(inv models.Invoice, sellerID string) (int64, error) {
	if inv.SupplierID == sellerID {
		return inv.TokensRemaining, nil
	}
	holding, found, err := s.DB.GetInvestment(inv.ID, sellerID)
	if err != nil {
		return 0, errInternal(err)
	}
	if !found {
		return 0, nil
	}
	return holding.TokenAmount, nil
}
