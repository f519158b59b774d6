package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ferreirogomes/notinha/logger"
	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/storage"
)

// InvoiceService é a máquina de estados do ciclo de vida das faturas. O
// status da fatura é a única chave que os demais serviços consultam;
// nenhum componente infere estado a partir de dados laterais.
type InvoiceService struct {
	DB              Store
	Ledger          LedgerService
	Oracle          *PriceOracleService
	GracePeriodDays int64
	PriceDropRate   int64 // bps por hora
}

// NewInvoiceService cria o serviço de faturas.
func NewInvoiceService(db Store, ledger LedgerService, oracle *PriceOracleService, gracePeriodDays, priceDropRate int64) *InvoiceService {
	return &InvoiceService{
		DB:              db,
		Ledger:          ledger,
		Oracle:          oracle,
		GracePeriodDays: gracePeriodDays,
		PriceDropRate:   priceDropRate,
	}
}

// CreateInvoiceParams são os dados de criação de uma fatura.
type CreateInvoiceParams struct {
	BuyerID       string
	Amount        int64
	Currency      string
	DueDate       time.Time
	Description   string
	PurchaseOrder string
	DocumentHash  string
}

// CreateInvoice registra uma fatura PENDING e prepara a transação de mint
// para assinatura do fornecedor. Nada além do rascunho local é gravado
// até o confirm.
func (s *InvoiceService) CreateInvoice(session models.Session, p CreateInvoiceParams) (models.Invoice, string, error) {
	if session.Role != models.RoleSupplier {
		return models.Invoice{}, "", errForbidden("somente fornecedores podem criar faturas")
	}
	if session.StellarAddress == "" {
		return models.Invoice{}, "", errForbidden("fornecedor sem carteira Stellar vinculada")
	}
	if p.Amount <= 0 {
		return models.Invoice{}, "", errValidation("valor da fatura deve ser positivo")
	}
	if p.Currency == "" {
		return models.Invoice{}, "", errValidation("moeda é obrigatória")
	}
	if !p.DueDate.After(time.Now()) {
		return models.Invoice{}, "", errValidation("data de vencimento deve estar no futuro")
	}

	buyer, found, err := s.DB.GetUser(p.BuyerID)
	if err != nil {
		return models.Invoice{}, "", errInternal(err)
	}
	if !found {
		return models.Invoice{}, "", errNotFound("comprador %s não encontrado", p.BuyerID)
	}
	if buyer.Role != models.RoleBuyer {
		return models.Invoice{}, "", errValidation("usuário %s não é um comprador", p.BuyerID)
	}
	if buyer.StellarAddress == "" {
		return models.Invoice{}, "", errValidation("comprador sem carteira Stellar vinculada")
	}

	businessID, err := s.DB.NextInvoiceBusinessID()
	if err != nil {
		return models.Invoice{}, "", errInternal(err)
	}

	inv := models.Invoice{
		ID:            uuid.New().String(),
		BusinessID:    businessID,
		SupplierID:    session.UserID,
		BuyerID:       p.BuyerID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Description:   p.Description,
		PurchaseOrder: p.PurchaseOrder,
		DocumentHash:  p.DocumentHash,
		Status:        models.StatusPending,
		DueDate:       p.DueDate,
		CreatedAt:     time.Now(),
	}
	if err := s.DB.SaveInvoice(inv); err != nil {
		return models.Invoice{}, "", errInternal(err)
	}

	unsignedTx, err := s.Ledger.BuildMintDraftTx(MintDraftParams{
		SupplierAddress: session.StellarAddress,
		BuyerAddress:    buyer.StellarAddress,
		Amount:          p.Amount,
		Currency:        p.Currency,
		DueDate:         p.DueDate,
		Description:     p.Description,
		PurchaseOrder:   p.PurchaseOrder,
		DocumentHash:    p.DocumentHash,
	})
	if err != nil {
		return models.Invoice{}, "", errExternal("falha ao preparar transação de mint: %v", err)
	}

	return inv, unsignedTx, nil
}

// ConfirmMint vincula o ID on-chain e move a fatura para DRAFT. Uma
// reapresentação com o mesmo resultado (fatura já em DRAFT com o mesmo ID
// do ledger) é tratada como retry bem-sucedido, não como nova fatura.
func (s *InvoiceService) ConfirmMint(session models.Session, invoiceRef, txHash, ledgerInvoiceID string) (models.Invoice, error) {
	inv, err := s.ownedInvoice(session, invoiceRef, models.RoleSupplier)
	if err != nil {
		return models.Invoice{}, err
	}
	if txHash == "" || ledgerInvoiceID == "" {
		return models.Invoice{}, errValidation("hash da transação e ID do ledger são obrigatórios")
	}

	if err := s.DB.RegisterLedgerTx(txHash, "invoice_mint", inv.ID); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			if inv.Status != models.StatusPending && inv.LedgerInvoiceID == ledgerInvoiceID {
				return inv, nil
			}
			return models.Invoice{}, errState("transação %s já processada", txHash)
		}
		return models.Invoice{}, errInternal(err)
	}

	ok, err := s.DB.ConfirmMint(inv.ID, ledgerInvoiceID)
	if err != nil {
		return models.Invoice{}, errInternal(err)
	}
	if !ok {
		if inv.Status == models.StatusDraft && inv.LedgerInvoiceID == ledgerInvoiceID {
			return inv, nil
		}
		return models.Invoice{}, errState("não é possível confirmar mint, status é %s", inv.Status)
	}

	inv, _, err = s.DB.GetInvoice(inv.ID)
	if err != nil {
		return models.Invoice{}, errInternal(err)
	}
	logger.Log.Infof("Mint da fatura %s confirmado (ledger: %s, tx: %s)", inv.BusinessID, ledgerInvoiceID, txHash)
	return inv, nil
}

// PrepareApprove valida e constrói a transação de aprovação do comprador.
func (s *InvoiceService) PrepareApprove(session models.Session, invoiceRef string) (string, error) {
	inv, err := s.ownedInvoice(session, invoiceRef, models.RoleBuyer)
	if err != nil {
		return "", err
	}
	if inv.Status != models.StatusDraft {
		return "", errState("não é possível aprovar, status é %s", inv.Status)
	}
	unsignedTx, err := s.Ledger.BuildApproveTx(session.StellarAddress, inv.LedgerInvoiceID)
	if err != nil {
		return "", errExternal("falha ao preparar transação de aprovação: %v", err)
	}
	return unsignedTx, nil
}

// ConfirmApprove move DRAFT -> VERIFIED e emite os tokens (1:1 com o valor
// de face).
func (s *InvoiceService) ConfirmApprove(session models.Session, invoiceRef, txHash string) (models.Invoice, error) {
	inv, err := s.ownedInvoice(session, invoiceRef, models.RoleBuyer)
	if err != nil {
		return models.Invoice{}, err
	}
	if txHash == "" {
		return models.Invoice{}, errValidation("hash da transação é obrigatório")
	}
	if err := s.DB.RegisterLedgerTx(txHash, "invoice_approve", inv.ID); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return models.Invoice{}, errState("transação %s já processada", txHash)
		}
		return models.Invoice{}, errInternal(err)
	}

	symbol := "NTA-" + inv.BusinessID
	ok, err := s.DB.ApproveInvoice(inv.ID, symbol, time.Now())
	if err != nil {
		return models.Invoice{}, errInternal(err)
	}
	if !ok {
		return models.Invoice{}, errState("não é possível aprovar, status é %s", inv.Status)
	}

	inv, _, err = s.DB.GetInvoice(inv.ID)
	if err != nil {
		return models.Invoice{}, errInternal(err)
	}
	logger.Log.Infof("Fatura %s aprovada pelo comprador, %d tokens emitidos", inv.BusinessID, inv.TotalTokens)
	return inv, nil
}

// AuctionParams são os parâmetros do leilão holandês.
type AuctionParams struct {
	DurationHours  int64
	MaxDiscountBps int64
}

func (s *InvoiceService) validateAuctionParams(p AuctionParams) error {
	if p.DurationHours <= 0 {
		return errValidation("duração do leilão deve ser positiva")
	}
	if p.MaxDiscountBps < 0 || p.MaxDiscountBps > 5000 {
		return errValidation("desconto máximo deve estar entre 0 e 5000 bps")
	}
	return nil
}

// PrepareStartAuction valida e constrói a transação de início do leilão.
func (s *InvoiceService) PrepareStartAuction(session models.Session, invoiceRef string, p AuctionParams) (string, error) {
	inv, err := s.ownedInvoice(session, invoiceRef, models.RoleSupplier)
	if err != nil {
		return "", err
	}
	if inv.Status != models.StatusVerified {
		return "", errState("não é possível iniciar leilão, status é %s", inv.Status)
	}
	if err := s.validateAuctionParams(p); err != nil {
		return "", err
	}
	unsignedTx, err := s.Ledger.BuildStartAuctionTx(session.StellarAddress, inv.LedgerInvoiceID, p.DurationHours, p.MaxDiscountBps)
	if err != nil {
		return "", errExternal("falha ao preparar transação de leilão: %v", err)
	}
	return unsignedTx, nil
}

// ConfirmStartAuction grava a janela do leilão e move VERIFIED -> FUNDING.
func (s *InvoiceService) ConfirmStartAuction(session models.Session, invoiceRef, txHash string, p AuctionParams) (models.Invoice, error) {
	inv, err := s.ownedInvoice(session, invoiceRef, models.RoleSupplier)
	if err != nil {
		return models.Invoice{}, err
	}
	if txHash == "" {
		return models.Invoice{}, errValidation("hash da transação é obrigatório")
	}
	if err := s.validateAuctionParams(p); err != nil {
		return models.Invoice{}, err
	}
	if err := s.DB.RegisterLedgerTx(txHash, "auction_start", inv.ID); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return models.Invoice{}, errState("transação %s já processada", txHash)
		}
		return models.Invoice{}, errInternal(err)
	}

	now := time.Now()
	end := now.Add(time.Duration(p.DurationHours) * time.Hour)
	startPrice := inv.Amount
	minPrice := inv.Amount - models.MulDiv(inv.Amount, p.MaxDiscountBps, 10000)

	ok, err := s.DB.StartAuction(inv.ID, now, end, startPrice, minPrice, s.PriceDropRate)
	if err != nil {
		return models.Invoice{}, errInternal(err)
	}
	if !ok {
		return models.Invoice{}, errState("não é possível iniciar leilão, status é %s", inv.Status)
	}

	inv, _, err = s.DB.GetInvoice(inv.ID)
	if err != nil {
		return models.Invoice{}, errInternal(err)
	}
	logger.Log.Infof("Leilão da fatura %s iniciado: preço %d -> %d em %dh", inv.BusinessID, startPrice, minPrice, p.DurationHours)
	return inv, nil
}

// InvoiceDetails é a fatura enriquecida com preço ao vivo e relacionados.
type InvoiceDetails struct {
	Invoice      models.Invoice                `json:"invoice"`
	CurrentPrice int64                         `json:"current_price"`
	DiscountBps  int64                         `json:"discount_bps"`
	Holdings     []models.Investment           `json:"holdings"`
	OpenOrders   []models.SellOrder            `json:"open_orders"`
	Distribution []models.InvestorDistribution `json:"distributions,omitempty"`
}

// GetInvoice resolve uma fatura por qualquer um de seus IDs e a enriquece
// com preço corrente, posições e ordens abertas.
func (s *InvoiceService) GetInvoice(ref string) (InvoiceDetails, error) {
	inv, found, err := s.DB.GetInvoiceByAnyID(ref)
	if err != nil {
		return InvoiceDetails{}, errInternal(err)
	}
	if !found {
		return InvoiceDetails{}, errNotFound("fatura %s não encontrada", ref)
	}

	holdings, err := s.DB.ListInvestmentsByInvoice(inv.ID)
	if err != nil {
		return InvoiceDetails{}, errInternal(err)
	}
	openOrders, err := s.DB.ListOrders(storage.OrderFilter{InvoiceID: inv.ID, Status: models.OrderOpen})
	if err != nil {
		return InvoiceDetails{}, errInternal(err)
	}
	partial, err := s.DB.ListOrders(storage.OrderFilter{InvoiceID: inv.ID, Status: models.OrderPartiallyFilled})
	if err != nil {
		return InvoiceDetails{}, errInternal(err)
	}
	openOrders = append(openOrders, partial...)

	details := InvoiceDetails{
		Invoice:      inv,
		CurrentPrice: s.Oracle.CurrentPrice(inv),
		Holdings:     holdings,
		OpenOrders:   openOrders,
	}
	details.DiscountBps = models.DiscountBps(inv.Amount, details.CurrentPrice)

	if inv.Status == models.StatusSettled {
		dists, err := s.DB.ListDistributionsByInvoice(inv.ID)
		if err != nil {
			return InvoiceDetails{}, errInternal(err)
		}
		details.Distribution = dists
	}
	return details, nil
}

// ListInvoices lista faturas com os filtros informados.
func (s *InvoiceService) ListInvoices(f storage.InvoiceFilter) ([]models.Invoice, error) {
	invoices, err := s.DB.ListInvoices(f)
	if err != nil {
		return nil, errInternal(err)
	}
	return invoices, nil
}

// CheckStatus deriva OVERDUE/DEFAULTED para faturas vencidas sem
// liquidação, persistindo a mudança, e retorna o status corrente.
func (s *InvoiceService) CheckStatus(invoiceRef string) (models.InvoiceStatus, error) {
	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return "", errInternal(err)
	}
	if !found {
		return "", errNotFound("fatura %s não encontrada", invoiceRef)
	}

	live := inv.Status == models.StatusVerified || inv.Status == models.StatusFunding ||
		inv.Status == models.StatusFunded || inv.Status == models.StatusOverdue
	if !live || inv.RepaymentReceived > 0 {
		return inv.Status, nil
	}

	now := time.Now()
	gracePeriod := time.Duration(s.GracePeriodDays) * 24 * time.Hour
	switch {
	case now.After(inv.DueDate.Add(gracePeriod)):
		ok, err := s.DB.TransitionInvoiceStatus(inv.ID,
			[]models.InvoiceStatus{models.StatusVerified, models.StatusFunding, models.StatusFunded, models.StatusOverdue},
			models.StatusDefaulted)
		if err != nil {
			return "", errInternal(err)
		}
		if ok {
			logger.Log.Warnf("Fatura %s marcada como DEFAULTED", inv.BusinessID)
			return models.StatusDefaulted, nil
		}
	case now.After(inv.DueDate) && inv.Status != models.StatusOverdue:
		ok, err := s.DB.TransitionInvoiceStatus(inv.ID,
			[]models.InvoiceStatus{models.StatusVerified, models.StatusFunding, models.StatusFunded},
			models.StatusOverdue)
		if err != nil {
			return "", errInternal(err)
		}
		if ok {
			logger.Log.Infof("Fatura %s marcada como OVERDUE", inv.BusinessID)
			return models.StatusOverdue, nil
		}
	}

	inv, _, err = s.DB.GetInvoice(inv.ID)
	if err != nil {
		return "", errInternal(err)
	}
	return inv.Status, nil
}

// Revoke revoga uma fatura do fornecedor: DRAFT sempre, VERIFIED somente
// após o vencimento. Posições remanescentes são anuladas.
func (s *InvoiceService) Revoke(session models.Session, invoiceRef string) (models.Invoice, error) {
	inv, err := s.ownedInvoice(session, invoiceRef, models.RoleSupplier)
	if err != nil {
		return models.Invoice{}, err
	}

	canRevoke := inv.Status == models.StatusDraft ||
		(inv.Status == models.StatusVerified && time.Now().After(inv.DueDate))
	if !canRevoke {
		return models.Invoice{}, errState("não é possível revogar, status é %s", inv.Status)
	}

	ok, err := s.DB.TransitionInvoiceStatus(inv.ID,
		[]models.InvoiceStatus{models.StatusDraft, models.StatusVerified}, models.StatusRevoked)
	if err != nil {
		return models.Invoice{}, errInternal(err)
	}
	if !ok {
		return models.Invoice{}, errState("não é possível revogar, status mudou")
	}
	if err := s.DB.ClearInvestments(inv.ID); err != nil {
		return models.Invoice{}, errInternal(err)
	}

	inv, _, err = s.DB.GetInvoice(inv.ID)
	if err != nil {
		return models.Invoice{}, errInternal(err)
	}
	logger.Log.Infof("Fatura %s revogada pelo fornecedor", inv.BusinessID)
	return inv, nil
}

// RaiseDispute abre uma disputa do comprador e congela a fatura.
func (s *InvoiceService) RaiseDispute(session models.Session, invoiceRef, reason string) (models.Dispute, error) {
	inv, err := s.ownedInvoice(session, invoiceRef, models.RoleBuyer)
	if err != nil {
		return models.Dispute{}, err
	}
	if reason == "" {
		return models.Dispute{}, errValidation("motivo da disputa é obrigatório")
	}

	from := []models.InvoiceStatus{models.StatusVerified, models.StatusFunding, models.StatusFunded, models.StatusOverdue}
	ok, err := s.DB.TransitionInvoiceStatus(inv.ID, from, models.StatusDisputed)
	if err != nil {
		return models.Dispute{}, errInternal(err)
	}
	if !ok {
		return models.Dispute{}, errState("não é possível disputar, status é %s", inv.Status)
	}

	dispute := models.Dispute{
		ID:         uuid.New().String(),
		InvoiceID:  inv.ID,
		RaisedBy:   session.UserID,
		Reason:     reason,
		Resolution: models.DisputePending,
		RaisedAt:   time.Now(),
	}
	if err := s.DB.SaveDispute(dispute); err != nil {
		return models.Dispute{}, errInternal(err)
	}
	logger.Log.Warnf("Disputa aberta sobre a fatura %s: %s", inv.BusinessID, reason)
	return dispute, nil
}

// ResolveDispute decide uma disputa pendente. Procedente: posições são
// anuladas (clawback) e a fatura permanece congelada. Improcedente: a
// fatura volta a FUNDED.
func (s *InvoiceService) ResolveDispute(session models.Session, invoiceRef string, valid bool) (models.Dispute, error) {
	if session.Role != models.RoleAdmin {
		return models.Dispute{}, errForbidden("somente administradores resolvem disputas")
	}
	inv, found, err := s.DB.GetInvoiceByAnyID(invoiceRef)
	if err != nil {
		return models.Dispute{}, errInternal(err)
	}
	if !found {
		return models.Dispute{}, errNotFound("fatura %s não encontrada", invoiceRef)
	}
	if inv.Status != models.StatusDisputed {
		return models.Dispute{}, errState("fatura %s não está em disputa", inv.BusinessID)
	}
	dispute, found, err := s.DB.GetOpenDispute(inv.ID)
	if err != nil {
		return models.Dispute{}, errInternal(err)
	}
	if !found {
		return models.Dispute{}, errNotFound("disputa pendente da fatura %s não encontrada", inv.BusinessID)
	}

	resolution := models.DisputeInvalid
	if valid {
		resolution = models.DisputeValid
	}
	ok, err := s.DB.ResolveDispute(dispute.ID, resolution, time.Now())
	if err != nil {
		return models.Dispute{}, errInternal(err)
	}
	if !ok {
		return models.Dispute{}, errState("disputa da fatura %s já resolvida", inv.BusinessID)
	}

	if valid {
		if err := s.DB.ClearInvestments(inv.ID); err != nil {
			return models.Dispute{}, errInternal(err)
		}
		logger.Log.Warnf("Disputa da fatura %s procedente, posições anuladas", inv.BusinessID)
	} else {
		if _, err := s.DB.TransitionInvoiceStatus(inv.ID,
			[]models.InvoiceStatus{models.StatusDisputed}, models.StatusFunded); err != nil {
			return models.Dispute{}, errInternal(err)
		}
		logger.Log.Infof("Disputa da fatura %s improcedente, fatura descongelada", inv.BusinessID)
	}

	dispute.Resolution = resolution
	return dispute, nil
}

// ownedInvoice resolve a fatura e garante que a sessão tem o papel
// esperado e é a parte correspondente (fornecedor ou comprador).
func (s *InvoiceService) ownedInvoice(session models.Session, ref string, role models.Role) (models.Invoice, error) {
	inv, found, err := s.DB.GetInvoiceByAnyID(ref)
	if err != nil {
		return models.Invoice{}, errInternal(err)
	}
	if !found {
		return models.Invoice{}, errNotFound("fatura %s não encontrada", ref)
	}
	switch role {
	case models.RoleSupplier:
		if inv.SupplierID != session.UserID {
			return models.Invoice{}, errForbidden("fatura %s não pertence a este fornecedor", inv.BusinessID)
		}
	case models.RoleBuyer:
		if inv.BuyerID != session.UserID {
			return models.Invoice{}, errForbidden("fatura %s não é deste comprador", inv.BusinessID)
		}
	default:
		return models.Invoice{}, errInternal(fmt.Errorf("papel inesperado %s", role))
	}
	return inv, nil
}
