package services

import (
	"time"

	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/storage"
)

// Store é o contrato de persistência consumido pelos serviços,
// implementado por storage.DB e pelos mocks de teste.
type Store interface {
	// Usuários
	SaveUser(user models.User) error
	GetUser(id string) (models.User, bool, error)
	GetUserByStellarAddress(address string) (models.User, bool, error)
	SetUserKYC(id string, approved bool) error

	// Faturas
	NextInvoiceBusinessID() (string, error)
	SaveInvoice(inv models.Invoice) error
	GetInvoice(id string) (models.Invoice, bool, error)
	GetInvoiceByAnyID(ref string) (models.Invoice, bool, error)
	ListInvoices(f storage.InvoiceFilter) ([]models.Invoice, error)
	ConfirmMint(id, ledgerInvoiceID string) (bool, error)
	ApproveInvoice(id, tokenSymbol string, at time.Time) (bool, error)
	StartAuction(id string, start, end time.Time, startPrice, minPrice, dropRate int64) (bool, error)
	AllocateTokens(id string, tokenAmount int64) (models.Invoice, bool, error)
	MarkSettled(id string, amount int64, txHash string, at time.Time) (bool, error)
	SetSettlementRemainder(id string, remainder int64) error
	TransitionInvoiceStatus(id string, from []models.InvoiceStatus, to models.InvoiceStatus) (bool, error)

	// Investimentos (posições)
	UpsertInvestment(inv models.Investment) error
	GetInvestment(invoiceID, investorID string) (models.Investment, bool, error)
	ListInvestmentsByInvoice(invoiceID string) ([]models.Investment, error)
	ListInvestmentsByInvestor(investorID string) ([]models.Investment, error)
	DecrementInvestmentTokens(invoiceID, investorID string, tokenAmount int64) (bool, error)
	ClearInvestments(invoiceID string) error

	// Ordens do mercado secundário
	NextOrderBusinessID() (string, error)
	SaveOrder(order models.SellOrder) error
	GetOrder(ref string) (models.SellOrder, bool, error)
	ListOrders(f storage.OrderFilter) ([]models.SellOrder, error)
	FillOrderTokens(orderID string, tokenAmount int64) (models.SellOrder, bool, error)
	CancelOrder(orderID, sellerID string) (bool, error)
	SaveOrderFill(fill models.OrderFill) error
	ListFillsByOrder(orderID string) ([]models.OrderFill, error)

	// Distribuições de liquidação
	SaveDistribution(dist models.InvestorDistribution) error
	ListDistributionsByInvoice(invoiceID string) ([]models.InvestorDistribution, error)
	ListDistributionsByInvestor(investorID string) ([]models.InvestorDistribution, error)

	// Seguro
	GetInsurancePool() (models.InsurancePool, error)
	CreditInsurancePool(amount int64) error
	DebitInsurancePool(amount int64) (bool, error)
	SaveInsuranceClaim(claim models.InsuranceClaim) error
	GetInsuranceClaim(invoiceID, investorID string) (models.InsuranceClaim, bool, error)
	ListClaimsByInvestor(investorID string) ([]models.InsuranceClaim, error)

	// Disputas
	SaveDispute(dispute models.Dispute) error
	GetOpenDispute(invoiceID string) (models.Dispute, bool, error)
	ResolveDispute(id string, resolution models.DisputeResolution, at time.Time) (bool, error)

	// Idempotência dos confirms
	RegisterLedgerTx(txHash, kind, referenceID string) error
	LedgerTxMatches(txHash, kind, referenceID string) (bool, error)
}

// MintDraftParams são os parâmetros da transação de mint de uma fatura.
type MintDraftParams struct {
	SupplierAddress string
	BuyerAddress    string
	Amount          int64
	Currency        string
	DueDate         time.Time
	Description     string
	PurchaseOrder   string
	DocumentHash    string
}

// LedgerService é o adaptador do ledger externo (Stellar/Soroban). As
// operações Build* retornam o envelope XDR em base64 de uma transação NÃO
// assinada; o cliente assina e submete. Este serviço nunca guarda chaves
// de usuários finais.
type LedgerService interface {
	GetCurrentPrice(ledgerInvoiceID string) (int64, error)
	GetSettlementAmount(ledgerInvoiceID string) (int64, error)

	BuildMintDraftTx(p MintDraftParams) (string, error)
	BuildApproveTx(buyerAddress, ledgerInvoiceID string) (string, error)
	BuildStartAuctionTx(supplierAddress, ledgerInvoiceID string, durationHours int64, maxDiscountBps int64) (string, error)
	BuildInvestTx(investorAddress, ledgerInvoiceID string, tokenAmount int64) (string, error)
	BuildCreateOrderTx(sellerAddress, ledgerInvoiceID string, tokenAmount, pricePerToken int64) (string, error)
	BuildFillOrderTx(buyerAddress, ledgerOrderID string, tokenAmount int64) (string, error)
	BuildSettleTx(buyerAddress, ledgerInvoiceID string, amount int64) (string, error)
	BuildClaimInsuranceTx(investorAddress, ledgerInvoiceID string) (string, error)

	SubmitSignedTransaction(signedTxXDR string) (string, error)
	SyncInvestorKYC(investorAddress string, approved bool) (string, error)
}
