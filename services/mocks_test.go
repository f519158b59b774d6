package services_test

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/services"
	"github.com/ferreirogomes/notinha/storage"
)

// MockDB é uma implementação mock de services.Store para testes de unidade.
type MockDB struct {
	mock.Mock
}

func (m *MockDB) SaveUser(user models.User) error {
	args := m.Called(user)
	return args.Error(0)
}
func (m *MockDB) GetUser(id string) (models.User, bool, error) {
	args := m.Called(id)
	return args.Get(0).(models.User), args.Bool(1), args.Error(2)
}
func (m *MockDB) GetUserByStellarAddress(address string) (models.User, bool, error) {
	args := m.Called(address)
	return args.Get(0).(models.User), args.Bool(1), args.Error(2)
}
func (m *MockDB) SetUserKYC(id string, approved bool) error {
	args := m.Called(id, approved)
	return args.Error(0)
}

func (m *MockDB) NextInvoiceBusinessID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}
func (m *MockDB) SaveInvoice(inv models.Invoice) error {
	args := m.Called(inv)
	return args.Error(0)
}
func (m *MockDB) GetInvoice(id string) (models.Invoice, bool, error) {
	args := m.Called(id)
	return args.Get(0).(models.Invoice), args.Bool(1), args.Error(2)
}
func (m *MockDB) GetInvoiceByAnyID(ref string) (models.Invoice, bool, error) {
	args := m.Called(ref)
	return args.Get(0).(models.Invoice), args.Bool(1), args.Error(2)
}
func (m *MockDB) ListInvoices(f storage.InvoiceFilter) ([]models.Invoice, error) {
	args := m.Called(f)
	return args.Get(0).([]models.Invoice), args.Error(1)
}
func (m *MockDB) ConfirmMint(id, ledgerInvoiceID string) (bool, error) {
	args := m.Called(id, ledgerInvoiceID)
	return args.Bool(0), args.Error(1)
}
func (m *MockDB) ApproveInvoice(id, tokenSymbol string, at time.Time) (bool, error) {
	args := m.Called(id, tokenSymbol, at)
	return args.Bool(0), args.Error(1)
}
func (m *MockDB) StartAuction(id string, start, end time.Time, startPrice, minPrice, dropRate int64) (bool, error) {
	args := m.Called(id, start, end, startPrice, minPrice, dropRate)
	return args.Bool(0), args.Error(1)
}
func (m *MockDB) AllocateTokens(id string, tokenAmount int64) (models.Invoice, bool, error) {
	args := m.Called(id, tokenAmount)
	return args.Get(0).(models.Invoice), args.Bool(1), args.Error(2)
}
func (m *MockDB) MarkSettled(id string, amount int64, txHash string, at time.Time) (bool, error) {
	args := m.Called(id, amount, txHash, at)
	return args.Bool(0), args.Error(1)
}
func (m *MockDB) SetSettlementRemainder(id string, remainder int64) error {
	args := m.Called(id, remainder)
	return args.Error(0)
}
func (m *MockDB) TransitionInvoiceStatus(id string, from []models.InvoiceStatus, to models.InvoiceStatus) (bool, error) {
	args := m.Called(id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockDB) UpsertInvestment(inv models.Investment) error {
	args := m.Called(inv)
	return args.Error(0)
}
func (m *MockDB) GetInvestment(invoiceID, investorID string) (models.Investment, bool, error) {
	args := m.Called(invoiceID, investorID)
	return args.Get(0).(models.Investment), args.Bool(1), args.Error(2)
}
func (m *MockDB) ListInvestmentsByInvoice(invoiceID string) ([]models.Investment, error) {
	args := m.Called(invoiceID)
	return args.Get(0).([]models.Investment), args.Error(1)
}
func (m *MockDB) ListInvestmentsByInvestor(investorID string) ([]models.Investment, error) {
	args := m.Called(investorID)
	return args.Get(0).([]models.Investment), args.Error(1)
}
func (m *MockDB) DecrementInvestmentTokens(invoiceID, investorID string, tokenAmount int64) (bool, error) {
	args := m.Called(invoiceID, investorID, tokenAmount)
	return args.Bool(0), args.Error(1)
}
func (m *MockDB) ClearInvestments(invoiceID string) error {
	args := m.Called(invoiceID)
	return args.Error(0)
}

func (m *MockDB) NextOrderBusinessID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}
func (m *MockDB) SaveOrder(order models.SellOrder) error {
	args := m.Called(order)
	return args.Error(0)
}
func (m *MockDB) GetOrder(ref string) (models.SellOrder, bool, error) {
	args := m.Called(ref)
	return args.Get(0).(models.SellOrder), args.Bool(1), args.Error(2)
}
func (m *MockDB) ListOrders(f storage.OrderFilter) ([]models.SellOrder, error) {
	args := m.Called(f)
	return args.Get(0).([]models.SellOrder), args.Error(1)
}
func (m *MockDB) FillOrderTokens(orderID string, tokenAmount int64) (models.SellOrder, bool, error) {
	args := m.Called(orderID, tokenAmount)
	return args.Get(0).(models.SellOrder), args.Bool(1), args.Error(2)
}
func (m *MockDB) CancelOrder(orderID, sellerID string) (bool, error) {
	args := m.Called(orderID, sellerID)
	return args.Bool(0), args.Error(1)
}
func (m *MockDB) SaveOrderFill(fill models.OrderFill) error {
	args := m.Called(fill)
	return args.Error(0)
}
func (m *MockDB) ListFillsByOrder(orderID string) ([]models.OrderFill, error) {
	args := m.Called(orderID)
	return args.Get(0).([]models.OrderFill), args.Error(1)
}

func (m *MockDB) SaveDistribution(dist models.InvestorDistribution) error {
	args := m.Called(dist)
	return args.Error(0)
}
func (m *MockDB) ListDistributionsByInvoice(invoiceID string) ([]models.InvestorDistribution, error) {
	args := m.Called(invoiceID)
	return args.Get(0).([]models.InvestorDistribution), args.Error(1)
}
func (m *MockDB) ListDistributionsByInvestor(investorID string) ([]models.InvestorDistribution, error) {
	args := m.Called(investorID)
	return args.Get(0).([]models.InvestorDistribution), args.Error(1)
}

func (m *MockDB) GetInsurancePool() (models.InsurancePool, error) {
	args := m.Called()
	return args.Get(0).(models.InsurancePool), args.Error(1)
}
func (m *MockDB) CreditInsurancePool(amount int64) error {
	args := m.Called(amount)
	return args.Error(0)
}
func (m *MockDB) DebitInsurancePool(amount int64) (bool, error) {
	args := m.Called(amount)
	return args.Bool(0), args.Error(1)
}
func (m *MockDB) SaveInsuranceClaim(claim models.InsuranceClaim) error {
	args := m.Called(claim)
	return args.Error(0)
}
func (m *MockDB) GetInsuranceClaim(invoiceID, investorID string) (models.InsuranceClaim, bool, error) {
	args := m.Called(invoiceID, investorID)
	return args.Get(0).(models.InsuranceClaim), args.Bool(1), args.Error(2)
}
func (m *MockDB) ListClaimsByInvestor(investorID string) ([]models.InsuranceClaim, error) {
	args := m.Called(investorID)
	return args.Get(0).([]models.InsuranceClaim), args.Error(1)
}

func (m *MockDB) SaveDispute(dispute models.Dispute) error {
	args := m.Called(dispute)
	return args.Error(0)
}
func (m *MockDB) GetOpenDispute(invoiceID string) (models.Dispute, bool, error) {
	args := m.Called(invoiceID)
	return args.Get(0).(models.Dispute), args.Bool(1), args.Error(2)
}
func (m *MockDB) ResolveDispute(id string, resolution models.DisputeResolution, at time.Time) (bool, error) {
	args := m.Called(id, resolution, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockDB) RegisterLedgerTx(txHash, kind, referenceID string) error {
	args := m.Called(txHash, kind, referenceID)
	return args.Error(0)
}

func (m *MockDB) LedgerTxMatches(txHash, kind, referenceID string) (bool, error) {
	args := m.Called(txHash, kind, referenceID)
	return args.Bool(0), args.Error(1)
}

// MockLedgerService é uma implementação mock de services.LedgerService.
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) GetCurrentPrice(ledgerInvoiceID string) (int64, error) {
	args := m.Called(ledgerInvoiceID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockLedgerService) GetSettlementAmount(ledgerInvoiceID string) (int64, error) {
	args := m.Called(ledgerInvoiceID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockLedgerService) BuildMintDraftTx(p services.MintDraftParams) (string, error) {
	args := m.Called(p)
	return args.String(0), args.Error(1)
}
func (m *MockLedgerService) BuildApproveTx(buyerAddress, ledgerInvoiceID string) (string, error) {
	args := m.Called(buyerAddress, ledgerInvoiceID)
	return args.String(0), args.Error(1)
}
func (m *MockLedgerService) BuildStartAuctionTx(supplierAddress, ledgerInvoiceID string, durationHours, maxDiscountBps int64) (string, error) {
	args := m.Called(supplierAddress, ledgerInvoiceID, durationHours, maxDiscountBps)
	return args.String(0), args.Error(1)
}
func (m *MockLedgerService) BuildInvestTx(investorAddress, ledgerInvoiceID string, tokenAmount int64) (string, error) {
	args := m.Called(investorAddress, ledgerInvoiceID, tokenAmount)
	return args.String(0), args.Error(1)
}
func (m *MockLedgerService) BuildCreateOrderTx(sellerAddress, ledgerInvoiceID string, tokenAmount, pricePerToken int64) (string, error) {
	args := m.Called(sellerAddress, ledgerInvoiceID, tokenAmount, pricePerToken)
	return args.String(0), args.Error(1)
}
func (m *MockLedgerService) BuildFillOrderTx(buyerAddress, ledgerOrderID string, tokenAmount int64) (string, error) {
	args := m.Called(buyerAddress, ledgerOrderID, tokenAmount)
	return args.String(0), args.Error(1)
}
func (m *MockLedgerService) BuildSettleTx(buyerAddress, ledgerInvoiceID string, amount int64) (string, error) {
	args := m.Called(buyerAddress, ledgerInvoiceID, amount)
	return args.String(0), args.Error(1)
}
func (m *MockLedgerService) BuildClaimInsuranceTx(investorAddress, ledgerInvoiceID string) (string, error) {
	args := m.Called(investorAddress, ledgerInvoiceID)
	return args.String(0), args.Error(1)
}
func (m *MockLedgerService) SubmitSignedTransaction(signedTxXDR string) (string, error) {
	args := m.Called(signedTxXDR)
	return args.String(0), args.Error(1)
}
func (m *MockLedgerService) SyncInvestorKYC(investorAddress string, approved bool) (string, error) {
	args := m.Called(investorAddress, approved)
	return args.String(0), args.Error(1)
}
