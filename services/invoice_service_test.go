package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/services"
	"github.com/ferreirogomes/notinha/storage"
)

func supplierSession() models.Session {
	return models.Session{
		UserID:         "supplier-1",
		Role:           models.RoleSupplier,
		StellarAddress: "GBFORNECEDOR1",
	}
}

func newInvoiceService(db *MockDB, ledger *MockLedgerService) *services.InvoiceService {
	return services.NewInvoiceService(db, ledger, services.NewPriceOracleService(ledger), 30, 50)
}

func TestCreateInvoiceSomenteFornecedor(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	_, _, err := svc.CreateInvoice(investorSession(), services.CreateInvoiceParams{
		BuyerID:  "buyer-1",
		Amount:   1000_0000000,
		Currency: "XLM",
		DueDate:  time.Now().Add(60 * 24 * time.Hour),
	})

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindForbidden, svcErr.Kind)
}

func TestCreateInvoicePreparaMint(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	buyer := models.User{ID: "buyer-1", Role: models.RoleBuyer, StellarAddress: "GBCOMPRADOR1"}
	db.On("GetUser", "buyer-1").Return(buyer, true, nil)
	db.On("NextInvoiceBusinessID").Return("INV-1001", nil)
	db.On("SaveInvoice", mock.MatchedBy(func(i models.Invoice) bool {
		return i.BusinessID == "INV-1001" && i.Status == models.StatusPending
	})).Return(nil)
	ledger.On("BuildMintDraftTx", mock.Anything).Return("tx-base64", nil)

	inv, unsignedTx, err := svc.CreateInvoice(supplierSession(), services.CreateInvoiceParams{
		BuyerID:  "buyer-1",
		Amount:   1000_0000000,
		Currency: "XLM",
		DueDate:  time.Now().Add(60 * 24 * time.Hour),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusPending, inv.Status)
	assert.Equal(t, "tx-base64", unsignedTx)
	db.AssertExpectations(t)
}

func TestCreateInvoiceRejeitaVencimentoNoPassado(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	_, _, err := svc.CreateInvoice(supplierSession(), services.CreateInvoiceParams{
		BuyerID:  "buyer-1",
		Amount:   1000_0000000,
		Currency: "XLM",
		DueDate:  time.Now().Add(-time.Hour),
	})

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindValidation, svcErr.Kind)
}

func TestConfirmApproveEmiteTokens(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	inv := fundingInvoice()
	inv.Status = models.StatusDraft
	approved := inv
	approved.Status = models.StatusVerified
	approved.TokenSymbol = "NTA-INV-1001"
	approved.TotalTokens = inv.Amount
	approved.TokensRemaining = inv.Amount

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-1", "invoice_approve", "inv-1").Return(nil)
	db.On("ApproveInvoice", "inv-1", "NTA-INV-1001", mock.Anything).Return(true, nil)
	db.On("GetInvoice", "inv-1").Return(approved, true, nil)

	result, err := svc.ConfirmApprove(buyerSession(), "INV-1001", "hash-1")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusVerified, result.Status)
	assert.Equal(t, "NTA-INV-1001", result.TokenSymbol)
}

func TestCheckStatusDerivaOverdue(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	inv := fundingInvoice()
	inv.Status = models.StatusFunded
	inv.DueDate = time.Now().Add(-24 * time.Hour) // Vencida há 1 dia, carência de 30

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("TransitionInvoiceStatus", "inv-1",
		[]models.InvoiceStatus{models.StatusVerified, models.StatusFunding, models.StatusFunded},
		models.StatusOverdue).Return(true, nil)

	status, err := svc.CheckStatus("INV-1001")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusOverdue, status)
}

func TestCheckStatusDerivaDefaultAposCarencia(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	inv := fundingInvoice()
	inv.Status = models.StatusOverdue
	inv.DueDate = time.Now().Add(-40 * 24 * time.Hour) // Além da carência de 30 dias

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("TransitionInvoiceStatus", "inv-1",
		[]models.InvoiceStatus{models.StatusVerified, models.StatusFunding, models.StatusFunded, models.StatusOverdue},
		models.StatusDefaulted).Return(true, nil)

	status, err := svc.CheckStatus("INV-1001")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusDefaulted, status)
}

func TestCheckStatusNaoTocaFaturaLiquidada(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	inv := fundingInvoice()
	inv.Status = models.StatusSettled
	inv.DueDate = time.Now().Add(-90 * 24 * time.Hour)

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)

	status, err := svc.CheckStatus("INV-1001")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusSettled, status)
	db.AssertNotCalled(t, "TransitionInvoiceStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestRevokeDraftSempre(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	inv := fundingInvoice()
	inv.Status = models.StatusDraft
	revoked := inv
	revoked.Status = models.StatusRevoked

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("TransitionInvoiceStatus", "inv-1",
		[]models.InvoiceStatus{models.StatusDraft, models.StatusVerified},
		models.StatusRevoked).Return(true, nil)
	db.On("ClearInvestments", "inv-1").Return(nil)
	db.On("GetInvoice", "inv-1").Return(revoked, true, nil)

	result, err := svc.Revoke(supplierSession(), "INV-1001")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusRevoked, result.Status)
}

func TestRevokeVerifiedAntesDoVencimentoRejeitado(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	inv := fundingInvoice()
	inv.Status = models.StatusVerified
	inv.DueDate = time.Now().Add(30 * 24 * time.Hour) // Ainda não venceu

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)

	_, err := svc.Revoke(supplierSession(), "INV-1001")

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindState, svcErr.Kind)
}

func TestResolveDisputeSomenteAdmin(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	_, err := svc.ResolveDispute(investorSession(), "INV-1001", true)

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindForbidden, svcErr.Kind)
}

func TestResolveDisputeProcedenteAnulaPosicoes(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	inv := fundingInvoice()
	inv.Status = models.StatusDisputed
	dispute := models.Dispute{ID: "disp-1", InvoiceID: "inv-1", Resolution: models.DisputePending}

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("GetOpenDispute", "inv-1").Return(dispute, true, nil)
	db.On("ResolveDispute", "disp-1", models.DisputeValid, mock.Anything).Return(true, nil)
	db.On("ClearInvestments", "inv-1").Return(nil)

	admin := models.Session{UserID: "admin-1", Role: models.RoleAdmin}
	result, err := svc.ResolveDispute(admin, "INV-1001", true)

	assert.NoError(t, err)
	assert.Equal(t, models.DisputeValid, result.Resolution)
	db.AssertCalled(t, "ClearInvestments", "inv-1")
}

func TestConfirmMintRetryComMesmoLedgerID(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := newInvoiceService(db, ledger)

	inv := fundingInvoice()
	inv.Status = models.StatusDraft
	inv.LedgerInvoiceID = "7"

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-1", "invoice_mint", "inv-1").Return(storage.ErrDuplicate)

	result, err := svc.ConfirmMint(supplierSession(), "INV-1001", "hash-1", "7")

	// Retry do mesmo confirm é tolerado, não tratado como conflito
	assert.NoError(t, err)
	assert.Equal(t, models.StatusDraft, result.Status)
}
