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

func investorSession() models.Session {
	return models.Session{
		UserID:         "investor-1",
		Role:           models.RoleInvestor,
		StellarAddress: "GBVESTIDOR1",
		KYCApproved:    true,
	}
}

func fundingInvoice() models.Invoice {
	start := time.Now().Add(-2 * time.Hour)
	return models.Invoice{
		ID:              "inv-1",
		BusinessID:      "INV-1001",
		LedgerInvoiceID: "7",
		SupplierID:      "supplier-1",
		BuyerID:         "buyer-1",
		Amount:          1000_0000000,
		Status:          models.StatusFunding,
		TotalTokens:     1000,
		TokensSold:      0,
		TokensRemaining: 1000,
		AuctionStart:    &start,
	}
}

func TestPrepareInvestCalculaPagamentoAoPrecoCorrente(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewInvestmentService(db, ledger, services.NewPriceOracleService(ledger), 200)

	inv := fundingInvoice()
	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	ledger.On("GetCurrentPrice", "7").Return(int64(950_0000000), nil)
	ledger.On("BuildInvestTx", "GBVESTIDOR1", "7", int64(400)).Return("tx-base64", nil)

	terms, err := svc.PrepareInvest(investorSession(), "INV-1001", 400)

	assert.NoError(t, err)
	// 400 * 950_0000000 / 1000 = 380_0000000
	assert.Equal(t, int64(380_0000000), terms.PaymentAmount)
	assert.Equal(t, int64(950_0000000), terms.CurrentPrice)
	assert.Equal(t, "tx-base64", terms.UnsignedTx)
}

func TestPrepareInvestRejeitaAcimaDoEstoque(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewInvestmentService(db, ledger, services.NewPriceOracleService(ledger), 200)

	inv := fundingInvoice()
	inv.TokensSold = 900
	inv.TokensRemaining = 100
	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)

	_, err := svc.PrepareInvest(investorSession(), "INV-1001", 101)

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindValidation, svcErr.Kind)
	ledger.AssertNotCalled(t, "BuildInvestTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestPrepareInvestExigeKYC(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewInvestmentService(db, ledger, services.NewPriceOracleService(ledger), 200)

	session := investorSession()
	session.KYCApproved = false

	_, err := svc.PrepareInvest(session, "INV-1001", 100)

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindForbidden, svcErr.Kind)
}

func TestConfirmInvestAlocaECreditaSeguro(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewInvestmentService(db, ledger, services.NewPriceOracleService(ledger), 200)

	inv := fundingInvoice()
	updated := inv
	updated.TokensSold = 400
	updated.TokensRemaining = 600

	merged := models.Investment{
		InvoiceID:      "inv-1",
		InvestorID:     "investor-1",
		TokenAmount:    400,
		InvestedAmount: 380_0000000,
		Completed:      true,
	}

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-1", "investment", "inv-1").Return(nil)
	db.On("AllocateTokens", "inv-1", int64(400)).Return(updated, true, nil)
	db.On("UpsertInvestment", mock.MatchedBy(func(i models.Investment) bool {
		return i.InvoiceID == "inv-1" && i.TokenAmount == 400 &&
			i.InvestedAmount == 380_0000000 && i.Source == models.SourcePrimary
	})).Return(nil)
	// Taxa de seguro: 200 bps de 380_0000000
	db.On("CreditInsurancePool", int64(7_6000000)).Return(nil)
	db.On("GetInvestment", "inv-1", "investor-1").Return(merged, true, nil)

	result, err := svc.ConfirmInvest(investorSession(), "INV-1001", "hash-1", 400, 380_0000000)

	assert.NoError(t, err)
	// Conservação: vendidos + remanescentes = total
	assert.Equal(t, result.Invoice.TotalTokens, result.Invoice.TokensSold+result.Invoice.TokensRemaining)
	assert.Equal(t, int64(400), result.Investment.TokenAmount)
	db.AssertExpectations(t)
}

func TestConfirmInvestRejeitaTransacaoRepetida(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewInvestmentService(db, ledger, services.NewPriceOracleService(ledger), 200)

	inv := fundingInvoice()
	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-1", "investment", "inv-1").Return(storage.ErrDuplicate)
	// O hash pertence a outra operação, não a um retry deste confirm
	db.On("LedgerTxMatches", "hash-1", "investment", "inv-1").Return(false, nil)
	db.On("GetInvestment", "inv-1", "investor-1").Return(models.Investment{}, false, nil)

	_, err := svc.ConfirmInvest(investorSession(), "INV-1001", "hash-1", 400, 380_0000000)

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindState, svcErr.Kind)
	db.AssertNotCalled(t, "AllocateTokens", mock.Anything, mock.Anything)
}

func TestConfirmInvestReapresentadoRetornaPosicaoExistente(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewInvestmentService(db, ledger, services.NewPriceOracleService(ledger), 200)

	inv := fundingInvoice()
	current := inv
	current.TokensSold = 400
	current.TokensRemaining = 600
	holding := models.Investment{
		InvoiceID:      "inv-1",
		InvestorID:     "investor-1",
		TokenAmount:    400,
		InvestedAmount: 380_0000000,
		Completed:      true,
	}

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-1", "investment", "inv-1").Return(storage.ErrDuplicate)
	db.On("LedgerTxMatches", "hash-1", "investment", "inv-1").Return(true, nil)
	db.On("GetInvestment", "inv-1", "investor-1").Return(holding, true, nil)
	db.On("GetInvoice", "inv-1").Return(current, true, nil)

	result, err := svc.ConfirmInvest(investorSession(), "INV-1001", "hash-1", 400, 380_0000000)

	// O retry de um confirm já aplicado devolve o resultado existente
	assert.NoError(t, err)
	assert.Equal(t, int64(400), result.Investment.TokenAmount)
	assert.Equal(t, int64(600), result.Invoice.TokensRemaining)
	db.AssertNotCalled(t, "AllocateTokens", mock.Anything, mock.Anything)
	db.AssertNotCalled(t, "UpsertInvestment", mock.Anything)
}

func TestConfirmInvestPerdeuCorridaDeEstoque(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewInvestmentService(db, ledger, services.NewPriceOracleService(ledger), 200)

	inv := fundingInvoice()
	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-2", "investment", "inv-1").Return(nil)
	db.On("AllocateTokens", "inv-1", int64(1000)).Return(models.Invoice{}, false, nil)

	_, err := svc.ConfirmInvest(investorSession(), "INV-1001", "hash-2", 1000, 950_0000000)

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindState, svcErr.Kind)
	db.AssertNotCalled(t, "UpsertInvestment", mock.Anything)
}
