package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/services"
	"github.com/ferreirogomes/notinha/storage"
)

func buyerSession() models.Session {
	return models.Session{
		UserID:         "buyer-1",
		Role:           models.RoleBuyer,
		StellarAddress: "GBCOMPRADOR1",
	}
}

func fundedInvoice() models.Invoice {
	return models.Invoice{
		ID:              "inv-1",
		BusinessID:      "INV-1001",
		LedgerInvoiceID: "7",
		SupplierID:      "supplier-1",
		BuyerID:         "buyer-1",
		Amount:          1_100_000,
		Status:          models.StatusFunded,
		TotalTokens:     1000,
		TokensSold:      1000,
		TokensRemaining: 0,
	}
}

func TestConfirmSettleDistribuiProRata(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewSettlementService(db, ledger, services.NewPriceOracleService(ledger))

	inv := fundedInvoice()
	holdings := []models.Investment{
		{InvoiceID: "inv-1", InvestorID: "investor-a", TokenAmount: 600, InvestedAmount: 570_000, Completed: true},
		{InvoiceID: "inv-1", InvestorID: "investor-b", TokenAmount: 400, InvestedAmount: 380_000, Completed: true},
	}
	settled := inv
	settled.Status = models.StatusSettled
	settled.RepaymentReceived = 1_100_000

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-1", "settlement", "inv-1").Return(nil)
	db.On("MarkSettled", "inv-1", int64(1_100_000), "hash-1", mock.Anything).Return(true, nil)
	db.On("ListInvestmentsByInvoice", "inv-1").Return(holdings, nil)
	db.On("SaveDistribution", mock.Anything).Return(nil)
	db.On("SetSettlementRemainder", "inv-1", int64(0)).Return(nil)
	db.On("GetInvoice", "inv-1").Return(settled, true, nil)

	result, err := svc.ConfirmSettle(buyerSession(), "INV-1001", "hash-1", 1_100_000)

	assert.NoError(t, err)
	assert.Len(t, result.Distributions, 2)
	// 600/1000 de 1.100.000 = 660.000; 400/1000 = 440.000
	assert.Equal(t, int64(660_000), result.Distributions[0].DistributionAmount)
	assert.Equal(t, int64(440_000), result.Distributions[1].DistributionAmount)
	// Lucro = distribuição - custo
	assert.Equal(t, int64(90_000), result.Distributions[0].Profit)
	assert.Equal(t, int64(60_000), result.Distributions[1].Profit)
	assert.Equal(t, int64(0), result.Remainder)
}

func TestConfirmSettleRegistraSobraDeArredondamento(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewSettlementService(db, ledger, services.NewPriceOracleService(ledger))

	inv := fundedInvoice()
	inv.Amount = 100
	holdings := []models.Investment{
		{InvoiceID: "inv-1", InvestorID: "investor-a", TokenAmount: 333, InvestedAmount: 30, Completed: true},
		{InvoiceID: "inv-1", InvestorID: "investor-b", TokenAmount: 667, InvestedAmount: 60, Completed: true},
	}
	settled := inv
	settled.Status = models.StatusSettled

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-2", "settlement", "inv-1").Return(nil)
	db.On("MarkSettled", "inv-1", int64(100), "hash-2", mock.Anything).Return(true, nil)
	db.On("ListInvestmentsByInvoice", "inv-1").Return(holdings, nil)
	db.On("SaveDistribution", mock.Anything).Return(nil)
	db.On("SetSettlementRemainder", "inv-1", int64(1)).Return(nil)
	db.On("GetInvoice", "inv-1").Return(settled, true, nil)

	result, err := svc.ConfirmSettle(buyerSession(), "INV-1001", "hash-2", 100)

	assert.NoError(t, err)
	// 333*100/1000 = 33 (truncado); 667*100/1000 = 66 (truncado); sobra 1
	assert.Equal(t, int64(33), result.Distributions[0].DistributionAmount)
	assert.Equal(t, int64(66), result.Distributions[1].DistributionAmount)
	assert.Equal(t, int64(1), result.Remainder)
	db.AssertCalled(t, "SetSettlementRemainder", "inv-1", int64(1))
}

func TestConfirmSettleExatamenteUmaVez(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewSettlementService(db, ledger, services.NewPriceOracleService(ledger))

	inv := fundedInvoice()
	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-3", "settlement", "inv-1").Return(nil)
	// A fatura já foi liquidada por um confirm concorrente
	db.On("MarkSettled", "inv-1", int64(1_100_000), "hash-3", mock.Anything).Return(false, nil)

	_, err := svc.ConfirmSettle(buyerSession(), "INV-1001", "hash-3", 1_100_000)

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindState, svcErr.Kind)
	db.AssertNotCalled(t, "SaveDistribution", mock.Anything)
}

func TestConfirmSettleReapresentadoRetomaDistribuicao(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewSettlementService(db, ledger, services.NewPriceOracleService(ledger))

	inv := fundedInvoice()
	settled := inv
	settled.Status = models.StatusSettled
	settled.SettlementTxHash = "hash-1"
	settled.RepaymentReceived = 1_100_000
	holdings := []models.Investment{
		{InvoiceID: "inv-1", InvestorID: "investor-a", TokenAmount: 600, InvestedAmount: 570_000, Completed: true},
		{InvoiceID: "inv-1", InvestorID: "investor-b", TokenAmount: 400, InvestedAmount: 380_000, Completed: true},
	}

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-1", "settlement", "inv-1").Return(storage.ErrDuplicate)
	db.On("GetInvoice", "inv-1").Return(settled, true, nil)
	db.On("ListInvestmentsByInvoice", "inv-1").Return(holdings, nil)
	// A primeira distribuição já foi gravada antes da falha do confirm
	db.On("SaveDistribution", mock.MatchedBy(func(d models.InvestorDistribution) bool {
		return d.InvestorID == "investor-a"
	})).Return(storage.ErrDuplicate)
	db.On("SaveDistribution", mock.MatchedBy(func(d models.InvestorDistribution) bool {
		return d.InvestorID == "investor-b"
	})).Return(nil)
	db.On("SetSettlementRemainder", "inv-1", int64(0)).Return(nil)

	result, err := svc.ConfirmSettle(buyerSession(), "INV-1001", "hash-1", 1_100_000)

	assert.NoError(t, err)
	// Só a distribuição que faltava é gravada; a sobra considera as duas
	assert.Len(t, result.Distributions, 1)
	assert.Equal(t, "investor-b", result.Distributions[0].InvestorID)
	assert.Equal(t, int64(440_000), result.Distributions[0].DistributionAmount)
	assert.Equal(t, int64(0), result.Remainder)
	db.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmSettleHashDeOutraTransacaoRejeitado(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewSettlementService(db, ledger, services.NewPriceOracleService(ledger))

	inv := fundedInvoice()
	settled := inv
	settled.Status = models.StatusSettled
	settled.SettlementTxHash = "hash-original"

	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	db.On("RegisterLedgerTx", "hash-5", "settlement", "inv-1").Return(storage.ErrDuplicate)
	db.On("GetInvoice", "inv-1").Return(settled, true, nil)

	_, err := svc.ConfirmSettle(buyerSession(), "INV-1001", "hash-5", 1_100_000)

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindState, svcErr.Kind)
	db.AssertNotCalled(t, "ListInvestmentsByInvoice", mock.Anything)
}

func TestPrepareSettleSomenteComprador(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewSettlementService(db, ledger, services.NewPriceOracleService(ledger))

	inv := fundedInvoice()
	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)

	session := buyerSession()
	session.UserID = "outro-usuario"
	_, err := svc.PrepareSettle(session, "INV-1001", 0)

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindForbidden, svcErr.Kind)
}

func TestPrepareSettleRejeitaValorAbaixoDoDevido(t *testing.T) {
	db := new(MockDB)
	ledger := new(MockLedgerService)
	svc := services.NewSettlementService(db, ledger, services.NewPriceOracleService(ledger))

	inv := fundedInvoice()
	db.On("GetInvoiceByAnyID", "INV-1001").Return(inv, true, nil)
	ledger.On("GetSettlementAmount", "7").Return(int64(1_100_000), nil)

	_, err := svc.PrepareSettle(buyerSession(), "INV-1001", 1_000_000)

	var svcErr *services.Error
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, services.KindValidation, svcErr.Kind)
}
