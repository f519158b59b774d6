package services_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ferreirogomes/notinha/services"
)

func TestCurrentPriceLeDoLedger(t *testing.T) {
	ledger := new(MockLedgerService)
	oracle := services.NewPriceOracleService(ledger)

	inv := fundingInvoice()
	ledger.On("GetCurrentPrice", "7").Return(int64(950_0000000), nil)

	assert.Equal(t, int64(950_0000000), oracle.CurrentPrice(inv))
}

func TestCurrentPriceDegradaParaValorDeFace(t *testing.T) {
	ledger := new(MockLedgerService)
	oracle := services.NewPriceOracleService(ledger)

	// Sem leilão on-chain: valor de face, sem consultar o ledger
	inv := fundingInvoice()
	inv.AuctionStart = nil
	assert.Equal(t, inv.Amount, oracle.CurrentPrice(inv))
	ledger.AssertNotCalled(t, "GetCurrentPrice", "7")

	// Ledger fora do ar: valor de face em vez de erro
	inv = fundingInvoice()
	ledger.On("GetCurrentPrice", "7").Return(int64(0), errors.New("rpc indisponível"))
	assert.Equal(t, inv.Amount, oracle.CurrentPrice(inv))
}

func TestDiscountZeroNoValorDeFace(t *testing.T) {
	ledger := new(MockLedgerService)
	oracle := services.NewPriceOracleService(ledger)

	inv := fundingInvoice()
	ledger.On("GetCurrentPrice", "7").Return(inv.Amount, nil)

	assert.Equal(t, int64(0), oracle.Discount(inv))
}

func TestSettlementAmountDegradaParaValorDeFace(t *testing.T) {
	ledger := new(MockLedgerService)
	oracle := services.NewPriceOracleService(ledger)

	inv := fundingInvoice()
	ledger.On("GetSettlementAmount", "7").Return(int64(0), errors.New("rpc indisponível"))

	assert.Equal(t, inv.Amount, oracle.SettlementAmount(inv))
}
