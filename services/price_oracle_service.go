package services

import (
	"github.com/ferreirogomes/notinha/logger"
	"github.com/ferreirogomes/notinha/models"
)

// PriceOracleService lê preço corrente e valor de liquidação do ledger,
// degradando para o valor de face quando o contrato não responde ou o
// leilão ainda não começou on-chain: o restante do sistema segue
// funcionando em vez de falhar a requisição.
type PriceOracleService struct {
	Ledger LedgerService
}

// NewPriceOracleService cria o oráculo de preços.
func NewPriceOracleService(ledger LedgerService) *PriceOracleService {
	return &PriceOracleService{Ledger: ledger}
}

// CurrentPrice retorna o preço corrente do leilão holandês da fatura.
func (s *PriceOracleService) CurrentPrice(inv models.Invoice) int64 {
	if inv.LedgerInvoiceID == "" || inv.AuctionStart == nil {
		return inv.Amount
	}
	price, err := s.Ledger.GetCurrentPrice(inv.LedgerInvoiceID)
	if err != nil {
		logger.Log.Warnf("Falha ao ler preço do leilão de %s no ledger, usando valor de face: %v", inv.BusinessID, err)
		return inv.Amount
	}
	return price
}

// SettlementAmount retorna o valor devido pelo comprador na liquidação.
func (s *PriceOracleService) SettlementAmount(inv models.Invoice) int64 {
	if inv.LedgerInvoiceID == "" {
		return inv.Amount
	}
	amount, err := s.Ledger.GetSettlementAmount(inv.LedgerInvoiceID)
	if err != nil {
		logger.Log.Warnf("Falha ao ler valor de liquidação de %s no ledger, usando valor de face: %v", inv.BusinessID, err)
		return inv.Amount
	}
	return amount
}

// Discount calcula o desconto corrente da fatura em pontos-base.
func (s *PriceOracleService) Discount(inv models.Invoice) int64 {
	return models.DiscountBps(inv.Amount, s.CurrentPrice(inv))
}
