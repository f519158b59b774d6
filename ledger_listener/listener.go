package ledger_listener

import (
	"context"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"

	"github.com/ferreirogomes/notinha/logger"
	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/services"
	"github.com/ferreirogomes/notinha/storage"
)

// LedgerListener mantém o banco sincronizado com o ledger: escuta as
// transações da conta de distribuição via Horizon e roda a varredura
// periódica de status (OVERDUE/DEFAULTED) das faturas vencidas.
type LedgerListener struct {
	Horizon        horizonclient.ClientInterface
	InvoiceService *services.InvoiceService
	AccountID      string // Conta de distribuição do contrato de faturas
	SweepInterval  time.Duration
}

// NewLedgerListener cria uma nova instância do listener.
func NewLedgerListener(horizon horizonclient.ClientInterface, invoiceService *services.InvoiceService, accountID string) *LedgerListener {
	return &LedgerListener{
		Horizon:        horizon,
		InvoiceService: invoiceService,
		AccountID:      accountID,
		SweepInterval:  time.Hour,
	}
}

// StartListening inicia o stream de transações e a varredura de status.
// Bloqueia até o contexto ser cancelado.
func (l *LedgerListener) StartListening(ctx context.Context) {
	logger.Log.Info("Iniciando listener do ledger...")

	go l.runStatusSweep(ctx)
	l.streamTransactions(ctx)
}

// streamTransactions consome o stream da conta de distribuição, retomando
// com espera entre tentativas quando o stream cai.
func (l *LedgerListener) streamTransactions(ctx context.Context) {
	request := horizonclient.TransactionRequest{
		ForAccount: l.AccountID,
		Cursor:     "now",
	}

	for {
		err := l.Horizon.StreamTransactions(ctx, request, func(tx hProtocol.Transaction) {
			if !tx.Successful {
				logger.Log.Debugf("Transação %s falhou no ledger, ignorando", tx.Hash)
				return
			}
			logger.Log.Infof("Transação confirmada no ledger: %s (ledger %d)", tx.Hash, tx.Ledger)
		})
		if ctx.Err() != nil {
			logger.Log.Info("Listener do ledger encerrado")
			return
		}
		if err != nil {
			logger.Log.Warnf("Stream de transações caiu, retomando em 5s: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// runStatusSweep roda a varredura de faturas vencidas num ticker. A
// derivação em si fica no serviço de faturas; aqui só se percorre o que
// está vivo.
func (l *LedgerListener) runStatusSweep(ctx context.Context) {
	ticker := time.NewTicker(l.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweepOnce()
		}
	}
}

func (l *LedgerListener) sweepOnce() {
	live := []models.InvoiceStatus{
		models.StatusVerified,
		models.StatusFunding,
		models.StatusFunded,
		models.StatusOverdue,
	}
	var checked int
	for _, status := range live {
		invoices, err := l.InvoiceService.ListInvoices(storage.InvoiceFilter{Status: status})
		if err != nil {
			logger.Log.Errorf("Varredura de status: falha ao listar faturas %s: %v", status, err)
			continue
		}
		for _, inv := range invoices {
			if _, err := l.InvoiceService.CheckStatus(inv.ID); err != nil {
				logger.Log.Errorf("Varredura de status: falha ao checar fatura %s: %v", inv.BusinessID, err)
				continue
			}
			checked++
		}
	}
	logger.Log.Debugf("Varredura de status concluída: %d faturas checadas", checked)
}
