package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ferreirogomes/notinha/models"
)

// NextInvoiceBusinessID gera o próximo identificador de negócio (INV-NNNN).
func (d *DB) NextInvoiceBusinessID() (string, error) {
	var n int64
	if err := d.Get(&n, `SELECT nextval('invoice_business_seq')`); err != nil {
		return "", fmt.Errorf("falha ao gerar ID de fatura: %w", err)
	}
	return fmt.Sprintf("INV-%04d", n), nil
}

// SaveInvoice insere uma nova fatura.
func (d *DB) SaveInvoice(inv models.Invoice) error {
	query := `INSERT INTO invoices (
	              id, business_id, ledger_invoice_id, supplier_id, buyer_id,
	              amount, currency, description, purchase_order, document_hash,
	              status, due_date, created_at, token_symbol,
	              total_tokens, tokens_sold, tokens_remaining,
	              start_price, min_price, price_drop_rate,
	              repayment_received, settlement_tx_hash, settlement_remainder)
	          VALUES (
	              :id, :business_id, :ledger_invoice_id, :supplier_id, :buyer_id,
	              :amount, :currency, :description, :purchase_order, :document_hash,
	              :status, :due_date, :created_at, :token_symbol,
	              :total_tokens, :tokens_sold, :tokens_remaining,
	              :start_price, :min_price, :price_drop_rate,
	              :repayment_received, :settlement_tx_hash, :settlement_remainder)`
	if _, err := d.NamedExec(query, inv); err != nil {
		return fmt.Errorf("falha ao salvar fatura: %w", wrapDuplicate(err))
	}
	return nil
}

// GetInvoice busca uma fatura pelo ID interno.
func (d *DB) GetInvoice(id string) (models.Invoice, bool, error) {
	var inv models.Invoice
	err := d.Get(&inv, `SELECT * FROM invoices WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Invoice{}, false, nil
	}
	if err != nil {
		return models.Invoice{}, false, fmt.Errorf("falha ao buscar fatura: %w", err)
	}
	return inv, true, nil
}

// GetInvoiceByAnyID resolve uma fatura pelo ID interno, de negócio ou do ledger.
func (d *DB) GetInvoiceByAnyID(ref string) (models.Invoice, bool, error) {
	var inv models.Invoice
	err := d.Get(&inv, `SELECT * FROM invoices
	                    WHERE id = $1 OR business_id = $1
	                       OR (ledger_invoice_id <> '' AND ledger_invoice_id = $1)`, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Invoice{}, false, nil
	}
	if err != nil {
		return models.Invoice{}, false, fmt.Errorf("falha ao buscar fatura: %w", err)
	}
	return inv, true, nil
}

// InvoiceFilter restringe a listagem de faturas.
type InvoiceFilter struct {
	Status     models.InvoiceStatus
	SupplierID string
	BuyerID    string
}

// ListInvoices lista faturas aplicando os filtros informados.
func (d *DB) ListInvoices(f InvoiceFilter) ([]models.Invoice, error) {
	query := `SELECT * FROM invoices WHERE 1=1`
	args := []interface{}{}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.SupplierID != "" {
		args = append(args, f.SupplierID)
		query += fmt.Sprintf(" AND supplier_id = $%d", len(args))
	}
	if f.BuyerID != "" {
		args = append(args, f.BuyerID)
		query += fmt.Sprintf(" AND buyer_id = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`

	invoices := []models.Invoice{}
	if err := d.Select(&invoices, query, args...); err != nil {
		return nil, fmt.Errorf("falha ao listar faturas: %w", err)
	}
	return invoices, nil
}

// ConfirmMint vincula o ID do ledger e move PENDING -> DRAFT.
// Retorna false se a fatura não estava mais em PENDING.
func (d *DB) ConfirmMint(id, ledgerInvoiceID string) (bool, error) {
	res, err := d.Exec(`UPDATE invoices
	                    SET status = $1, ledger_invoice_id = $2
	                    WHERE id = $3 AND status = $4`,
		models.StatusDraft, ledgerInvoiceID, id, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("falha ao confirmar mint: %w", wrapDuplicate(err))
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ApproveInvoice move DRAFT -> VERIFIED e emite os tokens (1:1 com o valor).
func (d *DB) ApproveInvoice(id, tokenSymbol string, at time.Time) (bool, error) {
	res, err := d.Exec(`UPDATE invoices
	                    SET status = $1, verified_at = $2, token_symbol = $3,
	                        total_tokens = amount, tokens_sold = 0, tokens_remaining = amount
	                    WHERE id = $4 AND status = $5`,
		models.StatusVerified, at, tokenSymbol, id, models.StatusDraft)
	if err != nil {
		return false, fmt.Errorf("falha ao aprovar fatura: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// StartAuction move VERIFIED -> FUNDING e grava a janela do leilão.
func (d *DB) StartAuction(id string, start, end time.Time, startPrice, minPrice, dropRate int64) (bool, error) {
	res, err := d.Exec(`UPDATE invoices
	                    SET status = $1, auction_start = $2, auction_end = $3,
	                        start_price = $4, min_price = $5, price_drop_rate = $6
	                    WHERE id = $7 AND status = $8`,
		models.StatusFunding, start, end, startPrice, minPrice, dropRate, id, models.StatusVerified)
	if err != nil {
		return false, fmt.Errorf("falha ao iniciar leilão: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AllocateTokens debita o estoque primário de forma condicional: só
// decrementa se ainda houver tokens suficientes e a fatura aceitar
// investimento. É a única atualização de estoque, nunca leia-então-escreva.
// Retorna a fatura atualizada; ok=false quando a condição não valeu.
func (d *DB) AllocateTokens(id string, tokenAmount int64) (models.Invoice, bool, error) {
	var inv models.Invoice
	err := d.Get(&inv, `UPDATE invoices
	                    SET tokens_sold = tokens_sold + $1,
	                        tokens_remaining = tokens_remaining - $1,
	                        status = CASE WHEN tokens_remaining - $1 = 0 THEN $2 ELSE status END
	                    WHERE id = $3 AND tokens_remaining >= $1 AND status IN ($4, $5)
	                    RETURNING *`,
		tokenAmount, models.StatusFunded, id, models.StatusVerified, models.StatusFunding)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Invoice{}, false, nil
	}
	if err != nil {
		return models.Invoice{}, false, fmt.Errorf("falha ao alocar tokens: %w", err)
	}
	return inv, true, nil
}

// MarkSettled move a fatura para SETTLED de forma condicional e registra o
// pagamento recebido. Zero linhas afetadas significa que a fatura já não
// era liquidável (inclusive por uma liquidação anterior).
func (d *DB) MarkSettled(id string, amount int64, txHash string, at time.Time) (bool, error) {
	res, err := d.Exec(`UPDATE invoices
	                    SET status = $1, repayment_received = $2,
	                        settlement_tx_hash = $3, settled_at = $4
	                    WHERE id = $5 AND status IN ($6, $7, $8, $9)`,
		models.StatusSettled, amount, txHash, at, id,
		models.StatusFunded, models.StatusVerified, models.StatusFunding, models.StatusOverdue)
	if err != nil {
		return false, fmt.Errorf("falha ao marcar fatura como liquidada: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetSettlementRemainder grava o resto de arredondamento da distribuição.
func (d *DB) SetSettlementRemainder(id string, remainder int64) error {
	if _, err := d.Exec(`UPDATE invoices SET settlement_remainder = $1 WHERE id = $2`, remainder, id); err != nil {
		return fmt.Errorf("falha ao gravar resto da liquidação: %w", err)
	}
	return nil
}

// TransitionInvoiceStatus move a fatura para o status destino somente se o
// status atual estiver entre os de origem. Retorna false se a transição
// não era mais válida.
func (d *DB) TransitionInvoiceStatus(id string, from []models.InvoiceStatus, to models.InvoiceStatus) (bool, error) {
	query, args, err := sqlx.In(`UPDATE invoices SET status = ? WHERE id = ? AND status IN (?)`, to, id, from)
	if err != nil {
		return false, fmt.Errorf("falha ao montar transição de status: %w", err)
	}
	res, err := d.Exec(d.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("falha ao transicionar status: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
