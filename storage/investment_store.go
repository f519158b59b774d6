package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ferreirogomes/notinha/models"
)

// UpsertInvestment registra uma aquisição de tokens. Aquisições repetidas
// do mesmo investidor na mesma fatura são fundidas somando quantidade e
// custo (nunca substituídas).
func (d *DB) UpsertInvestment(inv models.Investment) error {
	query := `INSERT INTO investments (id, invoice_id, investor_id, token_amount,
	                                   invested_amount, source, completed, acquired_at)
	          VALUES (:id, :invoice_id, :investor_id, :token_amount,
	                  :invested_amount, :source, :completed, :acquired_at)
	          ON CONFLICT (invoice_id, investor_id) DO UPDATE
	          SET token_amount    = investments.token_amount + EXCLUDED.token_amount,
	              invested_amount = investments.invested_amount + EXCLUDED.invested_amount`
	if _, err := d.NamedExec(query, inv); err != nil {
		return fmt.Errorf("falha ao registrar investimento: %w", err)
	}
	return nil
}

// GetInvestment busca a posição de um investidor em uma fatura.
func (d *DB) GetInvestment(invoiceID, investorID string) (models.Investment, bool, error) {
	var inv models.Investment
	err := d.Get(&inv, `SELECT * FROM investments WHERE invoice_id = $1 AND investor_id = $2`,
		invoiceID, investorID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Investment{}, false, nil
	}
	if err != nil {
		return models.Investment{}, false, fmt.Errorf("falha ao buscar investimento: %w", err)
	}
	return inv, true, nil
}

// ListInvestmentsByInvoice lista as posições de uma fatura.
func (d *DB) ListInvestmentsByInvoice(invoiceID string) ([]models.Investment, error) {
	investments := []models.Investment{}
	err := d.Select(&investments,
		`SELECT * FROM investments WHERE invoice_id = $1 ORDER BY acquired_at`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar investimentos da fatura: %w", err)
	}
	return investments, nil
}

// ListInvestmentsByInvestor lista as posições de um investidor.
func (d *DB) ListInvestmentsByInvestor(investorID string) ([]models.Investment, error) {
	investments := []models.Investment{}
	err := d.Select(&investments,
		`SELECT * FROM investments WHERE investor_id = $1 ORDER BY acquired_at`, investorID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar investimentos do investidor: %w", err)
	}
	return investments, nil
}

// DecrementInvestmentTokens debita tokens da posição de um vendedor de
// forma condicional (venda no mercado secundário). Retorna false se a
// posição não tinha saldo suficiente.
func (d *DB) DecrementInvestmentTokens(invoiceID, investorID string, tokenAmount int64) (bool, error) {
	res, err := d.Exec(`UPDATE investments
	                    SET token_amount = token_amount - $1
	                    WHERE invoice_id = $2 AND investor_id = $3 AND token_amount >= $1`,
		tokenAmount, invoiceID, investorID)
	if err != nil {
		return false, fmt.Errorf("falha ao debitar posição do vendedor: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClearInvestments zera as posições de uma fatura (clawback de disputa).
func (d *DB) ClearInvestments(invoiceID string) error {
	if _, err := d.Exec(`UPDATE investments SET token_amount = 0 WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("falha ao anular posições da fatura: %w", err)
	}
	return nil
}
