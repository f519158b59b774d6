package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ferreirogomes/notinha/models"
)

// GetInsurancePool retorna o estado do fundo de seguro.
func (d *DB) GetInsurancePool() (models.InsurancePool, error) {
	var pool models.InsurancePool
	if err := d.Get(&pool, `SELECT balance, total_claims FROM insurance_pool WHERE id = 1`); err != nil {
		return models.InsurancePool{}, fmt.Errorf("falha ao buscar fundo de seguro: %w", err)
	}
	return pool, nil
}

// CreditInsurancePool credita o fundo (corte de seguro dos investimentos).
func (d *DB) CreditInsurancePool(amount int64) error {
	if _, err := d.Exec(`UPDATE insurance_pool SET balance = balance + $1 WHERE id = 1`, amount); err != nil {
		return fmt.Errorf("falha ao creditar fundo de seguro: %w", err)
	}
	return nil
}

// DebitInsurancePool debita o fundo de forma condicional. Retorna false se
// o saldo era insuficiente no momento do débito.
func (d *DB) DebitInsurancePool(amount int64) (bool, error) {
	res, err := d.Exec(`UPDATE insurance_pool
	                    SET balance = balance - $1, total_claims = total_claims + 1
	                    WHERE id = 1 AND balance >= $1`, amount)
	if err != nil {
		return false, fmt.Errorf("falha ao debitar fundo de seguro: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SaveInsuranceClaim insere uma reivindicação. A restrição de unicidade
// por (fatura, investidor) é a guarda contra reivindicação dupla.
func (d *DB) SaveInsuranceClaim(claim models.InsuranceClaim) error {
	query := `INSERT INTO insurance_claims (id, invoice_id, investor_id, amount, tx_hash, claimed_at)
	          VALUES (:id, :invoice_id, :investor_id, :amount, :tx_hash, :claimed_at)`
	if _, err := d.NamedExec(query, claim); err != nil {
		return fmt.Errorf("falha ao salvar reivindicação: %w", wrapDuplicate(err))
	}
	return nil
}

// GetInsuranceClaim busca a reivindicação de um investidor para uma fatura.
func (d *DB) GetInsuranceClaim(invoiceID, investorID string) (models.InsuranceClaim, bool, error) {
	var claim models.InsuranceClaim
	err := d.Get(&claim, `SELECT * FROM insurance_claims WHERE invoice_id = $1 AND investor_id = $2`,
		invoiceID, investorID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.InsuranceClaim{}, false, nil
	}
	if err != nil {
		return models.InsuranceClaim{}, false, fmt.Errorf("falha ao buscar reivindicação: %w", err)
	}
	return claim, true, nil
}

// ListClaimsByInvestor lista as reivindicações de um investidor.
func (d *DB) ListClaimsByInvestor(investorID string) ([]models.InsuranceClaim, error) {
	claims := []models.InsuranceClaim{}
	err := d.Select(&claims,
		`SELECT * FROM insurance_claims WHERE investor_id = $1 ORDER BY claimed_at DESC`, investorID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar reivindicações: %w", err)
	}
	return claims, nil
}
