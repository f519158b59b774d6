package storage

import (
	"fmt"

	"github.com/ferreirogomes/notinha/models"
)

// SaveDistribution insere o registro imutável da parcela de um investidor
// na liquidação. Uma segunda tentativa para o mesmo par (fatura,
// investidor) é rejeitada com ErrDuplicate.
func (d *DB) SaveDistribution(dist models.InvestorDistribution) error {
	query := `INSERT INTO investor_distributions (id, invoice_id, investor_id, token_amount,
	                                              invested_amount, distribution_amount, profit, created_at)
	          VALUES (:id, :invoice_id, :investor_id, :token_amount,
	                  :invested_amount, :distribution_amount, :profit, :created_at)`
	if _, err := d.NamedExec(query, dist); err != nil {
		return fmt.Errorf("falha ao salvar distribuição: %w", wrapDuplicate(err))
	}
	return nil
}

// ListDistributionsByInvoice lista as distribuições de uma fatura.
func (d *DB) ListDistributionsByInvoice(invoiceID string) ([]models.InvestorDistribution, error) {
	dists := []models.InvestorDistribution{}
	err := d.Select(&dists,
		`SELECT * FROM investor_distributions WHERE invoice_id = $1 ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar distribuições: %w", err)
	}
	return dists, nil
}

// ListDistributionsByInvestor lista as distribuições recebidas por um investidor.
func (d *DB) ListDistributionsByInvestor(investorID string) ([]models.InvestorDistribution, error) {
	dists := []models.InvestorDistribution{}
	err := d.Select(&dists,
		`SELECT * FROM investor_distributions WHERE investor_id = $1 ORDER BY created_at`, investorID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar distribuições do investidor: %w", err)
	}
	return dists, nil
}
