package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ferreirogomes/notinha/models"
)

// SaveDispute insere uma disputa.
func (d *DB) SaveDispute(dispute models.Dispute) error {
	query := `INSERT INTO disputes (id, invoice_id, raised_by, reason, resolution, raised_at)
	          VALUES (:id, :invoice_id, :raised_by, :reason, :resolution, :raised_at)`
	if _, err := d.NamedExec(query, dispute); err != nil {
		return fmt.Errorf("falha ao salvar disputa: %w", err)
	}
	return nil
}

// GetOpenDispute busca a disputa pendente de uma fatura.
func (d *DB) GetOpenDispute(invoiceID string) (models.Dispute, bool, error) {
	var dispute models.Dispute
	err := d.Get(&dispute, `SELECT * FROM disputes WHERE invoice_id = $1 AND resolution = $2`,
		invoiceID, models.DisputePending)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Dispute{}, false, nil
	}
	if err != nil {
		return models.Dispute{}, false, fmt.Errorf("falha ao buscar disputa: %w", err)
	}
	return dispute, true, nil
}

// ResolveDispute grava o desfecho de uma disputa pendente.
func (d *DB) ResolveDispute(id string, resolution models.DisputeResolution, at time.Time) (bool, error) {
	res, err := d.Exec(`UPDATE disputes SET resolution = $1, resolved_at = $2
	                    WHERE id = $3 AND resolution = $4`,
		resolution, at, id, models.DisputePending)
	if err != nil {
		return false, fmt.Errorf("falha ao resolver disputa: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
