package storage

import (
	"fmt"
	"time"
)

// RegisterLedgerTx registra o hash de uma transação do ledger como chave
// de idempotência de um confirm. A reapresentação do mesmo hash retorna
// ErrDuplicate antes de qualquer mutação do chamador.
func (d *DB) RegisterLedgerTx(txHash, kind, referenceID string) error {
	_, err := d.Exec(`INSERT INTO ledger_transactions (tx_hash, kind, reference_id, created_at)
	                  VALUES ($1, $2, $3, $4)`, txHash, kind, referenceID, time.Now())
	if err != nil {
		return fmt.Errorf("falha ao registrar transação do ledger: %w", wrapDuplicate(err))
	}
	return nil
}

// LedgerTxMatches responde se o hash registrado pertence à operação
// indicada. Os confirms usam isso para distinguir o retry de um confirm
// já aplicado de um hash reaproveitado em outra operação.
func (d *DB) LedgerTxMatches(txHash, kind, referenceID string) (bool, error) {
	var matches bool
	err := d.Get(&matches, `SELECT EXISTS (SELECT 1 FROM ledger_transactions
	                        WHERE tx_hash = $1 AND kind = $2 AND reference_id = $3)`,
		txHash, kind, referenceID)
	if err != nil {
		return false, fmt.Errorf("falha ao consultar transação do ledger: %w", err)
	}
	return matches, nil
}
