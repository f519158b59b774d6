package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ferreirogomes/notinha/models"
)

// NextOrderBusinessID gera o próximo identificador de negócio (ORD-NNNN).
func (d *DB) NextOrderBusinessID() (string, error) {
	var n int64
	if err := d.Get(&n, `SELECT nextval('order_business_seq')`); err != nil {
		return "", fmt.Errorf("falha ao gerar ID de ordem: %w", err)
	}
	return fmt.Sprintf("ORD-%04d", n), nil
}

// SaveOrder insere uma ordem de venda.
func (d *DB) SaveOrder(order models.SellOrder) error {
	query := `INSERT INTO sell_orders (id, business_id, invoice_id, seller_id, token_amount,
	                                   price_per_token, tokens_remaining, status, created_at)
	          VALUES (:id, :business_id, :invoice_id, :seller_id, :token_amount,
	                  :price_per_token, :tokens_remaining, :status, :created_at)`
	if _, err := d.NamedExec(query, order); err != nil {
		return fmt.Errorf("falha ao salvar ordem: %w", wrapDuplicate(err))
	}
	return nil
}

// GetOrder busca uma ordem pelo ID interno ou de negócio.
func (d *DB) GetOrder(ref string) (models.SellOrder, bool, error) {
	var order models.SellOrder
	err := d.Get(&order, `SELECT * FROM sell_orders WHERE id = $1 OR business_id = $1`, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SellOrder{}, false, nil
	}
	if err != nil {
		return models.SellOrder{}, false, fmt.Errorf("falha ao buscar ordem: %w", err)
	}
	return order, true, nil
}

// OrderFilter restringe a listagem de ordens.
type OrderFilter struct {
	InvoiceID string
	SellerID  string
	Status    models.OrderStatus
}

// ListOrders lista ordens aplicando os filtros informados.
func (d *DB) ListOrders(f OrderFilter) ([]models.SellOrder, error) {
	query := `SELECT * FROM sell_orders WHERE 1=1`
	args := []interface{}{}
	if f.InvoiceID != "" {
		args = append(args, f.InvoiceID)
		query += fmt.Sprintf(" AND invoice_id = $%d", len(args))
	}
	if f.SellerID != "" {
		args = append(args, f.SellerID)
		query += fmt.Sprintf(" AND seller_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`

	orders := []models.SellOrder{}
	if err := d.Select(&orders, query, args...); err != nil {
		return nil, fmt.Errorf("falha ao listar ordens: %w", err)
	}
	return orders, nil
}

// FillOrderTokens debita o saldo restante da ordem de forma condicional e
// deriva o novo status na mesma instrução: dois preenchimentos
// concorrentes nunca debitam além do listado. Retorna a ordem atualizada;
// ok=false quando a condição não valeu.
func (d *DB) FillOrderTokens(orderID string, tokenAmount int64) (models.SellOrder, bool, error) {
	var order models.SellOrder
	err := d.Get(&order, `UPDATE sell_orders
	                      SET tokens_remaining = tokens_remaining - $1,
	                          status = CASE WHEN tokens_remaining - $1 = 0 THEN $2 ELSE $3 END
	                      WHERE id = $4 AND tokens_remaining >= $1 AND status IN ($5, $6)
	                      RETURNING *`,
		tokenAmount, models.OrderFilled, models.OrderPartiallyFilled,
		orderID, models.OrderOpen, models.OrderPartiallyFilled)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SellOrder{}, false, nil
	}
	if err != nil {
		return models.SellOrder{}, false, fmt.Errorf("falha ao preencher ordem: %w", err)
	}
	return order, true, nil
}

// CancelOrder cancela uma ordem do vendedor, exceto se já preenchida.
func (d *DB) CancelOrder(orderID, sellerID string) (bool, error) {
	res, err := d.Exec(`UPDATE sell_orders SET status = $1
	                    WHERE id = $2 AND seller_id = $3 AND status IN ($4, $5)`,
		models.OrderCancelled, orderID, sellerID, models.OrderOpen, models.OrderPartiallyFilled)
	if err != nil {
		return false, fmt.Errorf("falha ao cancelar ordem: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SaveOrderFill insere o registro imutável de um preenchimento.
func (d *DB) SaveOrderFill(fill models.OrderFill) error {
	query := `INSERT INTO order_fills (id, order_id, invoice_id, buyer_id,
	                                   token_amount, payment_amount, tx_hash, filled_at)
	          VALUES (:id, :order_id, :invoice_id, :buyer_id,
	                  :token_amount, :payment_amount, :tx_hash, :filled_at)`
	if _, err := d.NamedExec(query, fill); err != nil {
		return fmt.Errorf("falha ao salvar preenchimento: %w", err)
	}
	return nil
}

// ListFillsByOrder lista os preenchimentos de uma ordem.
func (d *DB) ListFillsByOrder(orderID string) ([]models.OrderFill, error) {
	fills := []models.OrderFill{}
	err := d.Select(&fills, `SELECT * FROM order_fills WHERE order_id = $1 ORDER BY filled_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar preenchimentos: %w", err)
	}
	return fills, nil
}
