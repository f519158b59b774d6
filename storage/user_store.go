package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ferreirogomes/notinha/models"
)

// SaveUser insere um usuário.
func (d *DB) SaveUser(user models.User) error {
	query := `INSERT INTO users (id, name, email, role, stellar_address, kyc_approved, created_at)
	          VALUES (:id, :name, :email, :role, :stellar_address, :kyc_approved, :created_at)`
	if _, err := d.NamedExec(query, user); err != nil {
		return fmt.Errorf("falha ao salvar usuário: %w", wrapDuplicate(err))
	}
	return nil
}

// GetUser busca um usuário pelo ID.
func (d *DB) GetUser(id string) (models.User, bool, error) {
	var user models.User
	err := d.Get(&user, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, fmt.Errorf("falha ao buscar usuário: %w", err)
	}
	return user, true, nil
}

// GetUserByStellarAddress busca um usuário pela chave pública da carteira.
func (d *DB) GetUserByStellarAddress(address string) (models.User, bool, error) {
	var user models.User
	err := d.Get(&user, `SELECT * FROM users WHERE stellar_address = $1`, address)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, fmt.Errorf("falha ao buscar usuário por carteira: %w", err)
	}
	return user, true, nil
}

// SetUserKYC atualiza o status de KYC de um usuário.
func (d *DB) SetUserKYC(id string, approved bool) error {
	res, err := d.Exec(`UPDATE users SET kyc_approved = $1 WHERE id = $2`, approved, id)
	if err != nil {
		return fmt.Errorf("falha ao atualizar KYC: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
