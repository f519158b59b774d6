package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/ferreirogomes/notinha/logger"
)

// ErrDuplicate indica violação de unicidade (reapresentação de uma
// transação já confirmada ou reivindicação repetida).
var ErrDuplicate = errors.New("registro duplicado")

// DB representa a conexão com o banco de dados PostgreSQL.
type DB struct {
	*sqlx.DB
}

// NewDB conecta-se ao PostgreSQL e executa as migrações.
func NewDB(dataSourceName string) (*DB, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao banco de dados: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("falha ao pingar o banco de dados: %w", err)
	}
	logger.Log.Info("Conexão com PostgreSQL estabelecida com sucesso.")

	if err := runMigrations(db.DB); err != nil {
		return nil, fmt.Errorf("falha ao executar migrações: %w", err)
	}

	return &DB{db}, nil
}

// runMigrations executa as migrações usando sql-migrate.
func runMigrations(db *sql.DB) error {
	migrations := &migrate.FileMigrationSource{
		Dir: "./storage/migrations",
	}

	n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return fmt.Errorf("erro ao aplicar migrações: %w", err)
	}
	if n > 0 {
		logger.Log.Infof("Aplicadas %d migrações ao banco de dados.", n)
	} else {
		logger.Log.Info("Nenhuma migração nova para aplicar.")
	}
	return nil
}

// wrapDuplicate converte violações de unicidade do Postgres em ErrDuplicate.
func wrapDuplicate(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}
