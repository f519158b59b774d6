package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config reúne toda a configuração do processo, carregada do ambiente.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Ledger Stellar
	HorizonURL        string `envconfig:"HORIZON_URL" default:"https://horizon-testnet.stellar.org"`
	SorobanRPCURL     string `envconfig:"SOROBAN_RPC_URL" default:"https://soroban-testnet.stellar.org"`
	NetworkPassphrase string `envconfig:"NETWORK_PASSPHRASE" default:"Test SDF Network ; September 2015"`
	InvoiceContractID string `envconfig:"INVOICE_CONTRACT_ID" required:"true"`
	FeeSourceSecret   string `envconfig:"FEE_SOURCE_SECRET" required:"true"`

	// Sessão
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Regras de negócio
	InsuranceCutBps int64 `envconfig:"INSURANCE_CUT_BPS" default:"200"`
	GracePeriodDays int64 `envconfig:"GRACE_PERIOD_DAYS" default:"30"`
	PriceDropRate   int64 `envconfig:"PRICE_DROP_RATE_BPS" default:"50"`
}

// Load carrega .env (se presente) e o ambiente.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("falha ao carregar configuração: %w", err)
	}
	return cfg, nil
}
