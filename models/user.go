package models

import "time"

// Role define o papel de um usuário na plataforma.
type Role string

const (
	RoleSupplier Role = "SUPPLIER"
	RoleBuyer    Role = "BUYER"
	RoleInvestor Role = "INVESTOR"
	RoleAdmin    Role = "ADMIN"
)

// User representa um participante da plataforma.
type User struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email" db:"email"`
	Role           Role      `json:"role" db:"role"`
	StellarAddress string    `json:"stellar_address" db:"stellar_address"` // Chave pública da carteira do usuário
	KYCApproved    bool      `json:"kyc_approved" db:"kyc_approved"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Session é a identidade do chamador resolvida a partir do token JWT,
// carregada no contexto da requisição. Substitui qualquer estado global
// de "papel atual": cada requisição carrega a sua própria.
type Session struct {
	UserID         string
	Role           Role
	StellarAddress string
	KYCApproved    bool
}
