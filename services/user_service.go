package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go/strkey"

	"github.com/ferreirogomes/notinha/logger"
	"github.com/ferreirogomes/notinha/models"
)

// UserService gerencia participantes da plataforma e a aprovação de KYC.
type UserService struct {
	DB     Store
	Ledger LedgerService
}

// NewUserService cria o serviço de usuários.
func NewUserService(db Store, ledger LedgerService) *UserService {
	return &UserService{DB: db, Ledger: ledger}
}

// CreateUserParams são os dados de cadastro de um usuário.
type CreateUserParams struct {
	Name           string
	Email          string
	Role           models.Role
	StellarAddress string
}

// CreateUser cadastra um participante. A carteira Stellar é opcional no
// cadastro mas obrigatória antes de qualquer operação no ledger.
func (s *UserService) CreateUser(p CreateUserParams) (models.User, error) {
	if strings.TrimSpace(p.Name) == "" {
		return models.User{}, errValidation("nome é obrigatório")
	}
	if strings.TrimSpace(p.Email) == "" {
		return models.User{}, errValidation("email é obrigatório")
	}
	switch p.Role {
	case models.RoleSupplier, models.RoleBuyer, models.RoleInvestor, models.RoleAdmin:
	default:
		return models.User{}, errValidation("papel inválido: %s", p.Role)
	}
	if p.StellarAddress != "" && !strkey.IsValidEd25519PublicKey(p.StellarAddress) {
		return models.User{}, errValidation("endereço Stellar inválido: %s", p.StellarAddress)
	}
	if p.StellarAddress != "" {
		if _, exists, err := s.DB.GetUserByStellarAddress(p.StellarAddress); err != nil {
			return models.User{}, errInternal(err)
		} else if exists {
			return models.User{}, errValidation("carteira %s já vinculada a outro usuário", p.StellarAddress)
		}
	}

	user := models.User{
		ID:             uuid.New().String(),
		Name:           p.Name,
		Email:          p.Email,
		Role:           p.Role,
		StellarAddress: p.StellarAddress,
		KYCApproved:    false,
		CreatedAt:      time.Now(),
	}
	if err := s.DB.SaveUser(user); err != nil {
		return models.User{}, errInternal(err)
	}
	logger.Log.Infof("Usuário %s cadastrado como %s", user.ID, user.Role)
	return user, nil
}

// GetUser busca um usuário pelo id.
func (s *UserService) GetUser(id string) (models.User, error) {
	user, found, err := s.DB.GetUser(id)
	if err != nil {
		return models.User{}, errInternal(err)
	}
	if !found {
		return models.User{}, errNotFound("usuário %s não encontrado", id)
	}
	return user, nil
}

// SetKYC aprova ou revoga o KYC de um usuário. Restrito a administradores.
// A sincronização com o contrato é melhor esforço: o banco é a fonte da
// verdade e a falha on-chain apenas é registrada.
func (s *UserService) SetKYC(session models.Session, userID string, approved bool) (models.User, error) {
	if session.Role != models.RoleAdmin {
		return models.User{}, errForbidden("somente administradores aprovam KYC")
	}

	user, found, err := s.DB.GetUser(userID)
	if err != nil {
		return models.User{}, errInternal(err)
	}
	if !found {
		return models.User{}, errNotFound("usuário %s não encontrado", userID)
	}

	if err := s.DB.SetUserKYC(userID, approved); err != nil {
		return models.User{}, errInternal(err)
	}

	if user.StellarAddress != "" {
		txHash, err := s.Ledger.SyncInvestorKYC(user.StellarAddress, approved)
		if err != nil {
			logger.Log.Warnf("Falha ao sincronizar KYC de %s no ledger: %v", userID, err)
		} else {
			logger.Log.Infof("KYC de %s sincronizado no ledger (tx: %s)", userID, txHash)
		}
	}

	user.KYCApproved = approved
	logger.Log.Infof("KYC de %s definido como %v por %s", userID, approved, session.UserID)
	return user, nil
}
