package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/services"
)

// UserHandler lida com requisições HTTP relacionadas a usuários.
type UserHandler struct {
	Service *services.UserService
}

// NewUserHandler cria uma nova instância do handler de usuários.
func NewUserHandler(s *services.UserService) *UserHandler {
	return &UserHandler{Service: s}
}

// CreateUser cadastra um novo participante.
// POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string `json:"name"`
		Email          string `json:"email"`
		Role           string `json:"role"`
		StellarAddress string `json:"stellar_address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.Service.CreateUser(services.CreateUserParams{
		Name:           req.Name,
		Email:          req.Email,
		Role:           models.Role(req.Role),
		StellarAddress: req.StellarAddress,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUserByID obtém um usuário pelo ID.
// GET /users/{id}
func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.GetUser(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// SetKYC aprova ou revoga o KYC de um usuário (admin).
// POST /users/{id}/kyc
func (h *UserHandler) SetKYC(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Approved bool `json:"approved"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.Service.SetKYC(session, chi.URLParam(r, "id"), req.Approved)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
