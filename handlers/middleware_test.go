package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/ferreirogomes/notinha/handlers"
	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/services"
	"github.com/ferreirogomes/notinha/storage"
)

// stubStore satisfaz services.Store via interface embutida; só os métodos
// usados pelos testes são implementados.
type stubStore struct {
	services.Store
	users    map[string]models.User
	invoices map[string]models.Invoice
}

func (s *stubStore) GetUser(id string) (models.User, bool, error) {
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *stubStore) GetInvoiceByAnyID(ref string) (models.Invoice, bool, error) {
	inv, ok := s.invoices[ref]
	return inv, ok, nil
}

func (s *stubStore) ListInvestmentsByInvoice(string) ([]models.Investment, error) {
	return nil, nil
}

func (s *stubStore) ListOrders(f storage.OrderFilter) ([]models.SellOrder, error) {
	return nil, nil
}

func (s *stubStore) ListDistributionsByInvoice(string) ([]models.InvestorDistribution, error) {
	return nil, nil
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

func sessionEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := handlers.SessionFrom(r)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(session.UserID))
	})
}

func TestAuthMiddlewareSemToken(t *testing.T) {
	auth := handlers.NewAuthMiddleware("segredo", &stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/investments", nil)
	rec := httptest.NewRecorder()
	auth.Handler(sessionEcho()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareTokenInvalido(t *testing.T) {
	auth := handlers.NewAuthMiddleware("segredo", &stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/investments", nil)
	req.Header.Set("Authorization", "Bearer nao-e-um-jwt")
	rec := httptest.NewRecorder()
	auth.Handler(sessionEcho()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareAssinaturaErrada(t *testing.T) {
	auth := handlers.NewAuthMiddleware("segredo", &stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/investments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "outro-segredo", "user-1"))
	rec := httptest.NewRecorder()
	auth.Handler(sessionEcho()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareUsuarioInexistente(t *testing.T) {
	auth := handlers.NewAuthMiddleware("segredo", &stubStore{users: map[string]models.User{}})

	req := httptest.NewRequest(http.MethodGet, "/investments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "segredo", "fantasma"))
	rec := httptest.NewRecorder()
	auth.Handler(sessionEcho()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareResolveSessaoDoBanco(t *testing.T) {
	store := &stubStore{users: map[string]models.User{
		"user-1": {ID: "user-1", Role: models.RoleInvestor, StellarAddress: "GBVESTIDOR1", KYCApproved: true},
	}}
	auth := handlers.NewAuthMiddleware("segredo", store)

	req := httptest.NewRequest(http.MethodGet, "/investments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "segredo", "user-1"))
	rec := httptest.NewRecorder()
	auth.Handler(sessionEcho()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}
