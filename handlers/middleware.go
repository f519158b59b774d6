package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ferreirogomes/notinha/models"
	"github.com/ferreirogomes/notinha/services"
)

type contextKey string

const sessionKey contextKey = "session"

// AuthMiddleware valida o token Bearer HS256 e resolve a sessão do
// chamador. O papel e o status de KYC são sempre relidos do banco: um
// token emitido antes da aprovação não carrega KYC desatualizado.
type AuthMiddleware struct {
	Secret []byte
	DB     services.Store
}

// NewAuthMiddleware cria o middleware de autenticação.
func NewAuthMiddleware(secret string, db services.Store) *AuthMiddleware {
	return &AuthMiddleware{Secret: []byte(secret), DB: db}
}

// Handler rejeita requisições sem sessão válida e injeta models.Session no
// contexto das demais.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token de autenticação ausente"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.Secret, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token de autenticação inválido"})
			return
		}

		user, found, err := m.DB.GetUser(claims.Subject)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "falha ao resolver sessão"})
			return
		}
		if !found {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "usuário do token não existe"})
			return
		}

		session := models.Session{
			UserID:         user.ID,
			Role:           user.Role,
			StellarAddress: user.StellarAddress,
			KYCApproved:    user.KYCApproved,
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, session)))
	})
}

// SessionFrom extrai a sessão injetada pelo middleware.
func SessionFrom(r *http.Request) (models.Session, bool) {
	session, ok := r.Context().Value(sessionKey).(models.Session)
	return session, ok
}

// requireSession responde 401 quando o handler foi alcançado sem sessão.
func requireSession(w http.ResponseWriter, r *http.Request) (models.Session, bool) {
	session, ok := SessionFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sessão ausente"})
	}
	return session, ok
}

// WithSession injeta uma sessão diretamente no contexto. Usado em testes.
func WithSession(r *http.Request, session models.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionKey, session))
}
