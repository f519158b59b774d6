package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ferreirogomes/notinha/logger"
	"github.com/ferreirogomes/notinha/services"
)

// writeJSON serializa a resposta com o status informado.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeError mapeia o tipo do erro de negócio para o código HTTP e responde
// {"error": mensagem}.
func writeError(w http.ResponseWriter, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		logger.Log.Errorf("Erro não classificado no handler: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "erro interno"})
		return
	}

	status := http.StatusInternalServerError
	switch svcErr.Kind {
	case services.KindAuth:
		status = http.StatusUnauthorized
	case services.KindForbidden:
		status = http.StatusForbidden
	case services.KindValidation, services.KindState:
		status = http.StatusBadRequest
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindExternal:
		status = http.StatusBadGateway
	case services.KindInternal:
		logger.Log.Errorf("Erro interno: %s", svcErr.Message)
	}
	writeJSON(w, status, map[string]string{"error": svcErr.Message})
}

// decodeBody decodifica o corpo JSON da requisição em dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido: " + err.Error()})
		return false
	}
	return true
}
