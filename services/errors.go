package services

import "fmt"

// ErrorKind classifica as falhas das operações de negócio. Os handlers
// mapeiam cada tipo para o código HTTP correspondente.
type ErrorKind string

const (
	KindAuth       ErrorKind = "AUTH"       // Sem sessão
	KindForbidden  ErrorKind = "FORBIDDEN"  // Papel, KYC ou titularidade incorretos
	KindValidation ErrorKind = "VALIDATION" // Entrada inválida
	KindState      ErrorKind = "STATE"      // Operação inválida para o status atual
	KindNotFound   ErrorKind = "NOT_FOUND"  // Fatura/ordem inexistente
	KindExternal   ErrorKind = "EXTERNAL"   // Falha do ledger externo
	KindInternal   ErrorKind = "INTERNAL"   // Falha de armazenamento/inesperada
)

// Error é o erro de negócio retornado pelos serviços.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func errForbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func errValidation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func errState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindState, Message: fmt.Sprintf(format, args...)}
}

func errNotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func errExternal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindExternal, Message: fmt.Sprintf(format, args...)}
}

func errInternal(err error) *Error {
	return &Error{Kind: KindInternal, Message: err.Error()}
}
