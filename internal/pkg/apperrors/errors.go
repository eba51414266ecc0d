// Package apperrors defines the error taxonomy exposed by the HTTP
// layer. Services wrap failures in an AppError; the fiber error handler
// maps the type to a status code and a response error_type.
package apperrors

import "fmt"

type ErrorType string

const (
	TypeValidation ErrorType = "validation"
	TypeSecurity   ErrorType = "security"
	TypeGeneral    ErrorType = "general"
	TypeNotFound   ErrorType = "not_found"
)

type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidation(message string) *AppError {
	return &AppError{Type: TypeValidation, Message: message}
}

// NewSecurity carries a generic message for the client; the underlying
// rejection detail stays server-side in err.
func NewSecurity(err error) *AppError {
	return &AppError{Type: TypeSecurity, Message: "La requête générée a été bloquée pour des raisons de sécurité", Err: err}
}

func NewGeneral(message string, err error) *AppError {
	return &AppError{Type: TypeGeneral, Message: message, Err: err}
}

func NewNotFound(message string) *AppError {
	return &AppError{Type: TypeNotFound, Message: message}
}
