package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"construction-chatbot-be/internal/pkg/apperrors"
	"construction-chatbot-be/pkg/safety"
)

type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	Code      int         `json:"code,omitempty"`
}

func SuccessResponse(message string, data interface{}) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string) Response {
	return Response{
		Success: false,
		Error:   message,
		Code:    code,
	}
}

var validate = validator.New()

// ValidateRequest runs struct tag validation and converts failures into
// a validation AppError with a readable field list.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return apperrors.NewValidation("invalid request body")
	}

	fields := make([]string, 0, len(invalid))
	for _, f := range invalid {
		fields = append(fields, fmt.Sprintf("%s (%s)", f.Field(), f.Tag()))
	}
	return apperrors.NewValidation("invalid request: " + strings.Join(fields, ", "))
}

// ErrorHandler is the fiber app error handler. Unsafe queries map to 403
// with a generic message so no rejection detail leaks to the client;
// validation failures map to 400; everything else is a 400 general error.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var unsafeErr *safety.UnsafeQueryError
	if errors.As(err, &unsafeErr) {
		err = apperrors.NewSecurity(unsafeErr)
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status, errType := statusForType(appErr.Type)
		return ctx.Status(status).JSON(Response{
			Success:   false,
			Error:     appErr.Message,
			ErrorType: string(errType),
			Code:      status,
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
	}

	return ctx.Status(fiber.StatusBadRequest).JSON(Response{
		Success:   false,
		Error:     err.Error(),
		ErrorType: string(apperrors.TypeGeneral),
		Code:      fiber.StatusBadRequest,
	})
}

func statusForType(t apperrors.ErrorType) (int, apperrors.ErrorType) {
	switch t {
	case apperrors.TypeSecurity:
		return fiber.StatusForbidden, apperrors.TypeSecurity
	case apperrors.TypeValidation:
		return fiber.StatusBadRequest, apperrors.TypeValidation
	case apperrors.TypeNotFound:
		return fiber.StatusNotFound, apperrors.TypeNotFound
	default:
		return fiber.StatusBadRequest, apperrors.TypeGeneral
	}
}
