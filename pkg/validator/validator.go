package validator

import (
	"errors"

	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/response"
	"github.com/go-playground/validator/v10"
)

// CustomValidator plugs go-playground/validator into echo.Context.Validate.
type CustomValidator struct {
	validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return &FieldErrors{cause: err}
	}
	return nil
}

// FieldErrors is a validation failure that can list the offending fields.
type FieldErrors struct {
	cause error
}

func (e *FieldErrors) Error() string {
	return errs.ErrClient.Error()
}

func (e *FieldErrors) Unwrap() error {
	return errs.ErrClient
}

func (e *FieldErrors) Fields() []response.ValidationError {
	var validationErrs validator.ValidationErrors
	if !errors.As(e.cause, &validationErrs) {
		return nil
	}

	fields := make([]response.ValidationError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, response.ValidationError{Field: fe.Field(), Tag: fe.Tag()})
	}
	return fields
}
