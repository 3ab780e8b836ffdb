package apperrors

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// FromValidation converts the first failed rule into a field error.
// describe turns the failure into a client-facing message.
func FromValidation(code string, err error, describe func(validator.FieldError) string) *Error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return Validation(code, err)
	}
	first := fieldErrors[0]
	classified := FieldInvalid(code, first.Field(), describe(first))
	classified.Err = err
	return classified
}
