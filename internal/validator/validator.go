// Package validator checks request structs against their `validate` tags and
// reports failures keyed by JSON field name.
package validator

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"chatapp-gateway/internal/apperror"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	// rejects strings made only of whitespace
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != '-' {
				return false
			}
		}
		return true
	})

	return &Validator{validate: validate}
}

// Struct validates s. A failure is a bad_request error whose fields map the
// JSON name of every invalid field to the tag it failed.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return apperror.Wrap(apperror.KindInternal, "validation setup", err)
	}

	fields := make(map[string]string, len(validateErrs))
	for _, e := range validateErrs {
		fields[e.Field()] = e.Tag()
	}
	return apperror.Validation(fields)
}
