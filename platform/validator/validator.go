// Package validator wraps go-playground struct validation and registers
// the custom rules the outreach DTOs rely on.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"github.com/go-playground/validator/v10"

	"outreach_backend/platform/phone"
)

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the custom rules registered. "dialable"
// accepts any string the phone package can normalize to E.164.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("dialable", func(fl validator.FieldLevel) bool {
		_, err := phone.NormalizeE164(fl.Field().String())
		return err == nil
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}
