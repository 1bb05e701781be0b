// Package validation plugs go-playground struct validation into echo so
// handlers can call c.Validate on bound request bodies.
package validation

import "github.com/go-playground/validator/v10"

type RequestValidator struct {
	validate *validator.Validate
}

func New() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}
