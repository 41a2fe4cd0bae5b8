package synckit

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	syncErrors "github.com/c0deZ3R0/productsync/errors"
)

// ProductInput is a product as typed by the user. Images are local file
// paths; only the first one is uploaded.
type ProductInput struct {
	Name   string   `validate:"required,notblank"`
	Type   string   `validate:"required,oneof=Product Service"`
	Price  string   `validate:"required,nonnegdecimal"`
	Tax    string   `validate:"required,nonnegdecimal"`
	Images []string `validate:"omitempty,dive,required"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field string
	Tag   string
	Value string
}

var validate = validator.New()

func init() {
	validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	validate.RegisterValidation("nonnegdecimal", func(fl validator.FieldLevel) bool {
		return IsNonNegativeDecimal(fl.Field().String())
	})
}

// Validate checks the input and returns a ValidationError listing the
// offending fields, or nil.
func (in ProductInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return syncErrors.NewValidationError(syncErrors.OpValidate, err)
	}

	fields := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Value: fe.Param()})
		names = append(names, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return syncErrors.NewValidationError(syncErrors.OpValidate,
		fmt.Errorf("invalid product: %s", strings.Join(names, ", "))).
		WithMetadata("fields", fields)
}

// Normalized returns a copy with names trimmed and numbers in canonical form.
// The input must already be valid.
func (in ProductInput) Normalized() ProductInput {
	out := in
	out.Name = strings.TrimSpace(in.Name)
	out.Type = strings.TrimSpace(in.Type)
	out.Price = mustDecimal(in.Price).String()
	out.Tax = mustDecimal(in.Tax).String()
	return out
}

// Record builds the pending placeholder shown while the input waits for
// upload.
func (in ProductInput) Record() ProductRecord {
	r := ProductRecord{
		Name:      strings.TrimSpace(in.Name),
		Type:      ProductType(strings.TrimSpace(in.Type)),
		Price:     mustDecimal(in.Price),
		Tax:       mustDecimal(in.Tax),
		IsPending: true,
	}
	if len(in.Images) > 0 {
		r.LocalThumbnail = in.Images[0]
	}
	return r
}

// SanitizeDecimal strips everything from s except digits and the first
// decimal point. A lone "." becomes "0.". Minus signs are dropped.
func SanitizeDecimal(s string) string {
	var b strings.Builder
	dotSeen := false
	for _, ch := range s {
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '.' && !dotSeen:
			b.WriteRune(ch)
			dotSeen = true
		}
	}
	if b.String() == "." {
		return "0."
	}
	return b.String()
}

// IsNonNegativeDecimal reports whether s parses as a decimal >= 0.
func IsNonNegativeDecimal(s string) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return !d.IsNegative()
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
