package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	FailedField string `json:"field"`
	Tag         string `json:"tag"`
	Value       string `json:"value,omitempty"`
}

// Error carries every failed field of a struct validation.
type Error struct {
	Fields []*ErrorResponse
}

func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation_failed"
	}
	first := e.Fields[0]
	return fmt.Sprintf("validation failed: field '%s' failed on tag '%s'", first.FailedField, first.Tag)
}

var nicPattern = regexp.MustCompile(`^([0-9]{9}[VX]|[0-9]{12})$`)

var validate = validator.New()

func init() {
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	validate.RegisterValidation("nic", func(fl validator.FieldLevel) bool {
		return ValidNIC(fl.Field().String())
	})
	validate.RegisterValidation("snowflake", func(fl validator.FieldLevel) bool {
		id, err := snowflake.ParseString(strings.TrimSpace(fl.Field().String()))
		return err == nil && id != 0
	})
	validate.RegisterValidation("dgt0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})
	validate.RegisterValidation("dgte0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
}

// NormalizeNIC upper-cases and trims a national identity number.
func NormalizeNIC(nic string) string {
	return strings.ToUpper(strings.TrimSpace(nic))
}

func ValidNIC(nic string) bool {
	return nicPattern.MatchString(NormalizeNIC(nic))
}

func ValidateStruct(data interface{}) []*ErrorResponse {
	var errors []*ErrorResponse
	err := validate.Struct(data)
	if err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return []*ErrorResponse{{FailedField: "", Tag: err.Error()}}
		}
		for _, err := range verrs {
			var element ErrorResponse
			element.FailedField = err.StructNamespace()
			element.Tag = err.Tag()
			element.Value = err.Param()
			errors = append(errors, &element)
		}
	}
	return errors
}

// Validate wraps ValidateStruct into an error value.
func Validate(data interface{}) error {
	if errs := ValidateStruct(data); len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}
