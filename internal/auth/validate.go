package auth

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes a user-correctable problem with one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RegisterInput is the payload of the register mutation. Field order is the
// order problems are reported in.
type RegisterInput struct {
	Email    string `json:"email" validate:"contains=@"`
	Username string `json:"username" validate:"min=3,excludes=@"`
	Password string `json:"password" validate:"min=3"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(jsonName)
}

var messages = map[string]string{
	"contains": "invalid email",
	"min":      "length must be greater than 2",
	"excludes": "cannot include an @",
}

// ValidateRegister returns the first problem with in, or nil.
func ValidateRegister(in RegisterInput) []FieldError {
	return toFieldErrors(validate.Struct(in))
}

// ValidatePassword checks a new password, reporting problems against field.
func ValidatePassword(field, password string) []FieldError {
	if err := validate.Var(password, "min=3"); err != nil {
		return []FieldError{{Field: field, Message: messages["min"]}}
	}
	return nil
}

func toFieldErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return []FieldError{{Field: "input", Message: err.Error()}}
	}
	first := verrs[0]
	msg, ok := messages[first.Tag()]
	if !ok {
		msg = "invalid value"
	}
	return []FieldError{{Field: first.Field(), Message: msg}}
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
