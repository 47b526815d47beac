package auth

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/lacpa/lacpa-backend/internal/utils"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores anything past 72 bytes
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("password", validatePassword)
	_ = v.RegisterValidation("lacpa_role", func(fl validator.FieldLevel) bool {
		return Role(fl.Field().String()).Valid()
	})
	return v
}

// validatePassword requires 8 to 72 bytes with an upper-case letter, a
// lower-case letter, a digit and a symbol.
func validatePassword(fl validator.FieldLevel) bool {
	return passwordProblem(fl.Field().String()) == ""
}

func passwordProblem(p string) string {
	if len(p) < minPasswordLen {
		return "must be at least 8 characters"
	}
	if len(p) > maxPasswordLen {
		return "must be at most 72 bytes"
	}
	var upper, lower, digit, special bool
	for _, c := range p {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		case unicode.IsPunct(c) || unicode.IsSymbol(c):
			special = true
		}
	}
	switch {
	case !upper:
		return "must contain an upper-case letter"
	case !lower:
		return "must contain a lower-case letter"
	case !digit:
		return "must contain a digit"
	case !special:
		return "must contain a special character"
	}
	return ""
}

// ValidateStruct runs the tags on v and converts failures to a
// *ValidationError. Field names come from the json tags.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range ve {
		out.Fields = append(out.Fields, utils.FieldError{Field: fe.Field(), Message: translate(fe)})
	}
	return out
}

func translate(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "invalid email format"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "must contain only digits"
	case "password":
		return passwordProblem(fe.Value().(string))
	case "lacpa_role":
		return "must be member or admin"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url":
		return "must be a valid URL"
	case "datetime":
		return "must be a date in " + fe.Param() + " format"
	}
	return "is invalid"
}

// NormalizeEmail trims, applies NFC and lower-cases. Emails are stored
// and compared in this form.
func NormalizeEmail(email string) string {
	email = norm.NFC.String(strings.TrimSpace(email))
	return cases.Lower(language.Und).String(email)
}

// normalizeName applies NFC and collapses runs of whitespace.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}
