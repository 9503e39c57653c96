// Package validation checks login and sign-up form input. Each Validator
// returns the message shown under the field, or "" when the value passes.
package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Validator checks one field value.
type Validator func(v string) string

func missing(fieldName string) string { return fieldName + " is required." }

func tooLong(fieldName, v string, maxLen int) string {
	if utf8.RuneCountInString(v) > maxLen {
		return fmt.Sprintf("%s cannot exceed %d characters.", fieldName, maxLen)
	}
	return ""
}

// Required rejects blank values and trimmed values longer than maxLen runes.
func Required(fieldName string, maxLen int) Validator {
	return func(v string) string {
		if v = strings.TrimSpace(v); v == "" {
			return missing(fieldName)
		}
		return tooLong(fieldName, v, maxLen)
	}
}

// Optional accepts blank values and rejects trimmed values longer than maxLen runes.
func Optional(fieldName string, maxLen int) Validator {
	return func(v string) string {
		return tooLong(fieldName, strings.TrimSpace(v), maxLen)
	}
}

// RequiredRange bounds the untrimmed rune length, so whitespace in passwords counts.
func RequiredRange(fieldName string, minLen, maxLen int) Validator {
	return func(v string) string {
		if strings.TrimSpace(v) == "" {
			return missing(fieldName)
		}
		if n := utf8.RuneCountInString(v); n < minLen || n > maxLen {
			return fmt.Sprintf("%s must be between %d and %d characters.", fieldName, minLen, maxLen)
		}
		return ""
	}
}

// Email accepts a bare address with a dotted domain, such as "name@example.com".
func Email(fieldName string) Validator {
	return func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return missing(fieldName)
		}
		addr, err := mail.ParseAddress(v)
		if err != nil || addr.Address != v {
			return "Enter a valid email address."
		}
		// ParseAddress accepts single-label domains such as "localhost".
		if domain := v[strings.LastIndex(v, "@")+1:]; !strings.Contains(domain, ".") {
			return "Enter a valid email address."
		}
		return ""
	}
}

// Equals fails with message unless the value equals other, e.g. a password confirmation.
func Equals(message, other string) Validator {
	return func(v string) string {
		if v != other {
			return message
		}
		return ""
	}
}

// FieldValidator collects the first failure per field.
type FieldValidator struct {
	errors map[string]string
}

// New returns an empty FieldValidator.
func New() *FieldValidator {
	return &FieldValidator{errors: make(map[string]string)}
}

// Validate runs validators against value in order and records the first failure under field.
func (fv *FieldValidator) Validate(field, value string, validators ...Validator) *FieldValidator {
	for _, check := range validators {
		if msg := check(value); msg != "" {
			fv.errors[field] = msg
			return fv
		}
	}
	return fv
}

// Errors returns the recorded messages keyed by field name.
func (fv *FieldValidator) Errors() map[string]string { return fv.errors }

// Valid reports whether every field passed.
func (fv *FieldValidator) Valid() bool { return len(fv.errors) == 0 }
