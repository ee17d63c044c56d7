package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength     = 50
	maxPasswordLength = 72 // limite de bcrypt, en bytes
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9+._%\-]{1,256}@[a-zA-Z0-9][a-zA-Z0-9\-]{0,64}(\.[a-zA-Z0-9][a-zA-Z0-9\-]{0,25})+$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: %s is not a valid email address", ErrInvalidInput, email)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, maxNameLength)
	}
	return nil
}

// validateSecret exige un secreto no vacio tras recortar espacios. El valor
// hasheado es el original, sin recortar.
func validateSecret(field, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if len(secret) > maxPasswordLength {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidInput, field, maxPasswordLength)
	}
	return nil
}
