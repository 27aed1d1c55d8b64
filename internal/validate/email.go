package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/onnwee/timeguard/internal/apperr"
)

// Email validation errors
var (
	ErrInvalidEmail = fmt.Errorf("%w: invalid email format", apperr.ErrValidation)
)

// emailPattern is a reasonable regex for basic email validation.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email validates an email address format.
// Returns the normalized (lowercased, trimmed) email and an error if invalid.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" {
		return "", fieldError("email", ErrEmpty)
	}

	// RFC 5321
	if len(email) > 254 {
		return "", fieldError("email", ErrStringTooLong)
	}

	if !emailPattern.MatchString(email) {
		return "", fieldError("email", ErrInvalidEmail)
	}

	localPart, domain, _ := strings.Cut(email, "@")
	if strings.Contains(domain, "@") {
		return "", fieldError("email", ErrInvalidEmail)
	}

	// Local part should not exceed 64 characters (RFC 5321)
	if len(localPart) > 64 {
		return "", fieldError("email", ErrStringTooLong)
	}

	if strings.HasPrefix(domain, ".") || strings.Contains(domain, "..") {
		return "", fieldError("email", ErrInvalidEmail)
	}

	return email, nil
}
