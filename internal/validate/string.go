// Package validate provides the input checks shared by the profile, policy,
// schedule and attendance services. Every error returned here wraps
// apperr.ErrValidation.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/onnwee/timeguard/internal/apperr"
)

// String validation errors
var (
	ErrStringTooShort    = fmt.Errorf("%w: string is too short", apperr.ErrValidation)
	ErrStringTooLong     = fmt.Errorf("%w: string is too long", apperr.ErrValidation)
	ErrInvalidCharacters = fmt.Errorf("%w: string contains invalid characters", apperr.ErrValidation)
	ErrEmpty             = fmt.Errorf("%w: string is empty", apperr.ErrValidation)
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	Field          string         // Field name used in error messages
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", fieldError(constraints.Field, ErrEmpty)
		}
		return s, nil
	}

	if !utf8.ValidString(s) {
		return "", fieldError(constraints.Field, ErrInvalidCharacters)
	}
	if strings.IndexFunc(s, isDisallowedControl) >= 0 {
		return "", fieldError(constraints.Field, ErrInvalidCharacters)
	}

	// Get actual character count (not byte count)
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fieldError(constraints.Field,
			fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength))
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fieldError(constraints.Field,
			fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength))
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fieldError(constraints.Field,
			fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters))
	}

	return s, nil
}

// Newlines and tabs are fine in free text; other control characters are not.
func isDisallowedControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func fieldError(field string, err error) error {
	if field == "" {
		return err
	}
	return fmt.Errorf("%s: %w", field, err)
}

// DisplayName validates a profile display name:
// - Optional
// - Max 100 characters
func DisplayName(name string) (string, error) {
	return String(name, StringConstraints{
		Field:      "display_name",
		MaxLength:  100,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// Department validates a profile department: optional, max 100 characters.
func Department(dept string) (string, error) {
	return String(dept, StringConstraints{
		Field:      "department",
		MaxLength:  100,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

var employeeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.]+$`)

// EmployeeID validates an optional employee number. Empty input yields nil.
func EmployeeID(id *string) (*string, error) {
	if id == nil {
		return nil, nil
	}
	v, err := String(*id, StringConstraints{
		Field:          "employee_id",
		MaxLength:      50,
		AllowedPattern: employeeIDPattern,
		AllowEmpty:     true,
		TrimSpace:      true,
	})
	if err != nil || v == "" {
		return nil, err
	}
	return &v, nil
}

// FenceName validates a geo-fence name:
// - 1-100 characters
func FenceName(name string) (string, error) {
	return String(name, StringConstraints{
		Field:     "name",
		MinLength: 1,
		MaxLength: 100,
		TrimSpace: true,
	})
}

// Description validates a description field:
// - Optional (can be empty)
// - Max 500 characters
func Description(desc string) (string, error) {
	return String(desc, StringConstraints{
		Field:      "description",
		MaxLength:  500,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// Note validates the optional free-text note on a clock event. Empty input
// yields nil.
func Note(note *string) (*string, error) {
	if note == nil {
		return nil, nil
	}
	v, err := String(*note, StringConstraints{
		Field:      "notes",
		MaxLength:  1000,
		AllowEmpty: true,
		TrimSpace:  true,
	})
	if err != nil || v == "" {
		return nil, err
	}
	return &v, nil
}
