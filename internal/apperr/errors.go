// Package apperr defines the error kinds shared by the attendance, policy,
// schedule, profile and audit packages. Domain packages wrap these sentinels
// with fmt.Errorf("%w: ...") and the API layer maps them to HTTP responses.
package apperr

import "errors"

var (
	// ErrValidation indicates malformed input such as a bad enum value or a
	// non-positive radius.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a uniqueness violation (e.g. duplicate IP address).
	ErrConflict = errors.New("uniqueness violation")

	// ErrAccessDenied indicates the principal may not perform the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrLocationDenied indicates the location authorizer rejected a clock event.
	ErrLocationDenied = errors.New("location not permitted")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated indicates no principal could be resolved for the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPersistence indicates the store was unavailable or the transaction aborted.
	ErrPersistence = errors.New("persistence failure")
)

// Kind returns the sentinel that err wraps, or ErrPersistence when err wraps
// none of them. A nil err returns nil.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range []error{
		ErrValidation,
		ErrConflict,
		ErrAccessDenied,
		ErrLocationDenied,
		ErrNotFound,
		ErrUnauthenticated,
		ErrPersistence,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrPersistence
}
