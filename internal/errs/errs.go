// Package errs defines the failure taxonomy shared across remind.
//
// Every error leaving a component wraps exactly one of the four sentinel
// kinds below, so callers can classify failures with errors.Is without
// depending on backend details:
//
//	if errors.Is(err, errs.ErrNotFound) { ... }
//
// The store layer wraps backend failures as ErrDatabase after logging the
// failing operation context; model and embedding failures wrap ErrExternal.
package errs

import "errors"

var (
	// ErrNotFound indicates a missing document, collection or model.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates an empty required field or an unknown
	// type/provider combination.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabase indicates a backing-store failure. It always wraps the
	// original cause.
	ErrDatabase = errors.New("database operation failed")

	// ErrExternal indicates an embedding or language-model failure.
	ErrExternal = errors.New("external service failed")
)

// Kind returns a stable string label for the taxonomy kind of err,
// or "internal" if err matches none. Used by the API layer for
// terminal failure payloads.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDatabase):
		return "database_operation"
	case errors.Is(err, ErrExternal):
		return "external_service"
	default:
		return "internal"
	}
}
