package crud

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/query"
)

// Repository error taxonomy. Callers match with errors.Is.
var (
	// ErrInvalidParam is returned for malformed or missing inputs
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrNotFound is returned when an existence probe finds nothing
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a create conflicts with an existing record
	ErrAlreadyExists = errors.New("record already exists")

	// ErrFailure is returned when a write affected no rows
	ErrFailure = errors.New("operation affected no rows")

	// ErrIdentify is returned when supplied credentials do not match the stored ones
	ErrIdentify = errors.New("identity verification failed")
)

// ConvertDBError maps driver and builder errors onto the repository taxonomy.
// Errors it does not recognize are returned unchanged.
func ConvertDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case isTaxonomy(err):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, query.ErrInvalidPredicate), errors.Is(err, query.ErrUnfiltered):
		return fmt.Errorf("%w: %w", ErrInvalidParam, err)
	case dialect.IsUniqueViolation(err):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	}
	return err
}

func isTaxonomy(err error) bool {
	for _, e := range []error{ErrInvalidParam, ErrNotFound, ErrAlreadyExists, ErrFailure, ErrIdentify} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidParam}, args...)...)
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists returns true if the error is ErrAlreadyExists
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
