package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrConfigNotFound     = errors.New("numbering config not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrAlreadyConverted   = errors.New("estimate already converted")
	ErrInvalidInput       = errors.New("invalid input")
	// ErrNumberCollision a rendered number already exists on another document
	// of the same tenant, usually after a format lost its counter token or
	// next_number was lowered.
	ErrNumberCollision = errors.New("document number already in use")
)

// StateError an operation needs a different status than the entity has.
type StateError struct {
	Current string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid state: current status is %s", e.Current)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

var domainErrors = []error{
	ErrConfigNotFound,
	ErrStorageUnavailable,
	ErrForbidden,
	ErrNotFound,
	ErrInvalidState,
	ErrAlreadyConverted,
	ErrInvalidInput,
	ErrNumberCollision,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// storageErr tags a repository failure as ErrStorageUnavailable while keeping
// the cause in the chain.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// classify passes domain errors through, reports Postgres data exceptions
// (class 22, e.g. value too long) as invalid input and turns everything else
// into a storage failure.
func classify(op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "22") {
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidInput, pgErr.Message)
	}
	return storageErr(op, err)
}

// resultLabel metric label for an operation outcome.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConfigNotFound):
		return "config_not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrAlreadyConverted):
		return "already_converted"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNumberCollision):
		return "collision"
	default:
		return "storage_error"
	}
}
