package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates an unknown user, activity or challenge.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrPersistence indicates the store failed; no partial effects remain.
	ErrPersistence = errors.New("persistence")
	// ErrInvalidCredentials is returned by login for any email/password mismatch.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

func NotFoundError(what string) error {
	return errors.Join(ErrNotFound, fmt.Errorf("%s not found", strings.TrimSpace(what)))
}

func ValidationError(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

func ConflictError(msg string) error {
	return errors.Join(ErrConflict, errors.New(strings.TrimSpace(msg)))
}

func PersistenceError(op string, err error) error {
	return errors.Join(ErrPersistence, fmt.Errorf("%s: %w", op, err))
}

// Message returns the caller-facing text of a tagged error, without the tag.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		parts := joined.Unwrap()
		if len(parts) == 2 {
			return parts[1].Error()
		}
	}
	return err.Error()
}

// mapStoreError classifies a raw store error. Errors already tagged pass through.
func mapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrPersistence),
		errors.Is(err, ErrInvalidCredentials):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Join(ErrNotFound, fmt.Errorf("%s: %w", op, err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return PersistenceError(op, err)
	}
	if isUniqueViolation(err) {
		return errors.Join(ErrConflict, fmt.Errorf("%s: %w", op, err))
	}
	return PersistenceError(op, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.TrimSpace(pgErr.Code) == "23505" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
