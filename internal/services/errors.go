package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error kinds. Every domain error wraps exactly one of these so callers can
// branch with errors.Is without knowing the specific failure.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrDomainRule   = errors.New("domain rule violation")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	ErrBookNotFound        = kindError(ErrNotFound, "book not found")
	ErrBookAlreadyReserved = kindError(ErrDomainRule, "book is already reserved")
	ErrBookUnderHold       = kindError(ErrConflict, "cannot delete a book with an active reservation")
	ErrDuplicateISBN       = kindError(ErrConflict, "isbn already registered")
	ErrInvalidYear         = kindError(ErrInvalidInput, "publication year must be between 1000 and 2100")
	ErrInvalidBook         = kindError(ErrInvalidInput, "title (at most 200 characters) and author are required")

	ErrClientNotFound              = kindError(ErrNotFound, "client not found")
	ErrInvalidCPF                  = kindError(ErrInvalidInput, "invalid cpf")
	ErrDuplicateCPF                = kindError(ErrConflict, "cpf already registered")
	ErrClientHasActiveReservations = kindError(ErrConflict, "client has open reservations")

	ErrReservationNotFound  = kindError(ErrNotFound, "reservation not found")
	ErrReservationCompleted = kindError(ErrDomainRule, "reservation already completed")
	ErrInvalidStatus        = kindError(ErrInvalidInput, "invalid reservation status")
	ErrInvalidDueDate       = kindError(ErrInvalidInput, "due date is required")

	ErrInvalidCredentials = kindError(ErrUnauthorized, "invalid credentials")
)

type domainError struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error {
	return &domainError{kind: kind, msg: msg}
}

func (e *domainError) Error() string { return e.msg }

func (e *domainError) Unwrap() error { return e.kind }

// KindOf returns a stable label for the error kind of err, or "internal"
// when err carries none.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDomainRule):
		return "domain_rule"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	}
	return "internal"
}

// isUniqueViolation reports whether err is a unique-constraint failure,
// either translated by gorm or raw from Postgres (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func wrapStorage(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
