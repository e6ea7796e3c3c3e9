package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write collides with an existing key,
	// e.g. a retried turn carrying the same idempotency token.
	ErrDuplicate = errors.New("duplicate key")
	// ErrMissingIndex means the schema objects a query relies on do not exist yet.
	// Callers surface it as retryable.
	ErrMissingIndex = errors.New("missing index")
)

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrMissingIndex) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.Message)
		case "42P01", "42704":
			return fmt.Errorf("%w: %s", ErrMissingIndex, pgErr.Message)
		}
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint failed"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case strings.Contains(msg, "no such table"), strings.Contains(msg, "no such index"):
		return fmt.Errorf("%w: %v", ErrMissingIndex, err)
	}
	return err
}
