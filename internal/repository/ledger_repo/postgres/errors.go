package postgres

import (
	"errors"
	"fmt"

	"ledger/internal/domain"

	"github.com/lib/pq"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// translateError maps driver errors onto the ledger taxonomy. Serialization failures,
// deadlocks, lock timeouts and account number collisions are conflicts the caller may
// retry; everything else is a storage failure.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeUniqueViolation:
			return fmt.Errorf("%w: %s: %w", domain.ErrConcurrencyConflict, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}
