package domain

import "errors"

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAllocationExhausted = errors.New("account number allocation exhausted")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrStorage             = errors.New("storage error")
)

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidArgument
	KindAccountNotFound
	KindInsufficientFunds
	KindAllocationExhausted
	KindConcurrencyConflict
	KindStorage
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindAccountNotFound:
		return "account_not_found"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindAllocationExhausted:
		return "allocation_exhausted"
	case KindConcurrencyConflict:
		return "concurrency_conflict"
	case KindStorage:
		return "storage_error"
	default:
		return "unknown"
	}
}

// KindOf classifies err by the ledger sentinel it wraps. Business kinds win over
// ErrStorage when an error wraps both.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrAccountNotFound):
		return KindAccountNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrAllocationExhausted):
		return KindAllocationExhausted
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConcurrencyConflict
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindUnknown
	}
}

// UserMessage is the text shown to an operator for a failed operation.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindInvalidArgument:
		return err.Error()
	case KindAccountNotFound:
		return err.Error()
	case KindInsufficientFunds:
		return "Insufficient funds."
	case KindAllocationExhausted:
		return "Could not allocate a unique account number. Try again."
	case KindConcurrencyConflict:
		return "The account was changed by another operation. Try again."
	case KindStorage:
		return "The ledger storage is unavailable right now."
	default:
		return "Unexpected error."
	}
}
