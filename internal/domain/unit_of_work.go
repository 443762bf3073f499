package domain

// UnitOfWork is one atomic, serializable scope against the ledger store. It is created by
// the store, passed by the caller into every store call that belongs to the same business
// operation, and closed exactly once by the caller with Commit or Rollback.
type UnitOfWork interface {
	Commit() error
	Rollback() error
}
