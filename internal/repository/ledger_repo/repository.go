package ledger_repo

import (
	"context"

	"ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// Store is the durable ledger: accounts keyed by number plus an append-only transaction log.
//
// Every mutating call takes the unit of work returned by Begin. Read calls also accept a nil
// unit, in which case they run as a standalone read with the store's default consistency.
// A Store never commits or rolls back a unit it was handed.
type Store interface {
	Begin(ctx context.Context) (domain.UnitOfWork, error)

	GetAccount(ctx context.Context, uow domain.UnitOfWork, number string) (*domain.Account, error)
	AccountNumberExists(ctx context.Context, uow domain.UnitOfWork, number string) (bool, error)
	InsertAccount(ctx context.Context, uow domain.UnitOfWork, account *domain.Account) error
	SetBalance(ctx context.Context, uow domain.UnitOfWork, number string, balance decimal.Decimal) error

	AppendTransaction(ctx context.Context, uow domain.UnitOfWork, record *domain.TransactionRecord) error
	ListTransactions(ctx context.Context, uow domain.UnitOfWork, number string) ([]domain.TransactionRecord, error)

	EnqueueOutbox(ctx context.Context, uow domain.UnitOfWork, msg *domain.OutboxMessage) error
}

// OutboxRepository is the read side of the outbox used by the relay processor.
type OutboxRepository interface {
	PendingOutbox(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkOutbox(ctx context.Context, id string, status domain.OutboxMessageStatus) error
}
