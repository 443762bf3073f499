package ledger

import (
	"context"

	"ledger/internal/domain"
	"ledger/internal/repository/ledger_repo"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Queries answers read-only questions with auto-commit reads.
type Queries struct {
	store  ledger_repo.Store
	logger *zap.Logger
}

func NewQueries(store ledger_repo.Store, logger *zap.Logger) *Queries {
	return &Queries{store: store, logger: logger}
}

func (q *Queries) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	number, err := requireAccountNumber("account number", accountNumber)
	if err != nil {
		return nil, err
	}

	account, err := q.store.GetAccount(ctx, nil, number)
	if err != nil {
		q.logger.Debug("Account lookup failed", zap.String("account_number", number), zap.Error(err))
		return nil, err
	}
	return account, nil
}

func (q *Queries) GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	account, err := q.GetAccount(ctx, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// GetHistory lists every record naming the account, newest first. An unknown account is
// reported as not found rather than as an empty history.
func (q *Queries) GetHistory(ctx context.Context, accountNumber string) ([]domain.TransactionRecord, error) {
	number, err := requireAccountNumber("account number", accountNumber)
	if err != nil {
		return nil, err
	}

	exists, err := q.store.AccountNumberExists(ctx, nil, number)
	if err != nil {
		q.logger.Error("Failed to check account before listing history",
			zap.String("account_number", number), zap.Error(err))
		return nil, err
	}
	if !exists {
		return nil, domainNotFound(number)
	}

	records, err := q.store.ListTransactions(ctx, nil, number)
	if err != nil {
		q.logger.Error("Failed to list transactions", zap.String("account_number", number), zap.Error(err))
		return nil, err
	}
	if records == nil {
		records = []domain.TransactionRecord{}
	}
	return records, nil
}
