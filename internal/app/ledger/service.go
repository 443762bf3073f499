package ledger

import (
	"context"
	"fmt"

	"ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// LedgerService is what the front-ends talk to.
type LedgerService interface {
	CreateAccount(ctx context.Context, holderName string) (*domain.Account, error)
	Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error)
	Transfer(ctx context.Context, sourceNumber, destNumber string, amount decimal.Decimal) error

	GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error)
	GetHistory(ctx context.Context, accountNumber string) ([]domain.TransactionRecord, error)
}

type ledgerService struct {
	*Engine
	*Queries
}

func NewLedgerService(engine *Engine, queries *Queries) LedgerService {
	return &ledgerService{Engine: engine, Queries: queries}
}

func domainNotFound(number string) error {
	return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, number)
}
