package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ledger/internal/domain"
	"ledger/internal/domain/event"
	"ledger/internal/repository/ledger_repo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine runs every ledger mutation as one unit of work: read, validate, write balances and
// append the log entry, then commit. Arguments are validated before the store is touched.
type Engine struct {
	store        ledger_repo.Store
	allocator    *Allocator
	logger       *zap.Logger
	now          func() time.Time
	outboxEvents bool
}

type Option func(*Engine)

// WithClock overrides the clock used to stamp transaction records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithOutboxEvents makes every mutation also enqueue a ledger event in its unit of work.
func WithOutboxEvents(enabled bool) Option {
	return func(e *Engine) {
		e.outboxEvents = enabled
	}
}

func NewEngine(store ledger_repo.Store, allocator *Allocator, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		allocator: allocator,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) CreateAccount(ctx context.Context, holderName string) (*domain.Account, error) {
	name := strings.TrimSpace(holderName)
	if name == "" {
		return nil, fmt.Errorf("%w: holder name is required", domain.ErrInvalidArgument)
	}

	var account *domain.Account
	err := e.inUnit(ctx, "create_account", func(uow domain.UnitOfWork) error {
		number, err := e.allocator.Allocate(ctx, uow)
		if err != nil {
			return err
		}

		account = &domain.Account{
			Number:     number,
			HolderName: name,
			Balance:    decimal.Zero,
		}
		return e.store.InsertAccount(ctx, uow, account)
	})
	if err != nil {
		e.logFailure("Account creation failed", err, zap.String("holder_name", name))
		return nil, err
	}

	e.logger.Info("Account created",
		zap.Int64("account_id", account.ID),
		zap.String("account_number", account.Number))
	return account, nil
}

func (e *Engine) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error) {
	number, err := requireAccountNumber("account number", accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	if err := requirePositive(amount); err != nil {
		return decimal.Zero, err
	}

	var newBalance decimal.Decimal
	err = e.inUnit(ctx, "deposit", func(uow domain.UnitOfWork) error {
		account, err := e.store.GetAccount(ctx, uow, number)
		if err != nil {
			return err
		}

		newBalance = account.Balance.Add(amount)
		if err := e.store.SetBalance(ctx, uow, number, newBalance); err != nil {
			return err
		}

		return e.appendRecord(ctx, uow, &domain.TransactionRecord{
			Type:          domain.TransactionTypeDeposit,
			Amount:        amount,
			SourceAccount: &number,
		})
	})
	if err != nil {
		e.logFailure("Deposit failed", err, zap.String("account_number", number), zap.Stringer("amount", amount))
		return decimal.Zero, err
	}

	e.logger.Info("Deposit committed",
		zap.String("account_number", number),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", newBalance))
	return newBalance, nil
}

func (e *Engine) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error) {
	number, err := requireAccountNumber("account number", accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	if err := requirePositive(amount); err != nil {
		return decimal.Zero, err
	}

	var newBalance decimal.Decimal
	err = e.inUnit(ctx, "withdraw", func(uow domain.UnitOfWork) error {
		account, err := e.store.GetAccount(ctx, uow, number)
		if err != nil {
			return err
		}
		if account.Balance.LessThan(amount) {
			return fmt.Errorf("%w: account %s has %s, requested %s",
				domain.ErrInsufficientFunds, number, account.Balance, amount)
		}

		newBalance = account.Balance.Sub(amount)
		if err := e.store.SetBalance(ctx, uow, number, newBalance); err != nil {
			return err
		}

		return e.appendRecord(ctx, uow, &domain.TransactionRecord{
			Type:          domain.TransactionTypeWithdrawal,
			Amount:        amount,
			SourceAccount: &number,
		})
	})
	if err != nil {
		e.logFailure("Withdrawal failed", err, zap.String("account_number", number), zap.Stringer("amount", amount))
		return decimal.Zero, err
	}

	e.logger.Info("Withdrawal committed",
		zap.String("account_number", number),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", newBalance))
	return newBalance, nil
}

func (e *Engine) Transfer(ctx context.Context, sourceNumber, destNumber string, amount decimal.Decimal) error {
	source, err := requireAccountNumber("source account number", sourceNumber)
	if err != nil {
		return err
	}
	dest, err := requireAccountNumber("destination account number", destNumber)
	if err != nil {
		return err
	}
	if source == dest {
		return fmt.Errorf("%w: same account", domain.ErrInvalidArgument)
	}
	if err := requirePositive(amount); err != nil {
		return err
	}

	err = e.inUnit(ctx, "transfer", func(uow domain.UnitOfWork) error {
		accounts, err := e.lockPair(ctx, uow, source, dest)
		if err != nil {
			return err
		}
		from, to := accounts[source], accounts[dest]

		if from.Balance.LessThan(amount) {
			return fmt.Errorf("%w: source account %s has %s, requested %s",
				domain.ErrInsufficientFunds, source, from.Balance, amount)
		}

		if err := e.store.SetBalance(ctx, uow, source, from.Balance.Sub(amount)); err != nil {
			return err
		}
		if err := e.store.SetBalance(ctx, uow, dest, to.Balance.Add(amount)); err != nil {
			return err
		}

		return e.appendRecord(ctx, uow, &domain.TransactionRecord{
			Type:               domain.TransactionTypeTransfer,
			Amount:             amount,
			SourceAccount:      &source,
			DestinationAccount: &dest,
		})
	})
	if err != nil {
		e.logFailure("Transfer failed", err,
			zap.String("source_account", source),
			zap.String("destination_account", dest),
			zap.Stringer("amount", amount))
		return err
	}

	e.logger.Info("Transfer committed",
		zap.String("source_account", source),
		zap.String("destination_account", dest),
		zap.Stringer("amount", amount))
	return nil
}

// lockPair reads both transfer accounts in ascending account-number order, so two
// transfers over the same pair always contend on the same row first.
func (e *Engine) lockPair(ctx context.Context, uow domain.UnitOfWork, source, dest string) (map[string]*domain.Account, error) {
	roles := map[string]string{source: "source", dest: "destination"}
	order := []string{source, dest}
	if dest < source {
		order = []string{dest, source}
	}

	accounts := make(map[string]*domain.Account, 2)
	for _, number := range order {
		account, err := e.store.GetAccount(ctx, uow, number)
		if err != nil {
			return nil, fmt.Errorf("%s account: %w", roles[number], err)
		}
		accounts[number] = account
	}
	return accounts, nil
}

func (e *Engine) appendRecord(ctx context.Context, uow domain.UnitOfWork, record *domain.TransactionRecord) error {
	record.Timestamp = e.now().UTC()
	if err := e.store.AppendTransaction(ctx, uow, record); err != nil {
		return err
	}
	if !e.outboxEvents {
		return nil
	}

	msg, err := newOutboxMessage(record)
	if err != nil {
		return err
	}
	return e.store.EnqueueOutbox(ctx, uow, msg)
}

// inUnit opens a unit of work, runs fn inside it and closes the unit exactly once.
func (e *Engine) inUnit(ctx context.Context, operation string, fn func(uow domain.UnitOfWork) error) error {
	uow, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered panic inside unit of work, rolling back",
				zap.String("operation", operation),
				zap.Any("panic", r))
			_ = uow.Rollback()
			panic(r)
		}
	}()

	if err := fn(uow); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			e.logger.Error("Failed to roll back unit of work",
				zap.String("operation", operation),
				zap.NamedError("cause", err),
				zap.Error(rbErr))
		}
		return err
	}

	return uow.Commit()
}

func (e *Engine) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Stringer("kind", domain.KindOf(err)), zap.Error(err))
	switch domain.KindOf(err) {
	case domain.KindStorage, domain.KindUnknown:
		e.logger.Error(msg, fields...)
	default:
		e.logger.Warn(msg, fields...)
	}
}

func requireAccountNumber(field, number string) (string, error) {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrInvalidArgument, field)
	}
	return trimmed, nil
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidArgument)
	}
	return domain.CheckAmountBounds(amount)
}

func newOutboxMessage(record *domain.TransactionRecord) (*domain.OutboxMessage, error) {
	payload := event.LedgerTransactionEvent{
		TransactionID: record.ID,
		Type:          record.Type.String(),
		Amount:        record.Amount,
		Timestamp:     record.Timestamp,
	}
	if record.SourceAccount != nil {
		payload.SourceAccount = *record.SourceAccount
	}
	if record.DestinationAccount != nil {
		payload.DestinationAccount = *record.DestinationAccount
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ledger event: %w", err)
	}

	var messageType string
	switch record.Type {
	case domain.TransactionTypeDeposit:
		messageType = event.MessageTypeDeposit
	case domain.TransactionTypeWithdrawal:
		messageType = event.MessageTypeWithdrawal
	default:
		messageType = event.MessageTypeTransfer
	}

	return &domain.OutboxMessage{
		ID:          uuid.NewString(),
		AggregateID: payload.SourceAccount,
		MessageType: messageType,
		Payload:     body,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   record.Timestamp,
	}, nil
}
