package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledger/internal/domain"
	"ledger/internal/repository/ledger_repo"

	"github.com/shopspring/decimal"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ ledger_repo.Store            = (*ledgerRepository)(nil)
	_ ledger_repo.OutboxRepository = (*ledgerRepository)(nil)
)

type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *ledgerRepository {
	return &ledgerRepository{db: db}
}

type unit struct {
	tx *sql.Tx
}

func (u *unit) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return translateError("commit unit of work", err)
	}
	return nil
}

func (u *unit) Rollback() error {
	if err := u.tx.Rollback(); err != nil {
		return translateError("rollback unit of work", err)
	}
	return nil
}

func (r *ledgerRepository) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, translateError("begin unit of work", err)
	}
	return &unit{tx: tx}, nil
}

func (r *ledgerRepository) querier(uow domain.UnitOfWork) (Querier, error) {
	if uow == nil {
		return r.db, nil
	}
	u, ok := uow.(*unit)
	if !ok {
		return nil, fmt.Errorf("%w: unit of work belongs to another store", domain.ErrStorage)
	}
	return u.tx, nil
}

func (r *ledgerRepository) tx(uow domain.UnitOfWork) (*sql.Tx, error) {
	if uow == nil {
		return nil, fmt.Errorf("%w: write outside a unit of work", domain.ErrStorage)
	}
	u, ok := uow.(*unit)
	if !ok {
		return nil, fmt.Errorf("%w: unit of work belongs to another store", domain.ErrStorage)
	}
	return u.tx, nil
}

func (r *ledgerRepository) GetAccount(ctx context.Context, uow domain.UnitOfWork, number string) (*domain.Account, error) {
	querier, err := r.querier(uow)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, number, holder_name, balance
		FROM accounts
		WHERE number = $1
	`
	if uow != nil {
		query += ` FOR UPDATE`
	}

	account := &domain.Account{}
	err = querier.QueryRowContext(ctx, query, number).Scan(
		&account.ID,
		&account.Number,
		&account.HolderName,
		&account.Balance,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, number)
		}
		return nil, translateError(fmt.Sprintf("get account %s", number), err)
	}
	return account, nil
}

func (r *ledgerRepository) AccountNumberExists(ctx context.Context, uow domain.UnitOfWork, number string) (bool, error) {
	querier, err := r.querier(uow)
	if err != nil {
		return false, err
	}

	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE number = $1)`
	var exists bool
	if err := querier.QueryRowContext(ctx, query, number).Scan(&exists); err != nil {
		return false, translateError(fmt.Sprintf("check account number %s", number), err)
	}
	return exists, nil
}

func (r *ledgerRepository) InsertAccount(ctx context.Context, uow domain.UnitOfWork, account *domain.Account) error {
	tx, err := r.tx(uow)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO accounts (number, holder_name, balance)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, query, account.Number, account.HolderName, account.Balance).Scan(&account.ID); err != nil {
		return translateError(fmt.Sprintf("insert account %s", account.Number), err)
	}
	return nil
}

func (r *ledgerRepository) SetBalance(ctx context.Context, uow domain.UnitOfWork, number string, balance decimal.Decimal) error {
	tx, err := r.tx(uow)
	if err != nil {
		return err
	}

	query := `
		UPDATE accounts
		SET balance = $1, updated_at = $2
		WHERE number = $3
	`
	res, err := tx.ExecContext(ctx, query, balance, time.Now().UTC(), number)
	if err != nil {
		return translateError(fmt.Sprintf("set balance of %s", number), err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return translateError("read rows affected", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, number)
	}
	return nil
}

func (r *ledgerRepository) AppendTransaction(ctx context.Context, uow domain.UnitOfWork, record *domain.TransactionRecord) error {
	tx, err := r.tx(uow)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (type, amount, occurred_at, source_account, destination_account)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		int16(record.Type),
		record.Amount,
		record.Timestamp.UTC(),
		nullString(record.SourceAccount),
		nullString(record.DestinationAccount),
	).Scan(&record.ID)
	if err != nil {
		return translateError(fmt.Sprintf("append %s record", record.Type), err)
	}
	return nil
}

func (r *ledgerRepository) ListTransactions(ctx context.Context, uow domain.UnitOfWork, number string) ([]domain.TransactionRecord, error) {
	querier, err := r.querier(uow)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, type, amount, occurred_at, source_account, destination_account
		FROM transactions
		WHERE source_account = $1 OR destination_account = $1
		ORDER BY occurred_at DESC, id DESC
	`
	rows, err := querier.QueryContext(ctx, query, number)
	if err != nil {
		return nil, translateError(fmt.Sprintf("list transactions of %s", number), err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var (
			record      domain.TransactionRecord
			txType      int16
			source      sql.NullString
			destination sql.NullString
		)
		if err := rows.Scan(&record.ID, &txType, &record.Amount, &record.Timestamp, &source, &destination); err != nil {
			return nil, translateError("scan transaction record", err)
		}
		record.Type = domain.TransactionType(txType)
		record.Timestamp = record.Timestamp.UTC()
		if source.Valid {
			record.SourceAccount = &source.String
		}
		if destination.Valid {
			record.DestinationAccount = &destination.String
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, translateError("iterate transaction records", err)
	}
	return records, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
