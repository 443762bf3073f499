package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledger/internal/domain"
	"ledger/internal/repository/ledger_repo"

	"github.com/shopspring/decimal"
)

var (
	_ ledger_repo.Store            = (*Store)(nil)
	_ ledger_repo.OutboxRepository = (*Store)(nil)
)

var errUnitClosed = fmt.Errorf("%w: unit of work already closed", domain.ErrStorage)

// Store is an in-process ledger store. A unit of work locks every account number it
// touches until it commits or rolls back; its writes stay private until Commit.
type Store struct {
	mu            sync.RWMutex
	accounts      map[string]domain.Account
	log           []domain.TransactionRecord
	outbox        []domain.OutboxMessage
	nextAccountID int64
	nextRecordID  int64

	locks *lockTable
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		locks:    newLockTable(),
	}
}

type unit struct {
	store *Store

	held     map[string]struct{}
	created  map[string]domain.Account
	balances map[string]decimal.Decimal
	records  []domain.TransactionRecord
	outbox   []domain.OutboxMessage
	closed   bool
}

func (s *Store) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: begin unit of work: %w", domain.ErrStorage, err)
	}
	return &unit{
		store:    s,
		held:     make(map[string]struct{}),
		created:  make(map[string]domain.Account),
		balances: make(map[string]decimal.Decimal),
	}, nil
}

func (u *unit) Commit() error {
	if u.closed {
		return errUnitClosed
	}
	u.closed = true

	s := u.store
	s.mu.Lock()
	for number, account := range u.created {
		s.accounts[number] = account
	}
	for number, balance := range u.balances {
		account := s.accounts[number]
		account.Balance = balance
		s.accounts[number] = account
	}
	s.log = append(s.log, u.records...)
	s.outbox = append(s.outbox, u.outbox...)
	s.mu.Unlock()

	u.releaseAll()
	return nil
}

func (u *unit) Rollback() error {
	if u.closed {
		return errUnitClosed
	}
	u.closed = true
	u.releaseAll()
	return nil
}

func (u *unit) releaseAll() {
	for number := range u.held {
		u.store.locks.release(number)
	}
	u.held = nil
}

func (u *unit) lock(ctx context.Context, number string) error {
	if _, ok := u.held[number]; ok {
		return nil
	}
	if err := u.store.locks.acquire(ctx, number); err != nil {
		return fmt.Errorf("%w: waiting for account %s: %w", domain.ErrConcurrencyConflict, number, err)
	}
	u.held[number] = struct{}{}
	return nil
}

func (u *unit) unlock(number string) {
	if _, ok := u.held[number]; !ok {
		return
	}
	delete(u.held, number)
	u.store.locks.release(number)
}

// account returns the account as this unit sees it: committed state plus its own writes.
func (u *unit) account(number string) (domain.Account, bool) {
	account, ok := u.created[number]
	if !ok {
		u.store.mu.RLock()
		account, ok = u.store.accounts[number]
		u.store.mu.RUnlock()
	}
	if !ok {
		return domain.Account{}, false
	}
	if balance, staged := u.balances[number]; staged {
		account.Balance = balance
	}
	return account, true
}

func (s *Store) unitOf(uow domain.UnitOfWork) (*unit, error) {
	if uow == nil {
		return nil, nil
	}
	u, ok := uow.(*unit)
	if !ok || u.store != s {
		return nil, fmt.Errorf("%w: unit of work belongs to another store", domain.ErrStorage)
	}
	if u.closed {
		return nil, errUnitClosed
	}
	return u, nil
}

func (s *Store) requireUnit(uow domain.UnitOfWork) (*unit, error) {
	u, err := s.unitOf(uow)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: write outside a unit of work", domain.ErrStorage)
	}
	return u, nil
}

func (s *Store) GetAccount(ctx context.Context, uow domain.UnitOfWork, number string) (*domain.Account, error) {
	u, err := s.unitOf(uow)
	if err != nil {
		return nil, err
	}

	if u == nil {
		s.mu.RLock()
		account, ok := s.accounts[number]
		s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, number)
		}
		return &account, nil
	}

	if err := u.lock(ctx, number); err != nil {
		return nil, err
	}
	account, ok := u.account(number)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, number)
	}
	return &account, nil
}

func (s *Store) AccountNumberExists(ctx context.Context, uow domain.UnitOfWork, number string) (bool, error) {
	u, err := s.unitOf(uow)
	if err != nil {
		return false, err
	}

	if u == nil {
		s.mu.RLock()
		_, ok := s.accounts[number]
		s.mu.RUnlock()
		return ok, nil
	}

	_, alreadyHeld := u.held[number]
	if err := u.lock(ctx, number); err != nil {
		return false, err
	}
	_, exists := u.account(number)
	// A taken number is of no further interest to the caller; only a free one stays
	// reserved for the insert that follows.
	if exists && !alreadyHeld {
		u.unlock(number)
	}
	return exists, nil
}

func (s *Store) InsertAccount(ctx context.Context, uow domain.UnitOfWork, account *domain.Account) error {
	u, err := s.requireUnit(uow)
	if err != nil {
		return err
	}
	if err := u.lock(ctx, account.Number); err != nil {
		return err
	}
	if _, exists := u.account(account.Number); exists {
		return fmt.Errorf("%w: account number %s already taken", domain.ErrConcurrencyConflict, account.Number)
	}
	if account.Balance.IsNegative() {
		return fmt.Errorf("%w: balance must not be negative", domain.ErrStorage)
	}

	s.mu.Lock()
	s.nextAccountID++
	account.ID = s.nextAccountID
	s.mu.Unlock()

	u.created[account.Number] = *account
	return nil
}

func (s *Store) SetBalance(ctx context.Context, uow domain.UnitOfWork, number string, balance decimal.Decimal) error {
	u, err := s.requireUnit(uow)
	if err != nil {
		return err
	}
	if err := u.lock(ctx, number); err != nil {
		return err
	}
	if _, ok := u.account(number); !ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, number)
	}
	if balance.IsNegative() {
		return fmt.Errorf("%w: balance of %s must not be negative", domain.ErrStorage, number)
	}

	u.balances[number] = balance
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, uow domain.UnitOfWork, record *domain.TransactionRecord) error {
	u, err := s.requireUnit(uow)
	if err != nil {
		return err
	}
	if !record.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %d", domain.ErrStorage, record.Type)
	}
	if !record.Amount.IsPositive() {
		return fmt.Errorf("%w: transaction amount must be positive", domain.ErrStorage)
	}
	for _, ref := range []*string{record.SourceAccount, record.DestinationAccount} {
		if ref == nil {
			continue
		}
		if _, ok := u.account(*ref); !ok {
			return fmt.Errorf("%w: transaction references unknown account %s", domain.ErrStorage, *ref)
		}
	}

	s.mu.Lock()
	s.nextRecordID++
	record.ID = s.nextRecordID
	s.mu.Unlock()

	u.records = append(u.records, cloneRecord(*record))
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, uow domain.UnitOfWork, number string) ([]domain.TransactionRecord, error) {
	u, err := s.unitOf(uow)
	if err != nil {
		return nil, err
	}

	var out []domain.TransactionRecord
	s.mu.RLock()
	for _, record := range s.log {
		if record.Involves(number) {
			out = append(out, cloneRecord(record))
		}
	}
	s.mu.RUnlock()

	if u != nil {
		for _, record := range u.records {
			if record.Involves(number) {
				out = append(out, cloneRecord(record))
			}
		}
	}

	sortNewestFirst(out)
	return out, nil
}

func (s *Store) EnqueueOutbox(ctx context.Context, uow domain.UnitOfWork, msg *domain.OutboxMessage) error {
	u, err := s.requireUnit(uow)
	if err != nil {
		return err
	}
	if msg.ID == "" {
		return fmt.Errorf("%w: outbox message id is required", domain.ErrStorage)
	}
	staged := *msg
	staged.Payload = append([]byte(nil), msg.Payload...)
	u.outbox = append(u.outbox, staged)
	return nil
}

func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.OutboxMessage
	for _, msg := range s.outbox {
		if msg.Status != domain.OutboxStatusPending {
			continue
		}
		out = append(out, msg)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkOutbox(ctx context.Context, id string, status domain.OutboxMessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].ID != id {
			continue
		}
		s.outbox[i].Status = status
		if status == domain.OutboxStatusSent {
			now := time.Now().UTC()
			s.outbox[i].SentAt = &now
		} else {
			s.outbox[i].SentAt = nil
		}
		return nil
	}
	return fmt.Errorf("%w: no outbox message with id %s", domain.ErrStorage, id)
}

func sortNewestFirst(records []domain.TransactionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].ID > records[j].ID
	})
}

func cloneRecord(record domain.TransactionRecord) domain.TransactionRecord {
	if record.SourceAccount != nil {
		source := *record.SourceAccount
		record.SourceAccount = &source
	}
	if record.DestinationAccount != nil {
		destination := *record.DestinationAccount
		record.DestinationAccount = &destination
	}
	return record
}
