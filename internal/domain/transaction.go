package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType int16

const (
	TransactionTypeDeposit    TransactionType = 1
	TransactionTypeWithdrawal TransactionType = 2
	TransactionTypeTransfer   TransactionType = 3
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "Deposit"
	case TransactionTypeWithdrawal:
		return "Withdrawal"
	case TransactionTypeTransfer:
		return "Transfer"
	default:
		return "Unknown"
	}
}

func (t TransactionType) Valid() bool {
	return t >= TransactionTypeDeposit && t <= TransactionTypeTransfer
}

// TransactionRecord is an immutable ledger log entry. For deposits SourceAccount holds the
// credited account; DestinationAccount is only set for transfers.
type TransactionRecord struct {
	ID                 int64
	Type               TransactionType
	Amount             decimal.Decimal
	Timestamp          time.Time
	SourceAccount      *string
	DestinationAccount *string
}

// Involves reports whether the record touches the given account on either side.
func (r TransactionRecord) Involves(number string) bool {
	return (r.SourceAccount != nil && *r.SourceAccount == number) ||
		(r.DestinationAccount != nil && *r.DestinationAccount == number)
}
