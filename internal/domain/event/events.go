package event

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MessageTypeDeposit    = "ledger.deposit"
	MessageTypeWithdrawal = "ledger.withdrawal"
	MessageTypeTransfer   = "ledger.transfer"
)

// LedgerTransactionEvent is published for every committed ledger mutation.
type LedgerTransactionEvent struct {
	TransactionID      int64           `json:"transaction_id"`
	Type               string          `json:"type"`
	Amount             decimal.Decimal `json:"amount"`
	SourceAccount      string          `json:"source_account,omitempty"`
	DestinationAccount string          `json:"destination_account,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
}
