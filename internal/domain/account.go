package domain

import (
	"github.com/shopspring/decimal"
)

// Account is a ledger account. Balance is the only field that changes after creation.
type Account struct {
	ID         int64
	Number     string
	HolderName string
	Balance    decimal.Decimal
}
