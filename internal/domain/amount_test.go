package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "100", want: "100"},
		{raw: " 12.34 ", want: "12.34"},
		{raw: "0.1", want: "0.1"},
		{raw: "-5", want: "-5"},
		{raw: "0", want: "0"},
		{raw: "12.5000000", want: "12.5"},
		{raw: "0.0001", want: "0.0001"},
		{raw: "999999999999999999.99", want: "999999999999999999.99"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseAmountRejectsNonNumeric(t *testing.T) {
	for _, raw := range []string{
		"", "   ", "abc", "1,000", "12.3.4", "1e",
		"1e5000000", "1E3", "1e-5000000",
		"0.00001", "1.23456",
		"1000000000000000000", "12345678901234567890.5",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseAmount(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
		})
	}
}

func TestParseAmountKeepsDecimalPrecision(t *testing.T) {
	a, err := ParseAmount("0.1")
	require.NoError(t, err)
	b, err := ParseAmount("0.2")
	require.NoError(t, err)

	assert.True(t, a.Add(b).Equal(decimal.RequireFromString("0.3")))
}

func TestTransactionRecordInvolves(t *testing.T) {
	src, dst := "1001", "2002"
	transfer := TransactionRecord{Type: TransactionTypeTransfer, SourceAccount: &src, DestinationAccount: &dst}
	deposit := TransactionRecord{Type: TransactionTypeDeposit, SourceAccount: &src}

	assert.True(t, transfer.Involves(src))
	assert.True(t, transfer.Involves(dst))
	assert.False(t, transfer.Involves("3003"))
	assert.True(t, deposit.Involves(src))
	assert.False(t, deposit.Involves(dst))
	assert.False(t, TransactionType(9).Valid())
	assert.Equal(t, "Withdrawal", TransactionTypeWithdrawal.String())
}

func TestCheckAmountBounds(t *testing.T) {
	assert.NoError(t, CheckAmountBounds(decimal.RequireFromString("999999999999999999.9999")))
	assert.NoError(t, CheckAmountBounds(decimal.New(1, 17)))
	assert.NoError(t, CheckAmountBounds(decimal.New(1500, -6)))

	for _, amount := range []decimal.Decimal{
		decimal.New(1, 5000000),
		decimal.New(1, -5000000),
		decimal.New(1, 18),
		decimal.New(1, -5),
	} {
		err := CheckAmountBounds(amount)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	}
}
