package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"ledger/internal/domain"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{name: "serialization failure", err: &pq.Error{Code: "40001"}, want: domain.KindConcurrencyConflict},
		{name: "deadlock", err: &pq.Error{Code: "40P01"}, want: domain.KindConcurrencyConflict},
		{name: "lock not available", err: &pq.Error{Code: "55P03"}, want: domain.KindConcurrencyConflict},
		{name: "duplicate account number", err: &pq.Error{Code: "23505"}, want: domain.KindConcurrencyConflict},
		{name: "wrapped serialization failure", err: fmt.Errorf("exec: %w", &pq.Error{Code: "40001"}), want: domain.KindConcurrencyConflict},
		{name: "check violation", err: &pq.Error{Code: "23514"}, want: domain.KindStorage},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: domain.KindStorage},
		{name: "tx done", err: sql.ErrTxDone, want: domain.KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError("op", tt.err)
			assert.Equal(t, tt.want, domain.KindOf(got))
			assert.True(t, errors.Is(got, tt.err), "driver error must stay in the chain")
			assert.Contains(t, got.Error(), "op")
		})
	}

	assert.NoError(t, translateError("op", nil))
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString(nil).Valid)

	value := "1234"
	got := nullString(&value)
	assert.True(t, got.Valid)
	assert.Equal(t, "1234", got.String)
}

func TestOutboxErrorsStayInTaxonomy(t *testing.T) {
	db, err := sql.Open("postgres", "host=127.0.0.1 port=1 user=u password=p dbname=x sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo := NewLedgerRepository(db)
	ctx := context.Background()

	_, err = repo.PendingOutbox(ctx, 10)
	require.Error(t, err)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))

	err = repo.MarkOutbox(ctx, "m1", domain.OutboxStatusSent)
	require.Error(t, err)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))
}
