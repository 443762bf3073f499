package ledger_http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledger/internal/app/ledger"
	"ledger/internal/domain"
	"ledger/internal/repository/ledger_repo/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	source, err := ledger.NewRandomSource(ledger.DefaultAccountNumberDigits)
	require.NoError(t, err)
	allocator := ledger.NewAllocator(source, store, ledger.DefaultAllocationAttempts, logger)
	service := ledger.NewLedgerService(
		ledger.NewEngine(store, allocator, logger),
		ledger.NewQueries(store, logger),
	)

	server := httptest.NewServer(NewRouter(service, logger))
	t.Cleanup(server.Close)
	return server
}

func do(t *testing.T, server *httptest.Server, method, path, body string, out any) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createAccount(t *testing.T, server *httptest.Server, holder string) AccountResponse {
	t.Helper()
	var account AccountResponse
	resp := do(t, server, http.MethodPost, "/accounts", fmt.Sprintf(`{"holder_name":%q}`, holder), &account)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return account
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	resp := do(t, server, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestAccountLifecycle(t *testing.T) {
	server := newTestServer(t)

	alice := createAccount(t, server, "Alice")
	bob := createAccount(t, server, "Bob")
	assert.Equal(t, "Alice", alice.HolderName)
	assert.True(t, alice.Balance.IsZero())
	assert.Len(t, alice.Number, ledger.DefaultAccountNumberDigits)

	var deposit BalanceResponse
	resp := do(t, server, http.MethodPost, "/accounts/"+alice.Number+"/deposits", `{"amount":"100.00"}`, &deposit)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, deposit.Balance.Equal(decimal.NewFromInt(100)))

	var withdrawal BalanceResponse
	resp = do(t, server, http.MethodPost, "/accounts/"+alice.Number+"/withdrawals", `{"amount":"0.25"}`, &withdrawal)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, withdrawal.Balance.Equal(decimal.RequireFromString("99.75")))

	var transfer TransferResponse
	body := fmt.Sprintf(`{"source_account":%q,"destination_account":%q,"amount":"50"}`, alice.Number, bob.Number)
	resp = do(t, server, http.MethodPost, "/transfers", body, &transfer)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var balance BalanceResponse
	resp = do(t, server, http.MethodGet, "/accounts/"+bob.Number+"/balance", "", &balance)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bob", balance.HolderName)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(50)))

	var history []TransactionResponse
	resp = do(t, server, http.MethodGet, "/accounts/"+alice.Number+"/transactions", "", &history)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, history, 3)
	assert.Equal(t, "Transfer", history[0].Type)
	require.NotNil(t, history[0].DestinationAccount)
	assert.Equal(t, bob.Number, *history[0].DestinationAccount)
	assert.Equal(t, "Withdrawal", history[1].Type)
	assert.Equal(t, "Deposit", history[2].Type)
}

func TestAmountsTravelAsStrings(t *testing.T) {
	server := newTestServer(t)
	alice := createAccount(t, server, "Alice")

	var raw map[string]any
	resp := do(t, server, http.MethodPost, "/accounts/"+alice.Number+"/deposits", `{"amount":"0.10"}`, &raw)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.IsType(t, "", raw["balance"])
}

func TestErrorStatuses(t *testing.T) {
	server := newTestServer(t)
	alice := createAccount(t, server, "Alice")
	bob := createAccount(t, server, "Bob")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   domain.ErrorKind
	}{
		{"blank holder", http.MethodPost, "/accounts", `{"holder_name":"  "}`, http.StatusBadRequest, domain.KindInvalidArgument},
		{"malformed body", http.MethodPost, "/accounts", `{`, http.StatusBadRequest, domain.KindInvalidArgument},
		{"non-numeric amount", http.MethodPost, "/accounts/" + alice.Number + "/deposits", `{"amount":"ten"}`, http.StatusBadRequest, domain.KindInvalidArgument},
		{"zero amount", http.MethodPost, "/accounts/" + alice.Number + "/deposits", `{"amount":"0"}`, http.StatusBadRequest, domain.KindInvalidArgument},
		{"unknown account", http.MethodPost, "/accounts/0000000000/deposits", `{"amount":"1"}`, http.StatusNotFound, domain.KindAccountNotFound},
		{"unknown balance", http.MethodGet, "/accounts/0000000000/balance", "", http.StatusNotFound, domain.KindAccountNotFound},
		{"unknown history", http.MethodGet, "/accounts/0000000000/transactions", "", http.StatusNotFound, domain.KindAccountNotFound},
		{"insufficient funds", http.MethodPost, "/accounts/" + alice.Number + "/withdrawals", `{"amount":"1"}`, http.StatusUnprocessableEntity, domain.KindInsufficientFunds},
		{"same account transfer", http.MethodPost, "/transfers",
			fmt.Sprintf(`{"source_account":%q,"destination_account":%q,"amount":"1"}`, alice.Number, alice.Number),
			http.StatusBadRequest, domain.KindInvalidArgument},
		{"exponent amount", http.MethodPost, "/accounts/" + alice.Number + "/deposits", `{"amount":"1e5000000"}`, http.StatusBadRequest, domain.KindInvalidArgument},
		{"over-precise amount", http.MethodPost, "/accounts/" + alice.Number + "/deposits", `{"amount":"0.00001"}`, http.StatusBadRequest, domain.KindInvalidArgument},
		{"oversized amount", http.MethodPost, "/accounts/" + alice.Number + "/deposits", `{"amount":"10000000000000000000"}`, http.StatusBadRequest, domain.KindInvalidArgument},
		{"transfer without funds", http.MethodPost, "/transfers",
			fmt.Sprintf(`{"source_account":%q,"destination_account":%q,"amount":"1"}`, alice.Number, bob.Number),
			http.StatusUnprocessableEntity, domain.KindInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp ErrorResponse
			resp := do(t, server, tt.method, tt.path, tt.body, &errResp)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.kind.String(), errResp.Kind)
			assert.NotEmpty(t, errResp.Error)
		})
	}
}

func TestTransferEchoesTrimmedNumbers(t *testing.T) {
	server := newTestServer(t)
	alice := createAccount(t, server, "Alice")
	bob := createAccount(t, server, "Bob")
	do(t, server, http.MethodPost, "/accounts/"+alice.Number+"/deposits", `{"amount":"10"}`, nil)

	var transfer TransferResponse
	body := fmt.Sprintf(`{"source_account":" %s ","destination_account":"\t%s\n","amount":"4"}`, alice.Number, bob.Number)
	resp := do(t, server, http.MethodPost, "/transfers", body, &transfer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, alice.Number, transfer.SourceAccount)
	assert.Equal(t, bob.Number, transfer.DestinationAccount)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(domain.KindOf(domain.ErrConcurrencyConflict)))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(domain.KindOf(domain.ErrAllocationExhausted)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.KindOf(domain.ErrStorage)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.KindOf(errors.New("boom"))))
}

func TestRequestIDIsPropagated(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "abc-123")

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))
}
