package ledger_http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/app/ledger"
	"ledger/internal/domain"
)

type LedgerHandler struct {
	service ledger.LedgerService
	logger  *zap.Logger
}

func NewLedgerHandler(s ledger.LedgerService, l *zap.Logger) *LedgerHandler {
	return &LedgerHandler{service: s, logger: l}
}

type CreateAccountRequest struct {
	HolderName string `json:"holder_name"`
}

type AmountRequest struct {
	Amount string `json:"amount"`
}

type TransferRequest struct {
	SourceAccount      string `json:"source_account"`
	DestinationAccount string `json:"destination_account"`
	Amount             string `json:"amount"`
}

type AccountResponse struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	HolderName string          `json:"holder_name"`
	Balance    decimal.Decimal `json:"balance"`
}

type BalanceResponse struct {
	AccountNumber string          `json:"account_number"`
	HolderName    string          `json:"holder_name,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
}

type TransferResponse struct {
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
}

type TransactionResponse struct {
	ID                 int64           `json:"id"`
	Type               string          `json:"type"`
	Amount             decimal.Decimal `json:"amount"`
	Timestamp          string          `json:"timestamp"`
	SourceAccount      *string         `json:"source_account,omitempty"`
	DestinationAccount *string         `json:"destination_account,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (h *LedgerHandler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for CreateAccount", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Kind: domain.KindInvalidArgument.String()})
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req.HolderName)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, AccountResponse{
		ID:         account.ID,
		Number:     account.Number,
		HolderName: account.HolderName,
		Balance:    account.Balance,
	})
}

func (h *LedgerHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	amount, ok := h.decodeAmount(w, r)
	if !ok {
		return
	}

	balance, err := h.service.Deposit(r.Context(), number, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{AccountNumber: number, Balance: balance})
}

func (h *LedgerHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	amount, ok := h.decodeAmount(w, r)
	if !ok {
		return
	}

	balance, err := h.service.Withdraw(r.Context(), number, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{AccountNumber: number, Balance: balance})
}

func (h *LedgerHandler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for Transfer", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Kind: domain.KindInvalidArgument.String()})
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	src := strings.TrimSpace(req.SourceAccount)
	dst := strings.TrimSpace(req.DestinationAccount)
	if err := h.service.Transfer(r.Context(), src, dst, amount); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, TransferResponse{
		SourceAccount:      src,
		DestinationAccount: dst,
		Amount:             amount,
	})
}

func (h *LedgerHandler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	account, err := h.service.GetAccount(r.Context(), number)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{
		AccountNumber: account.Number,
		HolderName:    account.HolderName,
		Balance:       account.Balance,
	})
}

func (h *LedgerHandler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	records, err := h.service.GetHistory(r.Context(), number)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]TransactionResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, TransactionResponse{
			ID:                 record.ID,
			Type:               record.Type.String(),
			Amount:             record.Amount,
			Timestamp:          record.Timestamp.UTC().Format(time.RFC3339Nano),
			SourceAccount:      record.SourceAccount,
			DestinationAccount: record.DestinationAccount,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *LedgerHandler) decodeAmount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for amount", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Kind: domain.KindInvalidArgument.String()})
		return decimal.Zero, false
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return decimal.Zero, false
	}
	return amount, true
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindAccountNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case domain.KindConcurrencyConflict:
		return http.StatusConflict
	case domain.KindAllocationExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *LedgerHandler) writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Stringer("kind", kind), zap.Error(err))
	} else {
		h.logger.Debug("Request rejected", zap.Stringer("kind", kind), zap.Error(err))
	}
	h.writeJSON(w, status, ErrorResponse{Error: domain.UserMessage(err), Kind: kind.String()})
}

func (h *LedgerHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
