package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/app/ledger"
	"ledger/internal/domain"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	maxLineBytes    = 1 << 20
)

// Menu is the interactive teller front-end. It reads one choice per line until the
// operator picks 0 or the input ends.
type Menu struct {
	service ledger.LedgerService
	in      *bufio.Scanner
	out     io.Writer
	logger  *zap.Logger
}

func NewMenu(service ledger.LedgerService, in io.Reader, out io.Writer, logger *zap.Logger) *Menu {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)
	return &Menu{
		service: service,
		in:      scanner,
		out:     out,
		logger:  logger,
	}
}

func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.printf("==== Ledger ====\n")
		m.printf("1 - Create account\n")
		m.printf("2 - Deposit\n")
		m.printf("3 - Withdraw\n")
		m.printf("4 - Transfer\n")
		m.printf("5 - Balance\n")
		m.printf("6 - History\n")
		m.printf("0 - Exit\n")

		choice, ok := m.prompt("Choose an option: ")
		if !ok {
			return m.in.Err()
		}

		var err error
		switch choice {
		case "1":
			err = m.createAccount(ctx)
		case "2":
			err = m.deposit(ctx)
		case "3":
			err = m.withdraw(ctx)
		case "4":
			err = m.transfer(ctx)
		case "5":
			err = m.balance(ctx)
		case "6":
			err = m.history(ctx)
		case "0":
			m.printf("Goodbye!\n")
			return nil
		default:
			m.printf("Invalid option.\n")
			continue
		}

		if err == io.EOF {
			return m.in.Err()
		}
		if err != nil {
			m.logger.Debug("Menu operation failed", zap.String("option", choice), zap.Error(err))
			m.printf("Error: %s\n", domain.UserMessage(err))
		}
	}
}

func (m *Menu) createAccount(ctx context.Context) error {
	holder, ok := m.prompt("Holder name: ")
	if !ok {
		return io.EOF
	}

	account, err := m.service.CreateAccount(ctx, holder)
	if err != nil {
		return err
	}
	m.printf("Account created! Number: %s | Holder: %s | Balance: %s\n",
		account.Number, account.HolderName, money(account.Balance))
	return nil
}

func (m *Menu) deposit(ctx context.Context) error {
	number, ok := m.prompt("Account number: ")
	if !ok {
		return io.EOF
	}
	amount, ok := m.promptAmount("Deposit amount (greater than 0): ")
	if !ok {
		return io.EOF
	}

	balance, err := m.service.Deposit(ctx, number, amount)
	if err != nil {
		return err
	}
	m.printf("Deposit completed. Current balance: %s\n", money(balance))
	return nil
}

func (m *Menu) withdraw(ctx context.Context) error {
	number, ok := m.prompt("Account number: ")
	if !ok {
		return io.EOF
	}
	amount, ok := m.promptAmount("Withdrawal amount (greater than 0): ")
	if !ok {
		return io.EOF
	}

	balance, err := m.service.Withdraw(ctx, number, amount)
	if err != nil {
		return err
	}
	m.printf("Withdrawal completed. Current balance: %s\n", money(balance))
	return nil
}

func (m *Menu) transfer(ctx context.Context) error {
	source, ok := m.prompt("Source account: ")
	if !ok {
		return io.EOF
	}
	dest, ok := m.prompt("Destination account: ")
	if !ok {
		return io.EOF
	}
	amount, ok := m.promptAmount("Transfer amount (greater than 0): ")
	if !ok {
		return io.EOF
	}

	if err := m.service.Transfer(ctx, source, dest, amount); err != nil {
		return err
	}
	m.printf("Transfer completed successfully!\n")
	return nil
}

func (m *Menu) balance(ctx context.Context) error {
	number, ok := m.prompt("Account number: ")
	if !ok {
		return io.EOF
	}

	balance, err := m.service.GetBalance(ctx, number)
	if err != nil {
		return err
	}
	m.printf("Balance of account %s: %s\n", number, money(balance))
	return nil
}

func (m *Menu) history(ctx context.Context) error {
	number, ok := m.prompt("Account number: ")
	if !ok {
		return io.EOF
	}

	records, err := m.service.GetHistory(ctx, number)
	if err != nil {
		return err
	}

	m.printf("Transaction history of account %s:\n", number)
	if len(records) == 0 {
		m.printf("No transactions yet.\n")
		return nil
	}

	table := tablewriter.NewWriter(m.out)
	table.SetHeader([]string{"Time", "Type", "Direction", "Amount"})
	table.SetAutoWrapText(false)
	for _, record := range records {
		table.Append([]string{
			record.Timestamp.Local().Format(timestampLayout),
			record.Type.String(),
			direction(record, number),
			money(record.Amount),
		})
	}
	table.Render()
	return nil
}

// direction renders the counterparty of a transfer from the viewed account's side.
func direction(record domain.TransactionRecord, number string) string {
	if record.Type != domain.TransactionTypeTransfer || record.SourceAccount == nil || record.DestinationAccount == nil {
		return ""
	}
	switch number {
	case *record.SourceAccount:
		return "→ " + *record.DestinationAccount
	case *record.DestinationAccount:
		return "← " + *record.SourceAccount
	default:
		return ""
	}
}

func (m *Menu) prompt(label string) (string, bool) {
	m.printf("%s", label)
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

// promptAmount re-asks until the operator types a number.
func (m *Menu) promptAmount(label string) (decimal.Decimal, bool) {
	for {
		text, ok := m.prompt(label)
		if !ok {
			return decimal.Zero, false
		}
		amount, err := domain.ParseAmount(text)
		if err == nil {
			return amount, true
		}
		m.printf("Invalid amount. Try again.\n")
	}
}

func (m *Menu) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

func money(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
