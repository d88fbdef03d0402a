// Package opening composes the one-time opening balance journal entry
// from current account balances.
package opening

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// AccountSource supplies the active accounts and auto-creates the
// offset account when missing.
type AccountSource interface {
	List(ctx context.Context, activeOnly bool) ([]accounts.Account, error)
	EnsureAccount(ctx context.Context, code, name string, accType accounts.AccountType, actor int64) (accounts.Account, error)
}

// Poster posts the composed entry through the ledger engine.
type Poster interface {
	Post(ctx context.Context, input ledger.EntryInput) (ledger.JournalEntry, error)
}

// DocumentType is the sequence key for the opening entry.
const DocumentType = "OPN"

const offsetAccountName = "Opening balance offset"

// Service builds and posts the opening entry.
type Service struct {
	accounts   AccountSource
	poster     Poster
	offsetCode string
}

// NewService wires the composer. offsetCode names the equity account
// that absorbs any residual imbalance.
func NewService(accs AccountSource, poster Poster, offsetCode string) *Service {
	return &Service{accounts: accs, poster: poster, offsetCode: offsetCode}
}

// CreateOpeningEntry emits one line per active account carrying a
// balance and posts the result as the system's single opening entry.
//
// Debit-normal accounts (asset, expense) with a positive balance become
// debit lines; all other types become credit lines. A negative balance
// flips the side. This sign-flip treatment of contra balances matches
// how balances were captured upstream; it is deliberate, not a
// normalization step.
//
// If the lines do not balance within tolerance, a plug line against the
// configured offset equity account is inserted. Its description carries
// "موازنة افتتاحية" so the manufactured line is always auditable.
func (s *Service) CreateOpeningEntry(ctx context.Context, date time.Time, actor int64) (ledger.JournalEntry, error) {
	accs, err := s.accounts.List(ctx, true)
	if err != nil {
		return ledger.JournalEntry{}, err
	}

	var lines []ledger.LineInput
	var totalDebit, totalCredit float64
	for _, acc := range accs {
		// Balances within the posting tolerance are treated as zero.
		if ledger.WithinTolerance(acc.Balance) {
			continue
		}
		debitSide := acc.Type.DebitNormal()
		if acc.Balance < 0 {
			debitSide = !debitSide
		}
		amount := math.Abs(acc.Balance)
		line := ledger.LineInput{AccountID: acc.ID, Description: fmt.Sprintf("Opening balance %s", acc.Code)}
		if debitSide {
			line.Debit = amount
			totalDebit += amount
		} else {
			line.Credit = amount
			totalCredit += amount
		}
		lines = append(lines, line)
	}

	if diff := totalDebit - totalCredit; !ledger.WithinTolerance(diff) {
		offset, err := s.accounts.EnsureAccount(ctx, s.offsetCode, offsetAccountName, accounts.AccountTypeEquity, actor)
		if err != nil {
			return ledger.JournalEntry{}, fmt.Errorf("opening: ensure offset account: %w", err)
		}
		plug := ledger.LineInput{
			AccountID:   offset.ID,
			Description: "موازنة افتتاحية / opening balance offset",
		}
		if diff > 0 {
			plug.Credit = diff
		} else {
			plug.Debit = -diff
		}
		lines = append(lines, plug)
	}

	return s.poster.Post(ctx, ledger.EntryInput{
		Date:         date,
		Description:  "Opening balance entry",
		DocumentType: DocumentType,
		PostedBy:     actor,
		IsOpening:    true,
		Lines:        lines,
	})
}
