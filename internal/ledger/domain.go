package ledger

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// EntryStatus enumerates the journal entry lifecycle. Transitions are
// monotonic: DRAFT -> POSTED -> REVERSED.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "DRAFT"
	StatusPosted   EntryStatus = "POSTED"
	StatusReversed EntryStatus = "REVERSED"
)

// BalanceTolerance is the maximum allowed difference between an entry's
// debit and credit totals.
const BalanceTolerance = 0.01

// WithinTolerance reports whether amount is balance-equal to zero.
// float64 sums drift below cent granularity (100 - 99.99 is a hair over
// 0.01), so the comparison happens in whole cents.
func WithinTolerance(amount float64) bool {
	return math.Abs(math.Round(amount*100)) <= math.Round(BalanceTolerance*100)
}

// DefaultDocumentType is the sequence key used when a posting does not
// name one.
const DefaultDocumentType = "JE"

// JournalEntry captures posting metadata plus its lines.
type JournalEntry struct {
	ID             int64
	EntryNumber    string
	DocumentType   string
	Date           time.Time
	Description    string
	Status         EntryStatus
	TotalDebit     float64
	TotalCredit    float64
	IsOpening      bool
	IsDepreciation bool
	PostedBy       int64
	FiscalYear     int
	ReversalReason *string
	ReversalOfID   *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []JournalEntryLine
}

// JournalEntryLine stores a debit or credit amount for one account.
// Exactly one of Debit/Credit is non-zero.
type JournalEntryLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
	CreatedAt   time.Time
}

// LineInput describes a journal line for a posting request.
type LineInput struct {
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
}

// EntryInput groups fields required to post a journal entry.
type EntryInput struct {
	Date           time.Time
	Description    string
	DocumentType   string
	PostedBy       int64
	IsOpening      bool
	IsDepreciation bool
	Lines          []LineInput
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID int64
	Reason  string
	ActorID int64
}

var (
	// ErrUnbalanced indicates debit != credit beyond tolerance.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrAccountNotFound indicates a line references a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAccountInactive indicates a line references a deactivated account.
	ErrAccountInactive = errors.New("ledger: account is inactive")
	// ErrAlreadyReversed indicates the entry was reversed before.
	ErrAlreadyReversed = errors.New("ledger: entry already reversed")
	// ErrInvalidStatus indicates the action cannot proceed from the
	// entry's current status.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
	// ErrPeriodClosed indicates the entry date falls in a closed period.
	ErrPeriodClosed = errors.New("ledger: period is closed")
	// ErrOpeningEntryExists indicates a second opening entry was attempted.
	ErrOpeningEntryExists = errors.New("ledger: opening entry already exists")
)

// Totals sums the lines' debit and credit columns.
func (in EntryInput) Totals() (debit, credit float64) {
	for _, line := range in.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit
}

// Validate checks the posting input before any write happens.
func (in EntryInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("ledger: entry date required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return errors.New("ledger: description required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit", idx)
		}
		if line.Debit == 0 && line.Credit == 0 {
			return fmt.Errorf("ledger: line %d has no amount", idx)
		}
	}
	debit, credit := in.Totals()
	if !WithinTolerance(debit - credit) {
		return ErrUnbalanced
	}
	return nil
}
