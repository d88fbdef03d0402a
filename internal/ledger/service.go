package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/periods"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// NumberSource hands out document numbers. Allocation commits outside the
// posting transaction: a posting failure burns the number (gap over
// duplicate).
type NumberSource interface {
	NextNumber(ctx context.Context, documentType string, date time.Time) (string, error)
}

// PeriodGuard blocks postings dated inside closed periods.
type PeriodGuard interface {
	EnsureOpenForPosting(ctx context.Context, date time.Time) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts successful postings by kind.
type MetricsPort interface {
	CountPosting(kind string)
}

// Service coordinates posting and reversing journal entries. It is the
// single writer of journal entries and account balances.
type Service struct {
	repo    RepositoryPort
	numbers NumberSource
	guard   PeriodGuard
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo RepositoryPort, numbers NumberSource, guard PeriodGuard, audit AuditPort) *Service {
	return &Service{repo: repo, numbers: numbers, guard: guard, audit: audit, now: time.Now}
}

// WithMetrics attaches posting counters.
func (s *Service) WithMetrics(metrics MetricsPort) {
	s.metrics = metrics
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates and persists a balanced journal entry, updating every
// referenced account's running balance in the same transaction. Nothing is
// written when validation fails.
func (s *Service) Post(ctx context.Context, input EntryInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if strings.TrimSpace(input.DocumentType) == "" {
		input.DocumentType = DefaultDocumentType
	}
	if s.guard != nil {
		if err := s.guard.EnsureOpenForPosting(ctx, input.Date); err != nil {
			if errors.Is(err, periods.ErrClosed) {
				return JournalEntry{}, ErrPeriodClosed
			}
			return JournalEntry{}, err
		}
	}

	entryNumber, err := s.numbers.NextNumber(ctx, input.DocumentType, input.Date)
	if err != nil {
		return JournalEntry{}, err
	}

	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := s.postInTx(ctx, tx, input, entryNumber, nil)
		if err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.countPosting(postingKind(input))
	s.recordAudit(ctx, input.PostedBy, "journal.post", entry.ID, map[string]any{
		"entry_number": entry.EntryNumber,
		"total_debit":  entry.TotalDebit,
		"total_credit": entry.TotalCredit,
	})
	return entry, nil
}

// postInTx is the single posting path shared by Post and Reverse.
func (s *Service) postInTx(ctx context.Context, tx TxRepository, input EntryInput, entryNumber string, reversalOf *int64) (JournalEntry, error) {
	if input.IsOpening {
		exists, err := tx.OpeningEntryExists(ctx)
		if err != nil {
			return JournalEntry{}, err
		}
		if exists {
			return JournalEntry{}, ErrOpeningEntryExists
		}
	}
	for _, line := range input.Lines {
		account, err := tx.GetAccountForUpdate(ctx, line.AccountID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return JournalEntry{}, fmt.Errorf("%w: id %d", ErrAccountNotFound, line.AccountID)
			}
			return JournalEntry{}, err
		}
		if !account.IsActive {
			return JournalEntry{}, fmt.Errorf("%w: %s", ErrAccountInactive, account.Code)
		}
	}
	entry, err := tx.InsertEntry(ctx, input, entryNumber, reversalOf)
	if err != nil {
		return JournalEntry{}, err
	}
	lines, err := tx.InsertLines(ctx, entry.ID, input.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	for _, line := range input.Lines {
		if err := tx.ApplyBalanceDelta(ctx, line.AccountID, line.Debit-line.Credit); err != nil {
			return JournalEntry{}, err
		}
	}
	entry.Lines = lines
	return entry, nil
}

// Reverse creates the mirror image of a posted entry through the posting
// path and marks the original REVERSED. It is the only sanctioned
// correction mechanism for posted entries.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return JournalEntry{}, errors.New("ledger: reversal reason required")
	}

	// Cheap status probe before a number is allocated.
	original, err := s.repo.GetEntryWithLines(ctx, input.EntryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := reversable(original); err != nil {
		return JournalEntry{}, err
	}
	// The reversal carries the original's date, so it is subject to the
	// same period check as any posting on that date.
	if s.guard != nil {
		if err := s.guard.EnsureOpenForPosting(ctx, original.Date); err != nil {
			if errors.Is(err, periods.ErrClosed) {
				return JournalEntry{}, ErrPeriodClosed
			}
			return JournalEntry{}, err
		}
	}

	entryNumber, err := s.numbers.NextNumber(ctx, original.DocumentType, original.Date)
	if err != nil {
		return JournalEntry{}, err
	}

	var reversal JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryWithLinesForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if err := reversable(current); err != nil {
			return err
		}
		posting := EntryInput{
			Date:           current.Date,
			Description:    fmt.Sprintf("Reversal of %s: %s", current.EntryNumber, input.Reason),
			DocumentType:   current.DocumentType,
			PostedBy:       input.ActorID,
			IsDepreciation: current.IsDepreciation,
			Lines:          mirrorLines(current.Lines),
		}
		inserted, err := s.postInTx(ctx, tx, posting, entryNumber, &current.ID)
		if err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, current.ID, input.Reason); err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.countPosting("reversal")
	s.recordAudit(ctx, input.ActorID, "journal.reverse", input.EntryID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.EntryNumber,
		"reason":          input.Reason,
	})
	return reversal, nil
}

// GetEntry returns an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.GetEntryWithLines(ctx, entryID)
}

// ListEntries returns all journal entries.
func (s *Service) ListEntries(ctx context.Context) ([]JournalEntry, error) {
	return s.repo.ListEntries(ctx)
}

func reversable(e JournalEntry) error {
	switch e.Status {
	case StatusPosted:
		if e.ReversalOfID != nil {
			// A reversal entry corrects its original; correcting the
			// correction means re-posting, not another mirror.
			return ErrInvalidStatus
		}
		return nil
	case StatusReversed:
		return ErrAlreadyReversed
	default:
		return ErrInvalidStatus
	}
}

func mirrorLines(lines []JournalEntryLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func postingKind(input EntryInput) string {
	switch {
	case input.IsOpening:
		return "opening"
	case input.IsDepreciation:
		return "depreciation"
	default:
		return "journal"
	}
}

func (s *Service) countPosting(kind string) {
	if s.metrics != nil {
		s.metrics.CountPosting(kind)
	}
}

func (s *Service) recordAudit(ctx context.Context, actor int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	})
}
